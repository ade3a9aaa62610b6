package main

import (
	"context"
	"database/sql"
	"log"

	"github.com/acme-corp/personload/internal/driver"
	"github.com/acme-corp/personload/internal/inbox"
	"github.com/acme-corp/personload/internal/journal"
	"github.com/acme-corp/personload/internal/metrics"
	"github.com/acme-corp/personload/internal/reader"
	"github.com/acme-corp/personload/internal/writer"
)

// fileWorker drains the jobs channel, running one pipeline execution per
// discovered file. A failed file is logged and left in the inbox so the
// journal can resume it; serve mode keeps going.
func fileWorker(
	ctx context.Context,
	db *sql.DB,
	cfg *Config,
	watcher *inbox.Watcher,
	jobs <-chan inbox.Job,
	m *metrics.Metrics,
) {
	for job := range jobs {
		if err := runFileJob(ctx, db, cfg, job, m); err != nil {
			log.Printf("[error] processing file %s: %v (will retry on next poll)", job.Path, err)
			// Unmark the file so the watcher re-enqueues it; the journal
			// skips whatever already committed.
			watcher.RemoveSeen(job.Path)
			continue
		}
		if err := watcher.Finish(job); err != nil {
			log.Printf("[error] cleaning up %s: %v", job.Path, err)
		}
	}
}

func runFileJob(ctx context.Context, db *sql.DB, cfg *Config, job inbox.Job, m *metrics.Metrics) error {
	r, err := reader.Open(job.Path)
	if err != nil {
		return err
	}

	w, err := writer.Open(cfg.Pipeline.Sink, map[string]interface{}{"db": db})
	if err != nil {
		r.Close()
		return err
	}
	defer w.Close()

	step := driver.Step{
		Source:    job.Path,
		Reader:    r,
		Writer:    w,
		ChunkSize: cfg.Pipeline.ChunkSize,
		Journal:   journal.New(db),
		Metrics:   m,
	}

	exec, err := step.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[job] %s: %d records in %d chunks (execution %s)",
		job.Name, exec.RecordsWritten, exec.ChunksCommitted, exec.ID)
	return nil
}
