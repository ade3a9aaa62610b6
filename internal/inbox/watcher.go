// Package inbox watches a directory for dropped input files and hands them
// to the pipeline workers.
package inbox

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Job is one discovered input file.
type Job struct {
	Name string // base name, for logging
	Path string // full path
}

type Watcher struct {
	InboxDir     string
	DoneDir      string // where to move processed files, or "" to delete them
	PollInterval time.Duration
	FilePatterns []string // e.g. []string{"*.csv", "*.csv.gz", "*.csv.bz2"}
	seenFiles    map[string]time.Time
	seenMu       sync.Mutex
}

func NewWatcher(inboxDir, doneDir string, filePatterns []string, pollInterval time.Duration) *Watcher {
	return &Watcher{
		InboxDir:     inboxDir,
		DoneDir:      doneDir,
		PollInterval: pollInterval,
		FilePatterns: filePatterns,
		seenFiles:    make(map[string]time.Time),
	}
}

func (w *Watcher) AddSeen(file string) {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()

	w.seenFiles[file] = time.Now()
}

// RemoveSeen forgets a file so the next poll re-enqueues it. Called when
// processing fails and the file stays in the inbox.
func (w *Watcher) RemoveSeen(file string) {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()

	delete(w.seenFiles, file)
}

func (w *Watcher) HasSeen(file string) bool {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()

	_, seen := w.seenFiles[file]
	return seen
}

// Run polls the inbox directory and enqueues unprocessed files until ctx is
// cancelled. Files are finished (moved/deleted) by whoever processes the
// job, not by the watcher.
func (w *Watcher) Run(ctx context.Context, jobs chan<- Job) error {
	for {
		select {
		case <-ctx.Done():
			log.Println("[inbox] watcher stopping")
			return nil
		default:
		}

		files, err := listMatchingFiles(w.InboxDir, w.FilePatterns)
		if err != nil {
			log.Printf("[inbox] watcher error: %v", err)
			time.Sleep(w.PollInterval)
			continue
		}
		for _, file := range files {
			if w.HasSeen(file) {
				continue
			}
			w.AddSeen(file)
			log.Printf("[inbox] queueing %s for loading", file)
			select {
			case jobs <- Job{Name: filepath.Base(file), Path: file}:
			case <-ctx.Done():
				return nil
			}
		}
		time.Sleep(w.PollInterval)
	}
}

// Finish cleans up a processed file: moved to the done dir when one is
// configured, deleted otherwise.
func (w *Watcher) Finish(job Job) error {
	if w.DoneDir != "" {
		return os.Rename(job.Path, filepath.Join(w.DoneDir, job.Name))
	}
	return os.Remove(job.Path)
}

func listMatchingFiles(dir string, patterns []string) ([]string, error) {
	var result []string
	for _, pattern := range patterns {
		files, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		result = append(result, files...)
	}
	return result, nil
}
