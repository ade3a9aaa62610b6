// Package driver implements the chunk-oriented step executor: pull a record
// from the reader, transform it, buffer it, and flush the buffer to the
// writer as one atomic chunk whenever it fills (plus one trailing partial
// flush at end of input).
package driver

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/acme-corp/personload/internal/metrics"
	"github.com/acme-corp/personload/internal/person"
	"github.com/acme-corp/personload/internal/writer"
)

const DefaultChunkSize = 10

type Status string

const (
	StatusInit      Status = "INIT"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// ItemReader is the driver's view of the input: one record per call, io.EOF
// at exhaustion, Close released on every exit path.
type ItemReader interface {
	Read(ctx context.Context) (person.Person, error)
	Close() error
}

// Listener runs exactly once after a COMPLETED run.
type Listener interface {
	AfterRun(ctx context.Context, exec *Execution) error
}

// Marker is the chunk-commit journal consulted for resume. Implemented by
// journal.Journal. Each marker carries the chunk's record count, since the
// trailing chunk may hold fewer records than the chunk size.
type Marker interface {
	Append(ctx context.Context, source string, chunkSize, chunkNo, records int) error
	Committed(ctx context.Context, source string, chunkSize int) (chunks, records int, err error)
	Clear(ctx context.Context, source string) error
}

// Execution is the outcome of one run.
type Execution struct {
	ID              uuid.UUID
	Status          Status
	RecordsRead     int64
	RecordsWritten  int64
	ChunksCommitted int64
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Step wires one execution of the pipeline. Reader and Writer are required;
// Process defaults to person.Transform; Listener, Journal, and Metrics are
// optional.
type Step struct {
	Source    string
	Reader    ItemReader
	Process   func(person.Person) person.Person
	Writer    writer.Writer
	ChunkSize int
	Listener  Listener
	Journal   Marker
	Metrics   *metrics.Metrics
}

// Run executes the step. The returned Execution always reflects the terminal
// status, FAILED runs also return the triggering error. The reader is closed
// on every exit path.
func (s *Step) Run(ctx context.Context) (*Execution, error) {
	exec := &Execution{
		ID:        uuid.New(),
		Status:    StatusInit,
		StartedAt: time.Now(),
	}

	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	process := s.Process
	if process == nil {
		process = person.Transform
	}

	exec.Status = StatusRunning
	runErr := s.execute(ctx, exec, chunkSize, process)
	if cerr := s.Reader.Close(); cerr != nil && runErr == nil {
		runErr = fmt.Errorf("close reader: %w", cerr)
	}
	exec.FinishedAt = time.Now()

	if runErr != nil {
		exec.Status = StatusFailed
		if s.Metrics != nil {
			s.Metrics.IncFailed()
		}
		return exec, runErr
	}

	exec.Status = StatusCompleted
	if s.Listener != nil {
		if err := s.Listener.AfterRun(ctx, exec); err != nil {
			return exec, fmt.Errorf("completion listener: %w", err)
		}
	}
	return exec, nil
}

func (s *Step) execute(ctx context.Context, exec *Execution, chunkSize int, process func(person.Person) person.Person) error {
	skipChunks, skipRecords := 0, 0
	if s.Journal != nil {
		var err error
		skipChunks, skipRecords, err = s.Journal.Committed(ctx, s.Source, chunkSize)
		if err != nil {
			return err
		}
	}
	if skipRecords > 0 {
		// Replay by record count, not chunks*chunkSize: the last committed
		// chunk may have been a partial trailing flush. A run that committed
		// everything but crashed before Clear replays to exact EOF and then
		// completes with zero new writes.
		log.Printf("[resume] %s: %d chunks (%d records) already committed, replaying past them", s.Source, skipChunks, skipRecords)
		for i := 0; i < skipRecords; i++ {
			if _, err := s.Reader.Read(ctx); err != nil {
				if err == io.EOF {
					return fmt.Errorf("resume %s: input has %d records but the journal covers %d", s.Source, i, skipRecords)
				}
				return err
			}
		}
	}

	buf := make([]person.Person, 0, chunkSize)
	chunkNo := skipChunks

	for {
		p, err := s.Reader.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		exec.RecordsRead++

		out := process(p)
		log.Printf("Converting (%s) into (%s).", p, out)
		buf = append(buf, out)

		if len(buf) == chunkSize {
			chunkNo++
			if err := s.flush(ctx, exec, buf, chunkSize, chunkNo); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}

	// Trailing partial chunk. When the input size is an exact multiple of
	// the chunk size, buf is empty here and no write happens.
	if len(buf) > 0 {
		chunkNo++
		if err := s.flush(ctx, exec, buf, chunkSize, chunkNo); err != nil {
			return err
		}
	}

	if s.Journal != nil {
		if err := s.Journal.Clear(ctx, s.Source); err != nil {
			return err
		}
	}
	return nil
}

func (s *Step) flush(ctx context.Context, exec *Execution, batch []person.Person, chunkSize, chunkNo int) error {
	switch {
	case s.Journal == nil:
		if err := s.Writer.Write(ctx, batch); err != nil {
			return &person.WriteError{Chunk: chunkNo, Err: err}
		}
	default:
		// Prefer sinks that can commit the marker with the batch: a crash
		// then can't leave committed rows without a marker (which a resumed
		// run would rewrite, duplicating the chunk).
		if mw, ok := s.Writer.(writer.BatchMarker); ok {
			if err := mw.WriteMarked(ctx, batch, s.Source, chunkSize, chunkNo); err != nil {
				return &person.WriteError{Chunk: chunkNo, Err: err}
			}
		} else {
			if err := s.Writer.Write(ctx, batch); err != nil {
				return &person.WriteError{Chunk: chunkNo, Err: err}
			}
			if err := s.Journal.Append(ctx, s.Source, chunkSize, chunkNo, len(batch)); err != nil {
				return err
			}
		}
	}

	exec.RecordsWritten += int64(len(batch))
	exec.ChunksCommitted++
	if s.Metrics != nil {
		s.Metrics.AddRecords(int64(len(batch)))
		s.Metrics.IncChunks()
	}
	return nil
}
