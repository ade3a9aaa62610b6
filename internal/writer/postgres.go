package writer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/acme-corp/personload/internal/journal"
	"github.com/acme-corp/personload/internal/person"
)

// PostgresWriter loads each batch into the people table with a single COPY
// inside one transaction. It never partially commits: any failure rolls the
// whole batch back.
type PostgresWriter struct {
	db *sql.DB
}

func NewPostgresWriter(opts map[string]interface{}) (Writer, error) {
	db, ok := opts["db"].(*sql.DB)
	if !ok || db == nil {
		return nil, fmt.Errorf("postgres sink requires 'db' option")
	}
	return &PostgresWriter{db: db}, nil
}

func (w *PostgresWriter) Write(ctx context.Context, batch []person.Person) error {
	return w.write(ctx, batch, nil)
}

// WriteMarked writes the batch and its chunk-commit marker in one
// transaction: a crash can never leave committed rows without a marker, or
// a marker without rows.
func (w *PostgresWriter) WriteMarked(ctx context.Context, batch []person.Person, source string, chunkSize, chunkNo int) error {
	return w.write(ctx, batch, func(tx *sql.Tx) error {
		return journal.AppendTx(ctx, tx, source, chunkSize, chunkNo, len(batch))
	})
}

func (w *PostgresWriter) write(ctx context.Context, batch []person.Person, mark func(*sql.Tx) error) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(pq.CopyIn("people", "first_name", "last_name"))
	if err != nil {
		return fmt.Errorf("prepare COPY: %w", err)
	}

	for _, p := range batch {
		if _, err = stmt.Exec(p.FirstName, p.LastName); err != nil {
			return fmt.Errorf("COPY exec: %w", err)
		}
	}
	if _, err = stmt.Exec(); err != nil {
		return fmt.Errorf("COPY exec flush: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("COPY close: %w", err)
	}

	if mark != nil {
		if err = mark(tx); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close is a no-op: the *sql.DB pool is owned by the caller.
func (w *PostgresWriter) Close() error { return nil }

func init() {
	Register("postgres", NewPostgresWriter)
}
