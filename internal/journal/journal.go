// Package journal records chunk-commit markers so an interrupted run can be
// resumed without re-writing chunks that already committed. It is an
// append-only log, not a job repository: one row per committed chunk,
// consulted once at startup and cleared when the run completes.
package journal

import (
	"context"
	"database/sql"
	"fmt"
)

const insertMarkerSQL = `INSERT INTO chunk_journal (source, chunk_size, chunk_no, records) VALUES ($1, $2, $3, $4)`

type Journal struct {
	db *sql.DB
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Append marks chunk chunkNo (1-based) of source as committed, recording how
// many records the chunk held. The trailing chunk may hold fewer records
// than chunkSize, which is why the count is stored per chunk.
func (j *Journal) Append(ctx context.Context, source string, chunkSize, chunkNo, records int) error {
	_, err := j.db.ExecContext(ctx, insertMarkerSQL, source, chunkSize, chunkNo, records)
	if err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

// AppendTx writes the same marker inside an existing transaction, so a sink
// can make the batch and its marker commit or roll back together.
func AppendTx(ctx context.Context, tx *sql.Tx, source string, chunkSize, chunkNo, records int) error {
	_, err := tx.ExecContext(ctx, insertMarkerSQL, source, chunkSize, chunkNo, records)
	if err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

// Committed returns the contiguous committed prefix for source: the largest
// k such that chunks 1..k are all marked, along with the total record count
// those chunks held. Markers recorded under a different chunk size don't
// count, since the chunk boundaries would not line up.
func (j *Journal) Committed(ctx context.Context, source string, chunkSize int) (chunks, records int, err error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT chunk_no, records FROM chunk_journal WHERE source = $1 AND chunk_size = $2 ORDER BY chunk_no`,
		source, chunkSize)
	if err != nil {
		return 0, 0, fmt.Errorf("journal read: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n, rec int
		if err := rows.Scan(&n, &rec); err != nil {
			return 0, 0, fmt.Errorf("journal scan: %w", err)
		}
		if n != chunks+1 {
			break
		}
		chunks = n
		records += rec
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("journal read: %w", err)
	}
	return chunks, records, nil
}

// Clear drops all markers for source. Called after a COMPLETED run.
func (j *Journal) Clear(ctx context.Context, source string) error {
	_, err := j.db.ExecContext(ctx, `DELETE FROM chunk_journal WHERE source = $1`, source)
	if err != nil {
		return fmt.Errorf("journal clear: %w", err)
	}
	return nil
}
