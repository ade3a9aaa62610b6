package journal

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunk_journal (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		chunk_size INT NOT NULL,
		chunk_no INT NOT NULL,
		records INT NOT NULL,
		committed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (source, chunk_size, chunk_no)
	)`)
	require.NoError(t, err)
	return db
}

func teardownTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE chunk_journal RESTART IDENTITY`)
	require.NoError(t, err)
	db.Close()
}

func TestAppendAndCommitted(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(t, db)
	ctx := context.Background()
	j := New(db)

	chunks, records, err := j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 0, chunks)
	require.Equal(t, 0, records)

	require.NoError(t, j.Append(ctx, "a.csv", 10, 1, 10))
	require.NoError(t, j.Append(ctx, "a.csv", 10, 2, 5))

	chunks, records, err = j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 2, chunks)
	require.Equal(t, 15, records)
}

func TestAppendTxCommitsWithTransaction(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(t, db)
	ctx := context.Background()
	j := New(db)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, AppendTx(ctx, tx, "a.csv", 10, 1, 10))

	// Until the transaction commits, the marker is invisible.
	chunks, _, err := j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 0, chunks)

	require.NoError(t, tx.Commit())

	chunks, records, err := j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 1, chunks)
	require.Equal(t, 10, records)
}

func TestAppendTxRollbackDiscardsMarker(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(t, db)
	ctx := context.Background()
	j := New(db)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, AppendTx(ctx, tx, "a.csv", 10, 1, 10))
	require.NoError(t, tx.Rollback())

	chunks, _, err := j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 0, chunks)
}

func TestCommittedStopsAtGap(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(t, db)
	ctx := context.Background()
	j := New(db)

	require.NoError(t, j.Append(ctx, "a.csv", 10, 1, 10))
	require.NoError(t, j.Append(ctx, "a.csv", 10, 3, 10))

	chunks, records, err := j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 1, chunks)
	require.Equal(t, 10, records)
}

func TestCommittedIgnoresOtherChunkSizes(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(t, db)
	ctx := context.Background()
	j := New(db)

	require.NoError(t, j.Append(ctx, "a.csv", 5, 1, 5))

	chunks, records, err := j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 0, chunks)
	require.Equal(t, 0, records)
}

func TestCommittedIsPerSource(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(t, db)
	ctx := context.Background()
	j := New(db)

	require.NoError(t, j.Append(ctx, "a.csv", 10, 1, 10))

	chunks, _, err := j.Committed(ctx, "b.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 0, chunks)
}

func TestClear(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(t, db)
	ctx := context.Background()
	j := New(db)

	require.NoError(t, j.Append(ctx, "a.csv", 10, 1, 10))
	require.NoError(t, j.Clear(ctx, "a.csv"))

	chunks, _, err := j.Committed(ctx, "a.csv", 10)
	require.NoError(t, err)
	require.Equal(t, 0, chunks)
}
