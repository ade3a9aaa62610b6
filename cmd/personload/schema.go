package main

import (
	"database/sql"
	"log"
	"strings"
)

const schemaSQL = `
-- Transformed records land here, one row per record.
CREATE TABLE IF NOT EXISTS people (
    id BIGSERIAL PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL
);

-- Append-only chunk-commit markers used to resume an interrupted run.
CREATE TABLE IF NOT EXISTS chunk_journal (
    id BIGSERIAL PRIMARY KEY,
    source TEXT NOT NULL,
    chunk_size INT NOT NULL,
    chunk_no INT NOT NULL,
    records INT NOT NULL,
    committed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (source, chunk_size, chunk_no)
);
`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_chunk_journal_source ON chunk_journal(source);`,
}

func runInitDB(db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		s := strings.TrimSpace(stmt)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			log.Printf("index error (can ignore if already exists): %v\nSQL: %s", err, idx)
		}
	}
	return nil
}
