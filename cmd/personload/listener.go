package main

import (
	"context"
	"database/sql"
	"log"

	"github.com/acme-corp/personload/internal/driver"
)

// completionListener runs after a COMPLETED execution: it reads back every
// persisted row and logs it, one line per row in query order.
type completionListener struct {
	db *sql.DB
}

func (l *completionListener) AfterRun(ctx context.Context, exec *driver.Execution) error {
	log.Printf("[job] execution %s %s: %d records read, %d written across %d chunks",
		exec.ID, exec.Status, exec.RecordsRead, exec.RecordsWritten, exec.ChunksCommitted)

	rows, err := l.db.QueryContext(ctx, `SELECT first_name, last_name FROM people`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var firstName, lastName string
		if err := rows.Scan(&firstName, &lastName); err != nil {
			return err
		}
		log.Printf("Found <firstName: %s, lastName: %s> in the database.", firstName, lastName)
	}
	return rows.Err()
}
