package sqlite

import (
	"context"
	"fmt"

	"github.com/troupelabs/troupe/internal/history"
)

// Persist implements history.Recorder. Records are written in one
// transaction: either the whole batch lands or none of it does, which is
// what lets the caller keep its flush-then-clear guarantee. INSERT OR
// REPLACE makes a re-flush of an already persisted batch idempotent.
func (r *Recorder) Persist(ctx context.Context, records []history.TurnRecord, destination string) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin persist tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO turns (destination, timestamp, name, model, prompt, response)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare persist: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			destination, rec.Timestamp, rec.Name, rec.Model, rec.Prompt, rec.Response,
		); err != nil {
			return fmt.Errorf("sqlite: persist turn: %w", err)
		}
	}

	return tx.Commit()
}

// Turns returns all records under a destination in timestamp order.
func (r *Recorder) Turns(ctx context.Context, destination string) ([]history.TurnRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, name, model, prompt, response
		FROM turns
		WHERE destination = ?
		ORDER BY timestamp ASC`,
		destination,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []history.TurnRecord
	for rows.Next() {
		var rec history.TurnRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Name, &rec.Model, &rec.Prompt, &rec.Response); err != nil {
			return nil, fmt.Errorf("sqlite: scan turn: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: turns rows: %w", err)
	}
	return records, nil
}
