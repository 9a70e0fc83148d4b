package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Put upserts the user's row; the new document fully replaces the old one.
func (r *PGRepo) Put(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO analysis_results (user_id, results, written_at, processed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET results = EXCLUDED.results,
	written_at = EXCLUDED.written_at,
	processed_at = EXCLUDED.processed_at`

	payload, err := marshalResults(doc.Results)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, doc.UserID, payload, doc.Timestamp, doc.ProcessedAt)
	return err
}

// Get returns the user's document or ErrNotFound.
func (r *PGRepo) Get(ctx context.Context, userID string) (Document, error) {
	const query = `
SELECT results, written_at, processed_at
FROM analysis_results
WHERE user_id = $1`

	var (
		raw []byte
		doc = Document{UserID: userID}
	)
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&raw, &doc.Timestamp, &doc.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.Results); err != nil {
			return Document{}, fmt.Errorf("decode results: %w", err)
		}
	}
	if doc.Results == nil {
		doc.Results = []json.RawMessage{}
	}
	return doc, nil
}

func marshalResults(items []json.RawMessage) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

var _ Repo = (*PGRepo)(nil)
