package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helpflowai/helpflow/internal/db"
	"github.com/helpflowai/helpflow/internal/queue"
)

// PGStore persists dead letter entries in postgres.
type PGStore struct {
	conn db.Conn
}

func NewPGStore(conn db.Conn) *PGStore {
	return &PGStore{conn: conn}
}

func (s *PGStore) Insert(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry.Job)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO dead_letters
			(id, original_job_id, job_payload, error, failure_count, first_failure_at, last_failure_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.OriginalJobID, payload, entry.Error,
		entry.FailureCount, entry.FirstFailureAt, entry.LastFailureAt,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, original_job_id, job_payload, error, failure_count, first_failure_at, last_failure_at
		FROM dead_letters
		ORDER BY last_failure_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, original_job_id, job_payload, error, failure_count, first_failure_at, last_failure_at
		FROM dead_letters
		WHERE id = $1`,
		id,
	)
	entry, err := scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.conn.Exec(ctx, `DELETE FROM dead_letters WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) DeleteAll(ctx context.Context) (int, error) {
	tag, err := s.conn.Exec(ctx, `DELETE FROM dead_letters`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanEntry(scan func(dest ...any) error) (Entry, error) {
	var entry Entry
	var payload []byte
	if err := scan(&entry.ID, &entry.OriginalJobID, &payload, &entry.Error,
		&entry.FailureCount, &entry.FirstFailureAt, &entry.LastFailureAt); err != nil {
		return Entry{}, err
	}
	var job queue.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Entry{}, fmt.Errorf("unmarshal job payload: %w", err)
	}
	entry.Job = &job
	return entry, nil
}
