package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	UserID string
	State  draft.RecordState
	// UpdatedBefore matches records last updated strictly before it.
	UpdatedBefore time.Time
	Limit         int
}

// Get returns a draft in any state.
func (s *Store) Get(ctx context.Context, id string) (*draft.Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM drafts WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("draft", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return rec, nil
}

// List returns records matching f, most recently updated first.
func (s *Store) List(ctx context.Context, f Filter) ([]draft.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, f.State)
	}
	if !f.UpdatedBefore.IsZero() {
		where = append(where, "updated_at < ?")
		args = append(args, formatTime(f.UpdatedBefore))
	}

	query := `SELECT ` + recordColumns + ` FROM drafts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY updated_at DESC, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var out []draft.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			if errors.Is(err, errors.ErrPayloadCorrupted) {
				s.logger.Warn("skipping draft with corrupted payload", "error", err)
				continue
			}
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListStale returns unfinished drafts not updated since before.
func (s *Store) ListStale(ctx context.Context, before time.Time, limit int) ([]draft.Record, error) {
	return s.List(ctx, Filter{State: draft.RecordDraft, UpdatedBefore: before, Limit: limit})
}

// Stats returns a count of records grouped by state.
func (s *Store) Stats(ctx context.Context) (map[draft.RecordState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM drafts GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("draft stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[draft.RecordState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[draft.RecordState(state)] = count
	}
	return stats, rows.Err()
}
