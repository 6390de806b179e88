package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// lockUser serializes single-active creates for userID until tx ends. Under
// PostgreSQL's READ COMMITTED two transactions could otherwise both find no
// unfinished draft and both insert. SQLite already allows one writer at a
// time.
func (s *Store) lockUser(ctx context.Context, tx *sql.Tx, userID string) error {
	if s.driver != DriverPostgres {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("lock user drafts: %w", err)
	}
	return nil
}

// Create inserts a new unfinished draft and returns its ID. With
// single-active enforcement a user's existing unfinished draft is reported
// as *draft.ActiveDraftError instead.
func (s *Store) Create(ctx context.Context, userID, title string, payload []byte) (string, error) {
	if userID == "" {
		return "", errors.NewValidationError("user id is required").WithField("user_id")
	}
	id := uuid.NewString()
	now := s.timestamp()
	data, encoding := s.encodePayload(payload)

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if s.singleActive {
			if err := s.lockUser(ctx, tx, userID); err != nil {
				return err
			}
			var existing string
			err := tx.QueryRowContext(ctx, s.rebind(
				`SELECT id FROM drafts WHERE user_id = ? AND state = ? ORDER BY updated_at DESC LIMIT 1`),
				userID, draft.RecordDraft,
			).Scan(&existing)
			switch {
			case err == nil:
				return &draft.ActiveDraftError{UserID: userID, DraftID: existing}
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO drafts (id, user_id, title, payload, encoding, state, version, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`),
			id, userID, title, data, encoding, draft.RecordDraft, now, now,
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		var active *draft.ActiveDraftError
		if errors.As(err, &active) {
			return "", err
		}
		return "", fmt.Errorf("insert draft: %w", err)
	}

	s.logger.WithUser(userID).WithDraft(id).Debug("draft inserted", "bytes", len(payload), "encoding", encoding)
	return id, nil
}

// Update replaces the payload of an unfinished draft.
func (s *Store) Update(ctx context.Context, id, title string, payload []byte) error {
	data, encoding := s.encodePayload(payload)
	err := s.execOne(ctx, id,
		`UPDATE drafts
         SET title = ?, payload = ?, encoding = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND state = ?`,
		title, data, encoding, s.timestamp(), id, draft.RecordDraft,
	)
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("update draft: %w", err)
	}
	return err
}

// FetchUnfinishedForUser returns the user's unfinished drafts, newest first.
func (s *Store) FetchUnfinishedForUser(ctx context.Context, userID string) ([]draft.Record, error) {
	return s.List(ctx, Filter{UserID: userID, State: draft.RecordDraft})
}

// FetchByID returns an unfinished draft. Finished drafts are not found.
func (s *Store) FetchByID(ctx context.Context, id string) (*draft.Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Unfinished() {
		return nil, errors.NewNotFoundError("draft", id)
	}
	return rec, nil
}

// Delete removes a draft in any state.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.execOne(ctx, id, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("delete draft: %w", err)
	}
	if err == nil {
		s.logger.WithDraft(id).Info("draft deleted")
	}
	return err
}

// Archive marks an unfinished draft archived. A nil payload keeps the stored
// one.
func (s *Store) Archive(ctx context.Context, id string, payload []byte) error {
	var err error
	if payload == nil {
		err = s.execOne(ctx, id,
			`UPDATE drafts SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
			draft.RecordArchived, s.timestamp(), id, draft.RecordDraft,
		)
	} else {
		data, encoding := s.encodePayload(payload)
		err = s.execOne(ctx, id,
			`UPDATE drafts
             SET state = ?, payload = ?, encoding = ?, version = version + 1, updated_at = ?
             WHERE id = ? AND state = ?`,
			draft.RecordArchived, data, encoding, s.timestamp(), id, draft.RecordDraft,
		)
	}
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("archive draft: %w", err)
	}
	if err == nil {
		s.logger.WithDraft(id).Info("draft archived")
	}
	return err
}

// Submit stores the final payload and marks the draft submitted. Submitting
// a draft that is no longer unfinished is not found.
func (s *Store) Submit(ctx context.Context, id, title string, payload []byte) error {
	data, encoding := s.encodePayload(payload)
	err := s.execOne(ctx, id,
		`UPDATE drafts
         SET state = ?, title = ?, payload = ?, encoding = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND state = ?`,
		draft.RecordSubmitted, title, data, encoding, s.timestamp(), id, draft.RecordDraft,
	)
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("submit draft: %w", err)
	}
	if err == nil {
		s.logger.WithDraft(id).Info("draft submitted")
	}
	return err
}
