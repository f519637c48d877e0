package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/history"
)

// AppHistory is the history.Store of one app inside a Store.
type AppHistory struct {
	s     *Store
	appID string
}

var _ history.Store = (*AppHistory)(nil)

// History returns the history store for appID.
func (s *Store) History(appID string) *AppHistory {
	return &AppHistory{s: s, appID: strings.TrimSpace(appID)}
}

func (h *AppHistory) Load(ctx context.Context) (domain.History, error) {
	hist, _, err := h.s.loadHistory(ctx, h.appID)
	return hist, err
}

func (h *AppHistory) Save(ctx context.Context, v domain.History) error {
	_, err := h.s.db.ExecContext(ctx, `
INSERT INTO update_history(app_id, skipped_version, last_prompt_at, revision)
VALUES(?, ?, ?, 1)
ON CONFLICT(app_id) DO UPDATE SET
	skipped_version = excluded.skipped_version,
	last_prompt_at = excluded.last_prompt_at,
	revision = update_history.revision + 1`,
		h.appID, v.SkippedVersion, nullableTime(v.LastPromptAt))
	return err
}

// Update applies fn with optimistic concurrency: the write only lands when
// the revision read alongside the history is still current. On a lost race
// fn is re-run against the fresh history.
func (h *AppHistory) Update(ctx context.Context, fn func(domain.History) (domain.History, error)) error {
	for attempt := 0; attempt < h.s.maxUpdateAttempts; attempt++ {
		cur, rev, err := h.s.loadHistory(ctx, h.appID)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		ok, err := h.s.casHistory(ctx, h.appID, rev, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: app %s after %d attempts", ErrHistoryConflict, h.appID, h.s.maxUpdateAttempts)
}

// loadHistory returns the history and its revision. Revision 0 means no row.
func (s *Store) loadHistory(ctx context.Context, appID string) (domain.History, int64, error) {
	var (
		hist domain.History
		last sql.NullTime
		rev  int64
	)
	err := s.loadHistoryStmt.QueryRowContext(ctx, appID).Scan(&hist.SkippedVersion, &last, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.History{}, 0, nil
	}
	if err != nil {
		return domain.History{}, 0, fmt.Errorf("load history: %w", err)
	}
	if last.Valid {
		hist.LastPromptAt = last.Time.UTC()
	}
	return hist, rev, nil
}

func (s *Store) casHistory(ctx context.Context, appID string, rev int64, v domain.History) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if rev == 0 {
		res, err = s.db.ExecContext(ctx, `
INSERT INTO update_history(app_id, skipped_version, last_prompt_at, revision)
VALUES(?, ?, ?, 1)
ON CONFLICT(app_id) DO NOTHING`,
			appID, v.SkippedVersion, nullableTime(v.LastPromptAt))
	} else {
		res, err = s.db.ExecContext(ctx, `
UPDATE update_history
SET skipped_version = ?, last_prompt_at = ?, revision = revision + 1
WHERE app_id = ? AND revision = ?`,
			v.SkippedVersion, nullableTime(v.LastPromptAt), appID, rev)
	}
	if err != nil {
		return false, fmt.Errorf("write history: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ResetHistory deletes the stored history and check log of appID.
func (s *Store) ResetHistory(ctx context.Context, appID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM update_history WHERE app_id = ?`, appID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM check_log WHERE app_id = ?`, appID); err != nil {
		return err
	}
	return tx.Commit()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
