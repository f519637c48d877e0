package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/koltyakov/siren/internal/domain"
)

const defaultListChecksLimit = 20

// RecordCheck appends a verdict to the check log and returns its id.
func (s *Store) RecordCheck(ctx context.Context, rec domain.CheckRecord) (int64, error) {
	checkedAt := rec.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO check_log(app_id, installed_version, published_version, alert, reason, checked_at)
VALUES(?, ?, ?, ?, ?, ?)`,
		rec.AppID, rec.InstalledVersion, nullIfBlank(rec.PublishedVersion),
		string(rec.Alert), nullIfBlank(string(rec.Reason)), checkedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListChecks returns the most recent checks of appID, newest first.
func (s *Store) ListChecks(ctx context.Context, appID string, limit int) ([]domain.CheckRecord, error) {
	if limit <= 0 {
		limit = defaultListChecksLimit
	}
	rows, err := s.listChecksStmt.QueryContext(ctx, appID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.CheckRecord
	for rows.Next() {
		var (
			rec       domain.CheckRecord
			published sql.NullString
			reason    sql.NullString
			alert     string
		)
		if err := rows.Scan(&rec.ID, &rec.AppID, &rec.InstalledVersion, &published, &alert, &reason, &rec.CheckedAt); err != nil {
			return nil, err
		}
		rec.PublishedVersion = published.String
		rec.Alert = domain.AlertType(alert)
		rec.Reason = domain.Reason(reason.String)
		rec.CheckedAt = rec.CheckedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PurgeChecks deletes check log entries older than olderThan and returns how
// many were removed.
func (s *Store) PurgeChecks(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM check_log WHERE checked_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nullIfBlank stores absent published versions and reasons as NULL.
func nullIfBlank(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
