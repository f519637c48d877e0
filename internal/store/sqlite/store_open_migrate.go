// Package sqlite implements the siren history store backed by a SQLite
// database. It keeps per-app prompt history and an audit log of checks.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrHistoryConflict is returned when an optimistic history update keeps
// losing to concurrent writers.
var ErrHistoryConflict = errors.New("history changed concurrently")

// Store wraps a SQLite database connection for all siren persistence.
type Store struct {
	db *sql.DB

	loadHistoryStmt *sql.Stmt
	listChecksStmt  *sql.Stmt

	maxUpdateAttempts int
}

const defaultMaxOpenConns = 4
const defaultMaxIdleConns = 4
const defaultMaxUpdateAttempts = 8

const loadHistoryQuery = `SELECT skipped_version, last_prompt_at, revision FROM update_history WHERE app_id = ?`
const listChecksQuery = `
SELECT id, app_id, installed_version, published_version, alert, reason, checked_at
FROM check_log
WHERE app_id = ?
ORDER BY checked_at DESC, id DESC
LIMIT ?`

// OpenOptions controls SQLite connection pool sizing.
type OpenOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	// MaxUpdateAttempts bounds optimistic retries in History().Update.
	MaxUpdateAttempts int
}

// Open creates or opens the SQLite database at path, runs migrations, and
// enables WAL mode.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, OpenOptions{})
}

// OpenWithOptions creates or opens the SQLite database at path with tunable
// pool settings, runs migrations, and enables WAL mode.
func OpenWithOptions(path string, opts OpenOptions) (*Store, error) {
	if err := createParentDir(path); err != nil {
		return nil, err
	}
	// Per-connection PRAGMAs go into the DSN so every pooled connection gets them.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	maxOpenConns := opts.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = defaultMaxOpenConns
	}
	maxIdleConns := opts.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = defaultMaxIdleConns
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite setup (journal_mode): %w", err)
	}

	attempts := opts.MaxUpdateAttempts
	if attempts <= 0 {
		attempts = defaultMaxUpdateAttempts
	}
	s := &Store{db: db, maxUpdateAttempts: attempts}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.prepareStatements(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	stmtErr := s.closePreparedStatements()
	return errors.Join(stmtErr, s.db.Close())
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error
	if s.loadHistoryStmt, err = s.db.PrepareContext(ctx, loadHistoryQuery); err != nil {
		return fmt.Errorf("prepare load history query: %w", err)
	}
	if s.listChecksStmt, err = s.db.PrepareContext(ctx, listChecksQuery); err != nil {
		closeErr := s.closePreparedStatements()
		return errors.Join(fmt.Errorf("prepare list checks query: %w", err), closeErr)
	}
	return nil
}

func (s *Store) closePreparedStatements() error {
	var err error
	err = errors.Join(err, closeStmt(&s.loadHistoryStmt))
	err = errors.Join(err, closeStmt(&s.listChecksStmt))
	return err
}

func closeStmt(stmt **sql.Stmt) error {
	if stmt == nil || *stmt == nil {
		return nil
	}
	err := (*stmt).Close()
	*stmt = nil
	return err
}

// Migrate creates all required tables and indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS update_history (
	app_id TEXT PRIMARY KEY,
	skipped_version TEXT NOT NULL DEFAULT '',
	last_prompt_at DATETIME NULL,
	revision INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS check_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	app_id TEXT NOT NULL,
	installed_version TEXT NOT NULL,
	published_version TEXT NULL,
	alert TEXT NOT NULL,
	reason TEXT NULL,
	checked_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_check_log_app_checked_at ON check_log(app_id, checked_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_check_log_checked_at ON check_log(checked_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	return nil
}

// createParentDir makes the directory of a file database. In-memory and
// URI paths are left to the driver.
func createParentDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
