// Package sqlite provides a SQLite implementation of the ChangeStore and
// PermissionChecker ports.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/review-core/internal/domain/ports"
	"github.com/ersonp/review-core/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

var (
	_ ports.ChangeStore       = (*Repository)(nil)
	_ ports.PermissionChecker = (*Repository)(nil)
)

// Repository implements ports.ChangeStore and ports.PermissionChecker using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.DatabaseConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", dataSourceName(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// connectionPragmas run on every pooled connection. busy_timeout comes first
// so the WAL switch waits for other writers.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
}

// dataSourceName builds the driver DSN for path. Transactions begin
// IMMEDIATE so a read-modify-write takes the write lock up front instead of
// failing with SQLITE_BUSY when it upgrades.
func dataSourceName(path string) string {
	params := make([]string, 0, len(connectionPragmas)+1)
	for _, p := range connectionPragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate")
	return path + "?" + strings.Join(params, "&")
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Changes (one per Change-Id and destination branch)
	CREATE TABLE IF NOT EXISTS changes (
		id INTEGER PRIMARY KEY,
		change_key TEXT NOT NULL,
		project TEXT NOT NULL,
		dest_branch TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		current_patch_set INTEGER NOT NULL DEFAULT 0,
		row_version INTEGER NOT NULL DEFAULT 0,
		created_on TIMESTAMP NOT NULL,
		last_updated_on TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_changes_key ON changes(change_key);
	CREATE INDEX IF NOT EXISTS idx_changes_dest ON changes(project, dest_branch, status);

	-- Change number allocation
	CREATE TABLE IF NOT EXISTS change_id_seq (
		name TEXT PRIMARY KEY,
		last_id INTEGER NOT NULL
	);

	-- Patch sets (one uploaded commit of a change)
	CREATE TABLE IF NOT EXISTS patch_sets (
		change_id INTEGER NOT NULL REFERENCES changes(id) ON DELETE CASCADE,
		patch_set_id INTEGER NOT NULL,
		revision TEXT NOT NULL,
		uploader TEXT NOT NULL DEFAULT '',
		created_on TIMESTAMP NOT NULL,
		PRIMARY KEY (change_id, patch_set_id)
	);
	CREATE INDEX IF NOT EXISTS idx_patch_sets_revision ON patch_sets(revision);

	-- Parent commits of each patch set
	CREATE TABLE IF NOT EXISTS patch_set_ancestors (
		change_id INTEGER NOT NULL,
		patch_set_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		ancestor_revision TEXT NOT NULL,
		PRIMARY KEY (change_id, patch_set_id, position),
		FOREIGN KEY (change_id, patch_set_id) REFERENCES patch_sets(change_id, patch_set_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_ancestors_revision ON patch_set_ancestors(ancestor_revision);

	-- Votes
	CREATE TABLE IF NOT EXISTS patch_set_approvals (
		change_id INTEGER NOT NULL REFERENCES changes(id) ON DELETE CASCADE,
		patch_set_id INTEGER NOT NULL,
		account TEXT NOT NULL,
		category_id TEXT NOT NULL,
		value INTEGER NOT NULL,
		granted TIMESTAMP NOT NULL,
		PRIMARY KEY (change_id, patch_set_id, account, category_id)
	);

	CREATE TABLE IF NOT EXISTS approval_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		function_name TEXT NOT NULL,
		min_value INTEGER NOT NULL,
		max_value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS access_rights (
		project TEXT NOT NULL,
		category_id TEXT NOT NULL,
		group_name TEXT NOT NULL,
		min_value INTEGER NOT NULL,
		max_value INTEGER NOT NULL,
		PRIMARY KEY (project, category_id, group_name)
	);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		change_id INTEGER,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_change ON audit_log(change_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// noLimit turns a non-positive limit into SQLite's "no limit".
func noLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
