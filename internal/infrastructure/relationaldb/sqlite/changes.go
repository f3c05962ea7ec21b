package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

// maxUpdateAttempts bounds the optimistic retries of AtomicUpdateChange.
const maxUpdateAttempts = 3

// ErrConcurrentUpdate is returned when a change kept moving under AtomicUpdateChange.
var ErrConcurrentUpdate = errors.New("change updated concurrently")

const changeColumns = `id, change_key, project, dest_branch, owner, subject, status,
	current_patch_set, row_version, created_on, last_updated_on`

func scanChange(s scanner) (*entities.Change, error) {
	var c entities.Change
	var status string
	if err := s.Scan(
		&c.ID,
		&c.Key,
		&c.Dest.Project,
		&c.Dest.Name,
		&c.Owner,
		&c.Subject,
		&status,
		&c.CurrentPatchSet,
		&c.RowVersion,
		&c.CreatedOn,
		&c.LastUpdatedOn,
	); err != nil {
		return nil, err
	}
	c.Status = entities.ChangeStatus(status)
	return &c, nil
}

// GetChange finds a change by its numeric id.
func (r *Repository) GetChange(ctx context.Context, id int) (*entities.Change, error) {
	query := `SELECT ` + changeColumns + ` FROM changes WHERE id = ?`
	change, err := scanChange(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning change: %w", err)
	}
	return change, nil
}

// ChangesByKey finds all changes carrying the given Change-Id.
func (r *Repository) ChangesByKey(ctx context.Context, key string) ([]entities.Change, error) {
	query := `SELECT ` + changeColumns + ` FROM changes WHERE change_key = ? ORDER BY id`
	return r.queryChanges(ctx, query, key)
}

// SaveChange inserts or replaces a change.
func (r *Repository) SaveChange(ctx context.Context, change *entities.Change) error {
	query := `
		INSERT INTO changes (` + changeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			change_key = excluded.change_key,
			project = excluded.project,
			dest_branch = excluded.dest_branch,
			owner = excluded.owner,
			subject = excluded.subject,
			status = excluded.status,
			current_patch_set = excluded.current_patch_set,
			row_version = changes.row_version + 1,
			last_updated_on = excluded.last_updated_on
	`
	_, err := r.db.ExecContext(ctx, query,
		change.ID,
		change.Key,
		change.Dest.Project,
		change.Dest.Name,
		change.Owner,
		change.Subject,
		string(change.Status),
		change.CurrentPatchSet,
		change.RowVersion,
		change.CreatedOn,
		change.LastUpdatedOn,
	)
	if err != nil {
		return fmt.Errorf("saving change: %w", err)
	}
	return nil
}

// NextChangeID allocates a new change number, above any stored change.
func (r *Repository) NextChangeID(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var last, highest int
	err = tx.QueryRowContext(ctx, `SELECT last_id FROM change_id_seq WHERE name = 'changes'`).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("reading change sequence: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM changes`).Scan(&highest); err != nil {
		return 0, fmt.Errorf("reading highest change id: %w", err)
	}

	next := max(last, highest) + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO change_id_seq (name, last_id) VALUES ('changes', ?)
		ON CONFLICT(name) DO UPDATE SET last_id = excluded.last_id
	`, next)
	if err != nil {
		return 0, fmt.Errorf("advancing change sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing change sequence: %w", err)
	}
	return next, nil
}

// AtomicUpdateChange loads the change, applies fn and writes the result in
// one transaction. The write is guarded by row_version; when another writer
// got there first the whole read-modify-write is retried, so fn may run
// more than once.
func (r *Repository) AtomicUpdateChange(ctx context.Context, id int, fn ports.ChangeUpdateFunc) (*entities.Change, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		change, conflict, err := r.tryUpdateChange(ctx, id, fn)
		if err != nil {
			return nil, err
		}
		if !conflict {
			return change, nil
		}
	}
	return nil, fmt.Errorf("updating change %d: %w", id, ErrConcurrentUpdate)
}

func (r *Repository) tryUpdateChange(ctx context.Context, id int, fn ports.ChangeUpdateFunc) (*entities.Change, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanChange(tx.QueryRowContext(ctx, `SELECT `+changeColumns+` FROM changes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scanning change: %w", err)
	}

	working := *current
	if !fn(&working) {
		return current, false, nil
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE changes SET
			change_key = ?, project = ?, dest_branch = ?, owner = ?, subject = ?,
			status = ?, current_patch_set = ?, last_updated_on = ?,
			row_version = row_version + 1
		WHERE id = ? AND row_version = ?
	`,
		working.Key,
		working.Dest.Project,
		working.Dest.Name,
		working.Owner,
		working.Subject,
		string(working.Status),
		working.CurrentPatchSet,
		working.LastUpdatedOn,
		id,
		current.RowVersion,
	)
	if err != nil {
		return nil, false, fmt.Errorf("updating change: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return nil, true, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing change update: %w", err)
	}

	working.RowVersion = current.RowVersion + 1
	return &working, false, nil
}

// ListChangesByStatus lists changes for a destination branch in a status.
func (r *Repository) ListChangesByStatus(ctx context.Context, dest entities.Branch, status entities.ChangeStatus) ([]entities.Change, error) {
	query := `
		SELECT ` + changeColumns + `
		FROM changes
		WHERE project = ? AND dest_branch = ? AND status = ?
		ORDER BY id
	`
	return r.queryChanges(ctx, query, dest.Project, dest.Name, string(status))
}

// ListChanges lists changes, newest first. An empty status lists all.
func (r *Repository) ListChanges(ctx context.Context, status entities.ChangeStatus, limit, offset int) ([]entities.Change, error) {
	query := `
		SELECT ` + changeColumns + `
		FROM changes
		WHERE (? = '' OR status = ?)
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`
	return r.queryChanges(ctx, query, string(status), string(status), noLimit(limit), offset)
}

// queryChanges is a helper to execute change queries.
func (r *Repository) queryChanges(ctx context.Context, query string, args ...any) ([]entities.Change, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	changes := make([]entities.Change, 0, 16)
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning change: %w", err)
		}
		changes = append(changes, *c)
	}
	return changes, rows.Err()
}
