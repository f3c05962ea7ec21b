package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/entities"
)

// GetPatchSet finds a patch set by id.
func (r *Repository) GetPatchSet(ctx context.Context, id entities.PatchSetID) (*entities.PatchSet, error) {
	query := `
		SELECT change_id, patch_set_id, revision, uploader, created_on
		FROM patch_sets
		WHERE change_id = ? AND patch_set_id = ?
	`
	var ps entities.PatchSet
	err := r.db.QueryRowContext(ctx, query, id.ChangeID, id.PatchSet).Scan(
		&ps.ID.ChangeID,
		&ps.ID.PatchSet,
		&ps.Revision,
		&ps.Uploader,
		&ps.CreatedOn,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning patch set: %w", err)
	}
	return &ps, nil
}

// SavePatchSet inserts or replaces a patch set.
func (r *Repository) SavePatchSet(ctx context.Context, ps *entities.PatchSet) error {
	query := `
		INSERT INTO patch_sets (change_id, patch_set_id, revision, uploader, created_on)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(change_id, patch_set_id) DO UPDATE SET
			revision = excluded.revision,
			uploader = excluded.uploader
	`
	_, err := r.db.ExecContext(ctx, query,
		ps.ID.ChangeID,
		ps.ID.PatchSet,
		ps.Revision,
		ps.Uploader,
		ps.CreatedOn,
	)
	if err != nil {
		return fmt.Errorf("saving patch set: %w", err)
	}
	return nil
}

// ListPatchSets lists all patch sets of a change in order.
func (r *Repository) ListPatchSets(ctx context.Context, changeID int) ([]entities.PatchSet, error) {
	query := `
		SELECT change_id, patch_set_id, revision, uploader, created_on
		FROM patch_sets
		WHERE change_id = ?
		ORDER BY patch_set_id
	`
	return r.queryPatchSets(ctx, query, changeID)
}

// PatchSetsByRevision finds patch sets whose commit is revision.
func (r *Repository) PatchSetsByRevision(ctx context.Context, revision string) ([]entities.PatchSet, error) {
	query := `
		SELECT change_id, patch_set_id, revision, uploader, created_on
		FROM patch_sets
		WHERE revision = ?
		ORDER BY change_id, patch_set_id
	`
	return r.queryPatchSets(ctx, query, revision)
}

func (r *Repository) queryPatchSets(ctx context.Context, query string, args ...any) ([]entities.PatchSet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying patch sets: %w", err)
	}
	defer rows.Close()

	var patchSets []entities.PatchSet
	for rows.Next() {
		var ps entities.PatchSet
		if err := rows.Scan(
			&ps.ID.ChangeID,
			&ps.ID.PatchSet,
			&ps.Revision,
			&ps.Uploader,
			&ps.CreatedOn,
		); err != nil {
			return nil, fmt.Errorf("scanning patch set: %w", err)
		}
		patchSets = append(patchSets, ps)
	}
	return patchSets, rows.Err()
}

// SaveAncestors replaces the ancestor edges of a patch set.
func (r *Repository) SaveAncestors(ctx context.Context, id entities.PatchSetID, ancestors []entities.PatchSetAncestor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM patch_set_ancestors WHERE change_id = ? AND patch_set_id = ?`,
		id.ChangeID, id.PatchSet,
	); err != nil {
		return fmt.Errorf("clearing ancestors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patch_set_ancestors (change_id, patch_set_id, position, ancestor_revision)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing ancestor insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range ancestors {
		if _, err := stmt.ExecContext(ctx, id.ChangeID, id.PatchSet, a.Position, a.AncestorRevision); err != nil {
			return fmt.Errorf("saving ancestor %d of %s: %w", a.Position, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ancestors: %w", err)
	}
	return nil
}

// AncestorsOf lists the parent edges of a patch set ordered by position.
func (r *Repository) AncestorsOf(ctx context.Context, id entities.PatchSetID) ([]entities.PatchSetAncestor, error) {
	query := `
		SELECT change_id, patch_set_id, position, ancestor_revision
		FROM patch_set_ancestors
		WHERE change_id = ? AND patch_set_id = ?
		ORDER BY position
	`
	return r.queryAncestors(ctx, query, id.ChangeID, id.PatchSet)
}

// DescendantsOf lists edges whose ancestor revision is revision.
func (r *Repository) DescendantsOf(ctx context.Context, revision string) ([]entities.PatchSetAncestor, error) {
	query := `
		SELECT change_id, patch_set_id, position, ancestor_revision
		FROM patch_set_ancestors
		WHERE ancestor_revision = ?
		ORDER BY change_id, patch_set_id
	`
	return r.queryAncestors(ctx, query, revision)
}

func (r *Repository) queryAncestors(ctx context.Context, query string, args ...any) ([]entities.PatchSetAncestor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ancestors: %w", err)
	}
	defer rows.Close()

	var ancestors []entities.PatchSetAncestor
	for rows.Next() {
		var a entities.PatchSetAncestor
		if err := rows.Scan(
			&a.PatchSet.ChangeID,
			&a.PatchSet.PatchSet,
			&a.Position,
			&a.AncestorRevision,
		); err != nil {
			return nil, fmt.Errorf("scanning ancestor: %w", err)
		}
		ancestors = append(ancestors, a)
	}
	return ancestors, rows.Err()
}
