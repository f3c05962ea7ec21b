package sqlite

import (
	"context"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/entities"
)

// ListApprovals lists every vote on a patch set.
func (r *Repository) ListApprovals(ctx context.Context, id entities.PatchSetID) ([]entities.PatchSetApproval, error) {
	query := `
		SELECT change_id, patch_set_id, account, category_id, value, granted
		FROM patch_set_approvals
		WHERE change_id = ? AND patch_set_id = ?
		ORDER BY category_id, account
	`
	rows, err := r.db.QueryContext(ctx, query, id.ChangeID, id.PatchSet)
	if err != nil {
		return nil, fmt.Errorf("querying approvals: %w", err)
	}
	defer rows.Close()

	var approvals []entities.PatchSetApproval
	for rows.Next() {
		var a entities.PatchSetApproval
		if err := rows.Scan(
			&a.Key.PatchSet.ChangeID,
			&a.Key.PatchSet.PatchSet,
			&a.Key.User,
			&a.Key.Category,
			&a.Value,
			&a.Granted,
		); err != nil {
			return nil, fmt.Errorf("scanning approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// UpsertApprovals inserts or updates votes keyed by (patch set, user, category).
func (r *Repository) UpsertApprovals(ctx context.Context, approvals []entities.PatchSetApproval) error {
	if len(approvals) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patch_set_approvals (change_id, patch_set_id, account, category_id, value, granted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(change_id, patch_set_id, account, category_id) DO UPDATE SET
			value = excluded.value,
			granted = excluded.granted
	`)
	if err != nil {
		return fmt.Errorf("preparing approval upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range approvals {
		if _, err := stmt.ExecContext(ctx,
			a.Key.PatchSet.ChangeID,
			a.Key.PatchSet.PatchSet,
			a.Key.User,
			a.Key.Category,
			a.Value,
			a.Granted,
		); err != nil {
			return fmt.Errorf("saving approval %s/%s on %s: %w", a.Key.User, a.Key.Category, a.Key.PatchSet, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing approvals: %w", err)
	}
	return nil
}

// ListApprovalCategories lists categories ordered by position descending.
func (r *Repository) ListApprovalCategories(ctx context.Context) ([]entities.ApprovalCategory, error) {
	query := `
		SELECT id, name, position, function_name, min_value, max_value
		FROM approval_categories
		ORDER BY position DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying approval categories: %w", err)
	}
	defer rows.Close()

	categories := make([]entities.ApprovalCategory, 0, 4)
	for rows.Next() {
		var c entities.ApprovalCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Position, &c.Function, &c.MinValue, &c.MaxValue); err != nil {
			return nil, fmt.Errorf("scanning approval category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SaveApprovalCategory inserts or updates a category.
func (r *Repository) SaveApprovalCategory(ctx context.Context, category *entities.ApprovalCategory) error {
	query := `
		INSERT INTO approval_categories (id, name, position, function_name, min_value, max_value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			position = excluded.position,
			function_name = excluded.function_name,
			min_value = excluded.min_value,
			max_value = excluded.max_value
	`
	_, err := r.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Position,
		category.Function,
		category.MinValue,
		category.MaxValue,
	)
	if err != nil {
		return fmt.Errorf("saving approval category: %w", err)
	}
	return nil
}
