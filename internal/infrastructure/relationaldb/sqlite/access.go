package sqlite

import (
	"context"
	"fmt"
	"slices"

	"github.com/ersonp/review-core/internal/domain/entities"
)

// SaveAccessRight inserts or updates a right keyed by (project, category, group).
func (r *Repository) SaveAccessRight(ctx context.Context, right *entities.AccessRight) error {
	query := `
		INSERT INTO access_rights (project, category_id, group_name, min_value, max_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project, category_id, group_name) DO UPDATE SET
			min_value = excluded.min_value,
			max_value = excluded.max_value
	`
	_, err := r.db.ExecContext(ctx, query,
		right.Project,
		right.Category,
		right.Group,
		right.MinValue,
		right.MaxValue,
	)
	if err != nil {
		return fmt.Errorf("saving access right: %w", err)
	}
	return nil
}

// ListAccessRights lists rights for a category on the project and on AllProjects.
func (r *Repository) ListAccessRights(ctx context.Context, project, category string) ([]entities.AccessRight, error) {
	query := `
		SELECT project, category_id, group_name, min_value, max_value
		FROM access_rights
		WHERE category_id = ? AND (project = ? OR project = ?)
		ORDER BY project, group_name
	`
	rows, err := r.db.QueryContext(ctx, query, category, project, entities.AllProjects)
	if err != nil {
		return nil, fmt.Errorf("querying access rights: %w", err)
	}
	defer rows.Close()

	var rights []entities.AccessRight
	for rows.Next() {
		var a entities.AccessRight
		if err := rows.Scan(&a.Project, &a.Category, &a.Group, &a.MinValue, &a.MaxValue); err != nil {
			return nil, fmt.Errorf("scanning access right: %w", err)
		}
		rights = append(rights, a)
	}
	return rights, rows.Err()
}

// Range returns the widest range any of the user's groups is granted in the
// category, on the project or on all projects. A user without rights gets
// the empty range.
func (r *Repository) Range(ctx context.Context, user entities.User, project, category string) (entities.PermissionRange, error) {
	rights, err := r.ListAccessRights(ctx, project, category)
	if err != nil {
		return entities.PermissionRange{}, err
	}

	groups := user.EffectiveGroups()
	var result entities.PermissionRange
	found := false
	for _, right := range rights {
		if !slices.Contains(groups, right.Group) {
			continue
		}
		if !found {
			result = entities.PermissionRange{Min: right.MinValue, Max: right.MaxValue}
			found = true
			continue
		}
		result.Min = min(result.Min, right.MinValue)
		result.Max = max(result.Max, right.MaxValue)
	}
	return result, nil
}
