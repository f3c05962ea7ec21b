package ports

import (
	"context"

	"github.com/ersonp/review-core/internal/domain/entities"
)

// PermissionChecker resolves the vote range a user may cast in a category.
type PermissionChecker interface {
	Range(ctx context.Context, user entities.User, project, category string) (entities.PermissionRange, error)
}
