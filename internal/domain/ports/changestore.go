// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/review-core/internal/domain/entities"
)

// ChangeUpdateFunc mutates a change inside an atomic update.
// It returns false when nothing needs to be written.
type ChangeUpdateFunc func(change *entities.Change) bool

// ChangeStore defines the relational storage for changes, patch sets,
// ancestry edges and approvals. Lookups return (nil, nil) when the row
// does not exist.
type ChangeStore interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Change operations

	// GetChange finds a change by its numeric id.
	GetChange(ctx context.Context, id int) (*entities.Change, error)

	// ChangesByKey finds all changes carrying the given Change-Id.
	// Cherry-picks to other branches share a key, so several may match.
	ChangesByKey(ctx context.Context, key string) ([]entities.Change, error)

	// SaveChange inserts or replaces a change.
	SaveChange(ctx context.Context, change *entities.Change) error

	// NextChangeID allocates a new change number.
	NextChangeID(ctx context.Context) (int, error)

	// AtomicUpdateChange loads the change, applies fn and writes the result
	// if fn returned true, all within one transaction. The returned change
	// reflects the stored state. Returns (nil, nil) if the change is absent.
	AtomicUpdateChange(ctx context.Context, id int, fn ChangeUpdateFunc) (*entities.Change, error)

	// ListChangesByStatus lists changes for a destination branch in a status,
	// ordered by change id.
	ListChangesByStatus(ctx context.Context, dest entities.Branch, status entities.ChangeStatus) ([]entities.Change, error)

	// ListChanges lists changes, newest first. An empty status lists all.
	ListChanges(ctx context.Context, status entities.ChangeStatus, limit, offset int) ([]entities.Change, error)

	// Patch set operations

	// GetPatchSet finds a patch set by id.
	GetPatchSet(ctx context.Context, id entities.PatchSetID) (*entities.PatchSet, error)

	// SavePatchSet inserts or replaces a patch set.
	SavePatchSet(ctx context.Context, ps *entities.PatchSet) error

	// ListPatchSets lists all patch sets of a change in order.
	ListPatchSets(ctx context.Context, changeID int) ([]entities.PatchSet, error)

	// PatchSetsByRevision finds patch sets whose commit is revision.
	PatchSetsByRevision(ctx context.Context, revision string) ([]entities.PatchSet, error)

	// Ancestry operations

	// SaveAncestors replaces the ancestor edges of a patch set.
	SaveAncestors(ctx context.Context, id entities.PatchSetID, ancestors []entities.PatchSetAncestor) error

	// AncestorsOf lists the parent edges of a patch set ordered by position.
	AncestorsOf(ctx context.Context, id entities.PatchSetID) ([]entities.PatchSetAncestor, error)

	// DescendantsOf lists edges whose ancestor revision is revision.
	DescendantsOf(ctx context.Context, revision string) ([]entities.PatchSetAncestor, error)

	// Approval operations

	// ListApprovals lists every vote on a patch set.
	ListApprovals(ctx context.Context, id entities.PatchSetID) ([]entities.PatchSetApproval, error)

	// UpsertApprovals inserts or updates votes keyed by (patch set, user, category).
	UpsertApprovals(ctx context.Context, approvals []entities.PatchSetApproval) error

	// Approval category operations

	// ListApprovalCategories lists categories ordered by position descending.
	ListApprovalCategories(ctx context.Context) ([]entities.ApprovalCategory, error)

	// SaveApprovalCategory inserts or updates a category.
	SaveApprovalCategory(ctx context.Context, category *entities.ApprovalCategory) error

	// Access right operations

	// SaveAccessRight inserts or updates a right keyed by (project, category, group).
	SaveAccessRight(ctx context.Context, right *entities.AccessRight) error

	// ListAccessRights lists rights for a category on the project and on AllProjects.
	ListAccessRights(ctx context.Context, project, category string) ([]entities.AccessRight, error)

	// Audit log operations

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action string, changeID int, details map[string]any) error

	// FindAuditLog finds audit log entries for a change.
	FindAuditLog(ctx context.Context, changeID int) ([]entities.AuditEntry, error)

	// FindAuditLogByAction finds audit log entries by action type.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)
}
