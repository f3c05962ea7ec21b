package ports

import (
	"context"
	"errors"

	"github.com/ersonp/review-core/internal/domain/entities"
)

// ErrLockHeld is returned when a branch lock could not be acquired in time.
var ErrLockHeld = errors.New("branch lock held")

// MergeQueue merges submitted changes into their destination branch.
// Merge is branch-wide: every mergeable SUBMITTED change on the branch is
// merged, not only the one that triggered the call. Calling it repeatedly
// for the same branch is safe.
type MergeQueue interface {
	Merge(ctx context.Context, dest entities.Branch) error
}

// BranchLocker serializes merges per destination branch.
type BranchLocker interface {
	// Lock blocks until the branch lock is held or ctx is done.
	// The returned function releases the lock.
	Lock(ctx context.Context, dest entities.Branch) (unlock func(), err error)
}
