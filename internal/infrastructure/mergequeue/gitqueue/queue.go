package gitqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	logging "github.com/op/go-logging"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

var log = logging.MustGetLogger("gitqueue")

var _ ports.MergeQueue = (*Queue)(nil)

// Queue merges SUBMITTED changes by fast-forwarding their destination
// branch. A change is merged once every parent of its commit is already in
// the branch history; anything else stays SUBMITTED for a later pass.
type Queue struct {
	store  ports.ChangeStore
	locker ports.BranchLocker
	open   OpenFunc
	now    func() time.Time
}

// NewQueue creates a new Queue.
func NewQueue(store ports.ChangeStore, locker ports.BranchLocker, open OpenFunc) *Queue {
	return &Queue{
		store:  store,
		locker: locker,
		open:   open,
		now:    time.Now,
	}
}

// Merge merges every mergeable SUBMITTED change on dest, repeating until a
// pass makes no progress.
func (q *Queue) Merge(ctx context.Context, dest entities.Branch) error {
	unlock, err := q.locker.Lock(ctx, dest)
	if err != nil {
		return err
	}
	defer unlock()

	repo, err := q.open(dest.Project)
	if err != nil {
		return err
	}

	for pass := 1; ; pass++ {
		merged, err := q.mergePass(ctx, repo, dest)
		if err != nil {
			return err
		}
		log.Debugf("merge pass %d on %s merged %d change(s)", pass, dest, merged)
		if merged == 0 {
			return nil
		}
	}
}

func (q *Queue) mergePass(ctx context.Context, repo *git.Repository, dest entities.Branch) (int, error) {
	submitted, err := q.store.ListChangesByStatus(ctx, dest, entities.StatusSubmitted)
	if err != nil {
		return 0, fmt.Errorf("listing submitted changes on %s: %w", dest, err)
	}

	merged := 0
	for i := range submitted {
		ok, err := q.tryMerge(ctx, repo, &submitted[i])
		if err != nil {
			return merged, err
		}
		if ok {
			merged++
		}
	}
	return merged, nil
}

// tryMerge fast-forwards dest to change's current commit when possible.
func (q *Queue) tryMerge(ctx context.Context, repo *git.Repository, change *entities.Change) (bool, error) {
	ps, err := q.store.GetPatchSet(ctx, change.CurrentPatchSetID())
	if err != nil {
		return false, fmt.Errorf("loading patch set of change %d: %w", change.ID, err)
	}
	if ps == nil {
		log.Warningf("change %d has no current patch set, skipping", change.ID)
		return false, nil
	}

	commit, err := repo.CommitObject(plumbing.NewHash(ps.Revision))
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		log.Warningf("commit %s of change %d is not in %s", ps.Revision, change.ID, change.Dest.Project)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading commit %s: %w", ps.Revision, err)
	}

	refName := plumbing.ReferenceName(change.Dest.Name)
	tipRef, err := repo.Reference(refName, true)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		tipRef = nil
	case err != nil:
		return false, fmt.Errorf("reading %s: %w", change.Dest, err)
	}

	if tipRef == nil {
		blocked, err := q.hasOpenParent(ctx, change, commit)
		if err != nil || blocked {
			return false, err
		}
	} else {
		tip, err := repo.CommitObject(tipRef.Hash())
		if err != nil {
			return false, fmt.Errorf("reading tip of %s: %w", change.Dest, err)
		}

		contained, err := commit.IsAncestor(tip)
		if err != nil {
			return false, fmt.Errorf("checking %s against %s: %w", commit.Hash, change.Dest, err)
		}
		if contained {
			log.Infof("change %d already in %s", change.ID, change.Dest)
			return q.markMerged(ctx, change, commit.Hash)
		}

		ready, err := parentsIn(repo, commit, tip)
		if err != nil {
			return false, err
		}
		if !ready {
			log.Debugf("change %d does not sit on %s yet", change.ID, change.Dest)
			return false, nil
		}
		canFF, err := tip.IsAncestor(commit)
		if err != nil {
			return false, fmt.Errorf("checking fast-forward of %s: %w", change.Dest, err)
		}
		if !canFF {
			log.Infof("change %d needs a rebase onto %s", change.ID, change.Dest)
			return false, nil
		}
	}

	newRef := plumbing.NewHashReference(refName, commit.Hash)
	if err := repo.Storer.CheckAndSetReference(newRef, tipRef); err != nil {
		return false, fmt.Errorf("updating %s to %s: %w", change.Dest, commit.Hash, err)
	}
	log.Infof("fast-forwarded %s to %s for change %d", change.Dest, commit.Hash, change.ID)

	return q.markMerged(ctx, change, commit.Hash)
}

// parentsIn reports whether every parent of commit is reachable from tip.
func parentsIn(repo *git.Repository, commit, tip *object.Commit) (bool, error) {
	for _, ph := range commit.ParentHashes {
		if ph == tip.Hash {
			continue
		}
		parent, err := repo.CommitObject(ph)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("reading parent %s of %s: %w", ph, commit.Hash, err)
		}
		in, err := parent.IsAncestor(tip)
		if err != nil {
			return false, fmt.Errorf("checking parent %s: %w", ph, err)
		}
		if !in {
			return false, nil
		}
	}
	return true, nil
}

// hasOpenParent reports whether a parent of commit is the revision of a
// change on the same branch that is not merged yet.
func (q *Queue) hasOpenParent(ctx context.Context, change *entities.Change, commit *object.Commit) (bool, error) {
	for _, ph := range commit.ParentHashes {
		patchSets, err := q.store.PatchSetsByRevision(ctx, ph.String())
		if err != nil {
			return false, fmt.Errorf("looking up parent %s: %w", ph, err)
		}
		for _, ps := range patchSets {
			parent, err := q.store.GetChange(ctx, ps.ID.ChangeID)
			if err != nil {
				return false, fmt.Errorf("loading change %d: %w", ps.ID.ChangeID, err)
			}
			if parent != nil && parent.ID != change.ID && parent.Dest == change.Dest && parent.Status != entities.StatusMerged {
				log.Debugf("change %d waits on change %d to create %s", change.ID, parent.ID, change.Dest)
				return true, nil
			}
		}
	}
	return false, nil
}

// markMerged reports true only when this call moved the change to MERGED.
func (q *Queue) markMerged(ctx context.Context, change *entities.Change, revision plumbing.Hash) (bool, error) {
	var merged bool
	updated, err := q.store.AtomicUpdateChange(ctx, change.ID, func(c *entities.Change) bool {
		merged = c.Status == entities.StatusSubmitted
		if !merged {
			return false
		}
		c.Status = entities.StatusMerged
		c.Touch(q.now())
		return true
	})
	if err != nil {
		return false, fmt.Errorf("marking change %d merged: %w", change.ID, err)
	}
	if updated == nil || !merged {
		return false, nil
	}

	if err := q.store.LogAction(ctx, entities.ActionMerge, change.ID, map[string]any{
		"branch":   change.Dest.String(),
		"revision": revision.String(),
	}); err != nil {
		return false, fmt.Errorf("logging merge: %w", err)
	}
	return true, nil
}
