package services

import (
	"context"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

// DependencyService computes the direct prerequisites and dependents of a
// change from the patch set ancestry edges. Both lookups are one hop; the
// submit cascade gets transitivity by re-resolving at every step.
type DependencyService struct {
	store ports.ChangeStore
}

// NewDependencyService creates a new DependencyService.
func NewDependencyService(store ports.ChangeStore) *DependencyService {
	return &DependencyService{store: store}
}

// DependsOn returns the open changes that must merge before change can.
// Changes already MERGED or SUBMITTED are not included, nor are changes in
// other projects. The result is never nil.
func (s *DependencyService) DependsOn(ctx context.Context, change *entities.Change) ([]entities.Change, error) {
	ancestors, err := s.store.AncestorsOf(ctx, change.CurrentPatchSetID())
	if err != nil {
		return nil, fmt.Errorf("listing ancestors of %s: %w", change.CurrentPatchSetID(), err)
	}

	result := make([]entities.Change, 0, len(ancestors))
	seen := map[int]bool{change.ID: true}
	for _, a := range ancestors {
		patchSets, err := s.store.PatchSetsByRevision(ctx, a.AncestorRevision)
		if err != nil {
			return nil, fmt.Errorf("finding patch sets for revision %s: %w", a.AncestorRevision, err)
		}
		for _, ps := range patchSets {
			if seen[ps.ID.ChangeID] {
				continue
			}
			seen[ps.ID.ChangeID] = true

			dep, err := s.store.GetChange(ctx, ps.ID.ChangeID)
			if err != nil {
				return nil, fmt.Errorf("loading change %d: %w", ps.ID.ChangeID, err)
			}
			if dep == nil || dep.Project() != change.Project() {
				continue
			}
			if dep.Status == entities.StatusMerged || dep.Status == entities.StatusSubmitted {
				continue
			}
			result = append(result, *dep)
		}
	}

	return result, nil
}

// NeededBy returns the changes whose current patch set has change's current
// revision as a parent. The result is never nil.
func (s *DependencyService) NeededBy(ctx context.Context, change *entities.Change) ([]entities.Change, error) {
	ps, err := s.store.GetPatchSet(ctx, change.CurrentPatchSetID())
	if err != nil {
		return nil, fmt.Errorf("loading patch set %s: %w", change.CurrentPatchSetID(), err)
	}
	if ps == nil {
		return []entities.Change{}, nil
	}

	descendants, err := s.store.DescendantsOf(ctx, ps.Revision)
	if err != nil {
		return nil, fmt.Errorf("listing descendants of %s: %w", ps.Revision, err)
	}

	result := make([]entities.Change, 0, len(descendants))
	seen := map[int]bool{change.ID: true}
	for _, d := range descendants {
		if seen[d.PatchSet.ChangeID] {
			continue
		}

		dep, err := s.store.GetChange(ctx, d.PatchSet.ChangeID)
		if err != nil {
			return nil, fmt.Errorf("loading change %d: %w", d.PatchSet.ChangeID, err)
		}
		// An outdated patch set of the dependent no longer ties it to us.
		if dep == nil || dep.CurrentPatchSet != d.PatchSet.PatchSet {
			continue
		}
		if dep.Project() != change.Project() {
			continue
		}
		seen[dep.ID] = true
		result = append(result, *dep)
	}

	return result, nil
}
