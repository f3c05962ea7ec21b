package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

// MergeQueue is a mock implementation of ports.MergeQueue that records calls.
type MergeQueue struct {
	mu    sync.Mutex
	Calls []entities.Branch
	Err   error

	// Store, when set, makes Merge mark SUBMITTED changes on the branch as
	// MERGED once every change their current patch set descends from is
	// MERGED, the way a fast-forward queue would.
	Store *ChangeStore
}

var _ ports.MergeQueue = (*MergeQueue)(nil)

// Merge records the call and optionally merges ready changes.
func (m *MergeQueue) Merge(_ context.Context, dest entities.Branch) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, dest)
	m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.Store != nil {
		m.Store.mergeReady(dest)
	}
	return nil
}

// CallCount returns how many times Merge was called.
func (m *MergeQueue) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// mergeReady flips SUBMITTED changes on dest to MERGED until no more can go.
func (m *ChangeStore) mergeReady(dest entities.Branch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for progress := true; progress; {
		progress = false
		for _, c := range m.Changes {
			if c.Dest != dest || c.Status != entities.StatusSubmitted {
				continue
			}
			if !m.parentsMergedLocked(c) {
				continue
			}
			c.Status = entities.StatusMerged
			c.RowVersion++
			progress = true
		}
	}
}

func (m *ChangeStore) parentsMergedLocked(c *entities.Change) bool {
	for _, a := range m.Ancestors[c.CurrentPatchSetID()] {
		for id, ps := range m.PatchSets {
			if ps.Revision != a.AncestorRevision || id.ChangeID == c.ID {
				continue
			}
			parent, ok := m.Changes[id.ChangeID]
			if !ok || parent.Project() != c.Project() {
				continue
			}
			if parent.Status != entities.StatusMerged {
				return false
			}
		}
	}
	return true
}
