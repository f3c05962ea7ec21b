// Package mocks provides in-memory implementations of the domain ports for tests.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

// ChangeStore is an in-memory implementation of ports.ChangeStore.
type ChangeStore struct {
	mu         sync.Mutex
	Changes    map[int]*entities.Change
	PatchSets  map[entities.PatchSetID]*entities.PatchSet
	Ancestors  map[entities.PatchSetID][]entities.PatchSetAncestor
	Approvals  map[entities.ApprovalKey]entities.PatchSetApproval
	Categories map[string]*entities.ApprovalCategory
	Rights     []entities.AccessRight
	Audit      []entities.AuditEntry

	// Err, when set, is returned by every operation.
	Err error
	// UpsertCalls counts UpsertApprovals invocations.
	UpsertCalls int
	// StatusWrites counts AtomicUpdateChange calls that wrote a row.
	StatusWrites int
	// OnAtomicUpdate, when set, sees the stored change before each
	// AtomicUpdateChange applies its fn, to stand in for a concurrent writer.
	OnAtomicUpdate func(stored *entities.Change)

	nextID int
}

var _ ports.ChangeStore = (*ChangeStore)(nil)

// NewChangeStore creates a new mock ChangeStore.
func NewChangeStore() *ChangeStore {
	return &ChangeStore{
		Changes:    make(map[int]*entities.Change),
		PatchSets:  make(map[entities.PatchSetID]*entities.PatchSet),
		Ancestors:  make(map[entities.PatchSetID][]entities.PatchSetAncestor),
		Approvals:  make(map[entities.ApprovalKey]entities.PatchSetApproval),
		Categories: make(map[string]*entities.ApprovalCategory),
		nextID:     1,
	}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *ChangeStore) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *ChangeStore) Close() error {
	return nil
}

// Change methods.

// GetChange finds a change by its numeric id.
func (m *ChangeStore) GetChange(_ context.Context, id int) (*entities.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.Changes[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// ChangesByKey finds all changes carrying the given Change-Id.
func (m *ChangeStore) ChangesByKey(_ context.Context, key string) ([]entities.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.Change, 0, 1)
	for _, c := range m.Changes {
		if c.Key == key {
			result = append(result, *c)
		}
	}
	sortChanges(result)
	return result, nil
}

// SaveChange inserts or replaces a change.
func (m *ChangeStore) SaveChange(_ context.Context, change *entities.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *change
	m.Changes[change.ID] = &cp
	if change.ID >= m.nextID {
		m.nextID = change.ID + 1
	}
	return nil
}

// NextChangeID allocates a new change number.
func (m *ChangeStore) NextChangeID(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	id := m.nextID
	m.nextID++
	return id, nil
}

// AtomicUpdateChange applies fn to the stored change under the store lock.
func (m *ChangeStore) AtomicUpdateChange(_ context.Context, id int, fn ports.ChangeUpdateFunc) (*entities.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.Changes[id]
	if !ok {
		return nil, nil
	}
	if m.OnAtomicUpdate != nil {
		m.OnAtomicUpdate(c)
	}
	working := *c
	if fn(&working) {
		working.RowVersion++
		m.Changes[id] = &working
		m.StatusWrites++
	}
	cp := *m.Changes[id]
	return &cp, nil
}

// ListChangesByStatus lists changes for a destination branch in a status.
func (m *ChangeStore) ListChangesByStatus(_ context.Context, dest entities.Branch, status entities.ChangeStatus) ([]entities.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.Change
	for _, c := range m.Changes {
		if c.Dest == dest && c.Status == status {
			result = append(result, *c)
		}
	}
	sortChanges(result)
	return result, nil
}

// ListChanges lists changes, newest first.
func (m *ChangeStore) ListChanges(_ context.Context, status entities.ChangeStatus, limit, offset int) ([]entities.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var all []entities.Change
	for _, c := range m.Changes {
		if status == "" || c.Status == status {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return []entities.Change{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Patch set methods.

// GetPatchSet finds a patch set by id.
func (m *ChangeStore) GetPatchSet(_ context.Context, id entities.PatchSetID) (*entities.PatchSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	ps, ok := m.PatchSets[id]
	if !ok {
		return nil, nil
	}
	cp := *ps
	return &cp, nil
}

// SavePatchSet inserts or replaces a patch set.
func (m *ChangeStore) SavePatchSet(_ context.Context, ps *entities.PatchSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *ps
	m.PatchSets[ps.ID] = &cp
	return nil
}

// ListPatchSets lists all patch sets of a change in order.
func (m *ChangeStore) ListPatchSets(_ context.Context, changeID int) ([]entities.PatchSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.PatchSet
	for id, ps := range m.PatchSets {
		if id.ChangeID == changeID {
			result = append(result, *ps)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.PatchSet < result[j].ID.PatchSet })
	return result, nil
}

// PatchSetsByRevision finds patch sets whose commit is revision.
func (m *ChangeStore) PatchSetsByRevision(_ context.Context, revision string) ([]entities.PatchSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.PatchSet
	for _, ps := range m.PatchSets {
		if ps.Revision == revision {
			result = append(result, *ps)
		}
	}
	sort.Slice(result, func(i, j int) bool { return lessPatchSetID(result[i].ID, result[j].ID) })
	return result, nil
}

// Ancestry methods.

// SaveAncestors replaces the ancestor edges of a patch set.
func (m *ChangeStore) SaveAncestors(_ context.Context, id entities.PatchSetID, ancestors []entities.PatchSetAncestor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Ancestors[id] = append([]entities.PatchSetAncestor(nil), ancestors...)
	return nil
}

// AncestorsOf lists the parent edges of a patch set.
func (m *ChangeStore) AncestorsOf(_ context.Context, id entities.PatchSetID) ([]entities.PatchSetAncestor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	result := append([]entities.PatchSetAncestor(nil), m.Ancestors[id]...)
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

// DescendantsOf lists edges whose ancestor revision is revision.
func (m *ChangeStore) DescendantsOf(_ context.Context, revision string) ([]entities.PatchSetAncestor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.PatchSetAncestor
	for _, edges := range m.Ancestors {
		for _, a := range edges {
			if a.AncestorRevision == revision {
				result = append(result, a)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return lessPatchSetID(result[i].PatchSet, result[j].PatchSet) })
	return result, nil
}

// Approval methods.

// ListApprovals lists every vote on a patch set.
func (m *ChangeStore) ListApprovals(_ context.Context, id entities.PatchSetID) ([]entities.PatchSetApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.PatchSetApproval
	for k, a := range m.Approvals {
		if k.PatchSet == id {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Key.Category != result[j].Key.Category {
			return result[i].Key.Category < result[j].Key.Category
		}
		return result[i].Key.User < result[j].Key.User
	})
	return result, nil
}

// UpsertApprovals inserts or updates votes.
func (m *ChangeStore) UpsertApprovals(_ context.Context, approvals []entities.PatchSetApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.UpsertCalls++
	for _, a := range approvals {
		m.Approvals[a.Key] = a
	}
	return nil
}

// Category methods.

// ListApprovalCategories lists categories ordered by position descending.
func (m *ChangeStore) ListApprovalCategories(_ context.Context) ([]entities.ApprovalCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.ApprovalCategory, 0, len(m.Categories))
	for _, c := range m.Categories {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position > result[j].Position
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SaveApprovalCategory inserts or updates a category.
func (m *ChangeStore) SaveApprovalCategory(_ context.Context, category *entities.ApprovalCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *category
	m.Categories[category.ID] = &cp
	return nil
}

// Access right methods.

// SaveAccessRight inserts or updates a right.
func (m *ChangeStore) SaveAccessRight(_ context.Context, right *entities.AccessRight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := range m.Rights {
		r := &m.Rights[i]
		if r.Project == right.Project && r.Category == right.Category && r.Group == right.Group {
			*r = *right
			return nil
		}
	}
	m.Rights = append(m.Rights, *right)
	return nil
}

// ListAccessRights lists rights for a category on the project and on AllProjects.
func (m *ChangeStore) ListAccessRights(_ context.Context, project, category string) ([]entities.AccessRight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.AccessRight
	for _, r := range m.Rights {
		if r.Category == category && (r.Project == project || r.Project == entities.AllProjects) {
			result = append(result, r)
		}
	}
	return result, nil
}

// Audit log methods.

// LogAction logs an action to the audit log.
func (m *ChangeStore) LogAction(_ context.Context, action string, changeID int, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:        int64(len(m.Audit) + 1),
		Action:    action,
		ChangeID:  changeID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

// FindAuditLog finds audit log entries for a change, newest first.
func (m *ChangeStore) FindAuditLog(_ context.Context, changeID int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if e := m.Audit[i]; e.ChangeID == changeID {
			result = append(result, e)
		}
	}
	return result, nil
}

// FindAuditLogByAction finds audit log entries by action type, newest first.
func (m *ChangeStore) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if e := m.Audit[i]; e.Action == action {
			result = append(result, e)
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func sortChanges(changes []entities.Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
}

func lessPatchSetID(a, b entities.PatchSetID) bool {
	if a.ChangeID != b.ChangeID {
		return a.ChangeID < b.ChangeID
	}
	return a.PatchSet < b.PatchSet
}
