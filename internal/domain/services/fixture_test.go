package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/mocks"
)

var master = entities.NewBranch("tools", "master")

const (
	submitter = "alice"
	reviewer  = "rita"
)

type fixture struct {
	store *mocks.ChangeStore
	perms *mocks.PermissionChecker
	queue *mocks.MergeQueue
	svc   *SubmitService
}

// newFixture wires a SubmitService over the in-memory mocks. When merging is
// true the merge queue marks ready changes MERGED.
func newFixture(t *testing.T, merging bool) *fixture {
	t.Helper()

	store := mocks.NewChangeStore()
	for i := range entities.DefaultApprovalCategories {
		require.NoError(t, store.SaveApprovalCategory(context.Background(), &entities.DefaultApprovalCategories[i]))
	}

	perms := mocks.NewPermissionChecker().
		Grant(submitter, entities.SubmitCategory, 0, 1).
		Grant(submitter, entities.CodeReviewCategory, -2, 2).
		Grant(reviewer, entities.CodeReviewCategory, -2, 2)

	queue := &mocks.MergeQueue{}
	if merging {
		queue.Store = store
	}

	deps := NewDependencyService(store)
	normalizer := NewApprovalNormalizer(store, perms, NewDefaultFunctionRegistry(), "")

	return &fixture{
		store: store,
		perms: perms,
		queue: queue,
		svc:   NewSubmitService(store, deps, normalizer, queue),
	}
}

func rev(id int) string {
	return fmt.Sprintf("%040d", id)
}

// addChange stores change id on master with one patch set whose commit is
// rev(id) and whose parents are rev(p) for each p.
func (f *fixture) addChange(t *testing.T, id int, status entities.ChangeStatus, parents ...int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, f.store.SaveChange(ctx, &entities.Change{
		ID:              id,
		Key:             fmt.Sprintf("I%040d", id),
		Dest:            master,
		Owner:           submitter,
		Subject:         fmt.Sprintf("Change %d", id),
		Status:          status,
		CurrentPatchSet: 1,
		CreatedOn:       now,
		LastUpdatedOn:   now,
	}))

	psID := entities.PatchSetID{ChangeID: id, PatchSet: 1}
	require.NoError(t, f.store.SavePatchSet(ctx, &entities.PatchSet{ID: psID, Revision: rev(id), Uploader: submitter, CreatedOn: now}))

	ancestors := make([]entities.PatchSetAncestor, 0, len(parents))
	for i, p := range parents {
		ancestors = append(ancestors, entities.PatchSetAncestor{PatchSet: psID, Position: i + 1, AncestorRevision: rev(p)})
	}
	require.NoError(t, f.store.SaveAncestors(ctx, psID, ancestors))
}

// approve gives change id the Code Review and Verified votes submit needs.
func (f *fixture) approve(t *testing.T, id int) {
	t.Helper()
	f.vote(t, id, reviewer, entities.CodeReviewCategory, 2)
	f.vote(t, id, reviewer, entities.VerifiedCategory, 1)
}

func (f *fixture) vote(t *testing.T, id int, user, category string, value int16) {
	t.Helper()
	require.NoError(t, f.store.UpsertApprovals(context.Background(), []entities.PatchSetApproval{{
		Key:     entities.ApprovalKey{PatchSet: entities.PatchSetID{ChangeID: id, PatchSet: 1}, User: user, Category: category},
		Value:   value,
		Granted: time.Now(),
	}}))
	f.store.UpsertCalls = 0
}

func (f *fixture) submit(t *testing.T, id int) *SubmitResult {
	t.Helper()
	result, err := f.svc.Submit(context.Background(), SubmitRequest{
		PatchSet: entities.PatchSetID{ChangeID: id, PatchSet: 1},
		User:     entities.User{Name: submitter},
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) status(t *testing.T, id int) entities.ChangeStatus {
	t.Helper()
	c, err := f.store.GetChange(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c.Status
}
