package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/mocks"
	"github.com/ersonp/review-core/internal/domain/services"
)

var master = entities.NewBranch("tools", "master")

func rev(id int) string {
	return fmt.Sprintf("%040d", id)
}

// seededStore returns a mock store with the default categories.
func seededStore(t *testing.T) *mocks.ChangeStore {
	t.Helper()
	store := mocks.NewChangeStore()
	_, err := SeedDefaultCategories(context.Background(), store)
	require.NoError(t, err)
	return store
}

func addChange(t *testing.T, store *mocks.ChangeStore, id int, status entities.ChangeStatus, parents ...int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.SaveChange(ctx, &entities.Change{
		ID:              id,
		Key:             fmt.Sprintf("I%040d", id),
		Dest:            master,
		Owner:           "alice",
		Subject:         fmt.Sprintf("Change %d", id),
		Status:          status,
		CurrentPatchSet: 1,
		CreatedOn:       now,
		LastUpdatedOn:   now,
	}))

	psID := entities.PatchSetID{ChangeID: id, PatchSet: 1}
	require.NoError(t, store.SavePatchSet(ctx, &entities.PatchSet{ID: psID, Revision: rev(id), CreatedOn: now}))
	ancestors := make([]entities.PatchSetAncestor, 0, len(parents))
	for i, p := range parents {
		ancestors = append(ancestors, entities.PatchSetAncestor{PatchSet: psID, Position: i + 1, AncestorRevision: rev(p)})
	}
	require.NoError(t, store.SaveAncestors(ctx, psID, ancestors))
}

func approve(t *testing.T, store *mocks.ChangeStore, id int) {
	t.Helper()
	psID := entities.PatchSetID{ChangeID: id, PatchSet: 1}
	require.NoError(t, store.UpsertApprovals(context.Background(), []entities.PatchSetApproval{
		{Key: entities.ApprovalKey{PatchSet: psID, User: "rita", Category: entities.CodeReviewCategory}, Value: 2, Granted: time.Now()},
		{Key: entities.ApprovalKey{PatchSet: psID, User: "rita", Category: entities.VerifiedCategory}, Value: 1, Granted: time.Now()},
	}))
}

func newSubmitHandler(store *mocks.ChangeStore, queue *mocks.MergeQueue) *SubmitHandler {
	perms := mocks.NewPermissionChecker().Grant("alice", entities.SubmitCategory, 0, 1)
	deps := services.NewDependencyService(store)
	normalizer := services.NewApprovalNormalizer(store, perms, services.NewDefaultFunctionRegistry(), "")
	return NewSubmitHandler(store, services.NewSubmitService(store, deps, normalizer, queue))
}
