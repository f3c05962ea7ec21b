package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

var changeIDFooter = regexp.MustCompile(`(?m)^Change-Id:\s*(I[0-9a-f]{40})\s*$`)

// UploadRequest describes a commit pushed for review.
type UploadRequest struct {
	Project  string
	Branch   string
	Revision string
	User     entities.User
}

// UploadResult contains the result of an upload.
type UploadResult struct {
	Change   *entities.Change
	PatchSet *entities.PatchSet
	Created  bool // A new change was opened
}

// UploadService records pushed commits as patch sets and keeps the ancestry
// edges the dependency lookups read.
type UploadService struct {
	store   ports.ChangeStore
	commits ports.CommitReader
	now     func() time.Time
}

// NewUploadService creates a new UploadService.
func NewUploadService(store ports.ChangeStore, commits ports.CommitReader) *UploadService {
	return &UploadService{
		store:   store,
		commits: commits,
		now:     time.Now,
	}
}

// ChangeKey returns the Change-Id footer of a commit message, or a key
// derived from the commit hash when the footer is absent.
func ChangeKey(commit *ports.Commit) string {
	matches := changeIDFooter.FindAllStringSubmatch(commit.Message, -1)
	if len(matches) > 0 {
		return matches[len(matches)-1][1]
	}
	return "I" + commit.Hash
}

// Upload adds the commit as a new patch set of the change its Change-Id
// names on the branch, opening a new change if there is none.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	commit, err := s.commits.ReadCommit(ctx, req.Project, req.Revision)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", req.Revision, err)
	}

	dest := entities.NewBranch(req.Project, req.Branch)
	key := ChangeKey(commit)

	if err := s.checkNotUploaded(ctx, dest, commit.Hash); err != nil {
		return nil, err
	}

	existing, err := s.store.ChangesByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("finding changes for %s: %w", key, err)
	}

	var change *entities.Change
	for i := range existing {
		if existing[i].Dest == dest {
			change = &existing[i]
			break
		}
	}

	now := s.now()
	result := &UploadResult{}

	if change == nil {
		id, err := s.store.NextChangeID(ctx)
		if err != nil {
			return nil, fmt.Errorf("allocating change id: %w", err)
		}
		change = &entities.Change{
			ID:              id,
			Key:             key,
			Dest:            dest,
			Owner:           req.User.Name,
			Subject:         subjectOf(commit.Message),
			Status:          entities.StatusNew,
			CurrentPatchSet: 1,
			CreatedOn:       now,
			LastUpdatedOn:   now,
		}
		if err := s.store.SaveChange(ctx, change); err != nil {
			return nil, fmt.Errorf("saving change: %w", err)
		}
		result.Created = true
	} else if change.Status.IsClosed() {
		return nil, fmt.Errorf("%w: change %d is closed (%s)", ErrIllegalState, change.ID, change.Status)
	}

	// The patch set number is taken inside the atomic move, and rows that
	// point at the patch set are written only once the change accepted it.
	psID := entities.PatchSetID{ChangeID: change.ID, PatchSet: 1}
	if !result.Created {
		change, err = s.movePatchSet(ctx, change.ID, subjectOf(commit.Message))
		if err != nil {
			return nil, err
		}
		psID.PatchSet = change.CurrentPatchSet
	}

	ps := &entities.PatchSet{
		ID:        psID,
		Revision:  commit.Hash,
		Uploader:  req.User.Name,
		CreatedOn: now,
	}
	if err := s.store.SavePatchSet(ctx, ps); err != nil {
		return nil, fmt.Errorf("saving patch set %s: %w", psID, err)
	}

	ancestors := make([]entities.PatchSetAncestor, 0, len(commit.Parents))
	for i, parent := range commit.Parents {
		ancestors = append(ancestors, entities.PatchSetAncestor{
			PatchSet:         psID,
			Position:         i + 1,
			AncestorRevision: parent,
		})
	}
	if err := s.store.SaveAncestors(ctx, psID, ancestors); err != nil {
		return nil, fmt.Errorf("saving ancestors of %s: %w", psID, err)
	}

	if err := s.store.LogAction(ctx, entities.ActionUpload, change.ID, map[string]any{
		"patch_set": psID.String(),
		"revision":  commit.Hash,
		"user":      req.User.Name,
	}); err != nil {
		return nil, fmt.Errorf("logging upload: %w", err)
	}

	log.Infof("uploaded %s as patch set %s", commit.Hash, psID)

	result.Change = change
	result.PatchSet = ps
	return result, nil
}

// checkNotUploaded rejects a commit that is already a patch set on dest.
func (s *UploadService) checkNotUploaded(ctx context.Context, dest entities.Branch, revision string) error {
	patchSets, err := s.store.PatchSetsByRevision(ctx, revision)
	if err != nil {
		return fmt.Errorf("finding patch sets for %s: %w", revision, err)
	}
	for _, ps := range patchSets {
		c, err := s.store.GetChange(ctx, ps.ID.ChangeID)
		if err != nil {
			return fmt.Errorf("loading change %d: %w", ps.ID.ChangeID, err)
		}
		if c != nil && c.Dest == dest {
			return fmt.Errorf("%w: %s is already patch set %s", ErrIllegalState, revision, ps.ID)
		}
	}
	return nil
}

// movePatchSet allocates the next patch set number and points the change at
// it. A submitted change goes back to NEW since its submit vote was for the
// old revision.
func (s *UploadService) movePatchSet(ctx context.Context, changeID int, subject string) (*entities.Change, error) {
	var closed bool
	updated, err := s.store.AtomicUpdateChange(ctx, changeID, func(c *entities.Change) bool {
		closed = c.Status.IsClosed()
		if closed {
			return false
		}
		c.CurrentPatchSet++
		c.Subject = subject
		if c.Status == entities.StatusSubmitted {
			c.Status = entities.StatusNew
		}
		c.Touch(s.now())
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("updating change %d: %w", changeID, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %d", ErrChangeNotFound, changeID)
	}
	if closed {
		return nil, fmt.Errorf("%w: change %d closed during upload", ErrIllegalState, changeID)
	}
	return updated, nil
}

func subjectOf(message string) string {
	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(subject)
}
