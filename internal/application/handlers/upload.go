package handlers

import (
	"context"
	"errors"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/services"
)

// UploadHandler records pushed commits for review.
type UploadHandler struct {
	service *services.UploadService
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{
		service: service,
	}
}

// UploadOptions names the uploader.
type UploadOptions struct {
	User   string
	Groups []string
}

// Handle uploads revision of project for review on branch.
func (h *UploadHandler) Handle(ctx context.Context, project, branch, revision string, opts UploadOptions) (*services.UploadResult, error) {
	if opts.User == "" {
		return nil, errors.New("user is required")
	}
	return h.service.Upload(ctx, services.UploadRequest{
		Project:  project,
		Branch:   branch,
		Revision: revision,
		User:     entities.User{Name: opts.User, Groups: opts.Groups},
	})
}
