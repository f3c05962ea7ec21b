package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
	"github.com/ersonp/review-core/internal/infrastructure/config"
)

// DefaultAccessRights lets every registered user vote Code Review -1..+1
// and submit, on every project.
var DefaultAccessRights = []entities.AccessRight{
	{Project: entities.AllProjects, Category: entities.CodeReviewCategory, Group: entities.RegisteredUsersGroup, MinValue: -1, MaxValue: 1},
	{Project: entities.AllProjects, Category: entities.SubmitCategory, Group: entities.RegisteredUsersGroup, MinValue: 0, MaxValue: 1},
}

// StoreOpener opens the change store a config points at.
type StoreOpener func(cfg *config.Config, basePath string) (ports.ChangeStore, error)

// InitHandler handles repository initialization.
type InitHandler struct {
	open StoreOpener
}

// NewInitHandler creates a new init handler.
func NewInitHandler(open StoreOpener) *InitHandler {
	return &InitHandler{
		open: open,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath   string
	DatabasePath string
	Categories   int
	Rights       int
}

// Handle writes the default config, creates the schema and seeds the
// default approval categories and access rights.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("review already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := h.open(cfg, basePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	categories, err := SeedDefaultCategories(ctx, store)
	if err != nil {
		return nil, err
	}

	for i := range DefaultAccessRights {
		if err := store.SaveAccessRight(ctx, &DefaultAccessRights[i]); err != nil {
			return nil, fmt.Errorf("seeding access right %s/%s: %w",
				DefaultAccessRights[i].Group, DefaultAccessRights[i].Category, err)
		}
	}

	return &InitResult{
		ConfigPath:   config.ConfigFilePath(basePath),
		DatabasePath: cfg.DatabasePath(basePath),
		Categories:   categories,
		Rights:       len(DefaultAccessRights),
	}, nil
}

// SeedDefaultCategories stores the default approval categories if the store
// has none yet. It returns how many were written.
func SeedDefaultCategories(ctx context.Context, store ports.ChangeStore) (int, error) {
	existing, err := store.ListApprovalCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing approval categories: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for _, cat := range entities.DefaultApprovalCategories {
		catCopy := cat
		if err := store.SaveApprovalCategory(ctx, &catCopy); err != nil {
			return 0, fmt.Errorf("seeding approval category %s: %w", cat.ID, err)
		}
	}
	return len(entities.DefaultApprovalCategories), nil
}
