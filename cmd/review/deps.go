package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/ersonp/review-core/internal/application/handlers"
	"github.com/ersonp/review-core/internal/domain/ports"
	"github.com/ersonp/review-core/internal/domain/services"
	"github.com/ersonp/review-core/internal/infrastructure/config"
	"github.com/ersonp/review-core/internal/infrastructure/lock"
	"github.com/ersonp/review-core/internal/infrastructure/logging"
	"github.com/ersonp/review-core/internal/infrastructure/mergequeue/gitqueue"
	"github.com/ersonp/review-core/internal/infrastructure/relationaldb/sqlite"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config        *config.Config
	Projects      *config.ProjectsConfig
	SubmitHandler *handlers.SubmitHandler
	ChangeHandler *handlers.ChangeHandler
	MergeHandler  *handlers.MergeHandler
	UploadHandler *handlers.UploadHandler
	ImportHandler *handlers.ImportHandler
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := logging.Setup(cfg.Log, os.Stderr); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	store, err := sqlite.NewRepository(config.DatabaseConfig{Path: cfg.DatabasePath(cwd)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer store.Close()

	// Ensure schema exists
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	// Databases created by an import have no categories yet
	if _, err := handlers.SeedDefaultCategories(ctx, store); err != nil {
		return fmt.Errorf("seeding approval categories: %w", err)
	}

	var locker ports.BranchLocker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		var client *redis.Client
		locker, client = lock.NewRedisLockerFromConfig(cfg.Redis)
		defer client.Close()
	}

	open := gitqueue.PlainOpener(func(project string) string {
		return projects.RepoPath(cwd, cfg, project)
	})

	deps := services.NewDependencyService(store)
	normalizer := services.NewApprovalNormalizer(store, store, services.NewDefaultFunctionRegistry(), cfg.Submit.Category)
	queue := gitqueue.NewQueue(store, locker, open)
	submitService := services.NewSubmitService(store, deps, normalizer, queue)

	return fn(&Deps{
		Config:        cfg,
		Projects:      projects,
		SubmitHandler: handlers.NewSubmitHandler(store, submitService),
		ChangeHandler: handlers.NewChangeHandler(store, deps),
		MergeHandler:  handlers.NewMergeHandler(store, queue),
		UploadHandler: handlers.NewUploadHandler(services.NewUploadService(store, gitqueue.NewCommitReader(open))),
		ImportHandler: handlers.NewImportHandler(services.NewImportService(store)),
	})
}

// openSQLite opens the change database a config points at.
func openSQLite(cfg *config.Config, basePath string) (ports.ChangeStore, error) {
	return sqlite.NewRepository(config.DatabaseConfig{Path: cfg.DatabasePath(basePath)})
}
