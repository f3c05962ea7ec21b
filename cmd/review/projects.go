package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/ersonp/review-core/internal/infrastructure/config"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects",
		RunE:  runProjectsList,
	}

	cmd.AddCommand(
		newProjectsListCmd(),
		newProjectsAddCmd(),
	)

	return cmd
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		RunE:  runProjectsList,
	}
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	formatProjects(cmd.OutOrStdout(), cwd, cfg, projects)
	return nil
}

func formatProjects(w io.Writer, basePath string, cfg *config.Config, projects *config.ProjectsConfig) {
	if len(projects.Projects) == 0 {
		fmt.Fprintln(w, "No projects configured.")
		fmt.Fprintln(w, "Use 'review projects add NAME' to register a project.")
		return
	}

	fmt.Fprintf(w, "%-20s %-40s %s\n", "NAME", "REPOSITORY", "DESCRIPTION")
	fmt.Fprintf(w, "%-20s %-40s %s\n", "----", "----------", "-----------")

	for _, name := range projects.Names() {
		entry := projects.Projects[name]
		fmt.Fprintf(w, "%-20s %-40s %s\n", name, projects.RepoPath(basePath, cfg, name), entry.Description)
	}
}

type projectsAddFlags struct {
	repo        string
	description string
	initRepo    bool
}

func newProjectsAddCmd() *cobra.Command {
	var flags projectsAddFlags

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsAdd(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.repo, "repo", "r", "", "Repository path (default: <git.base_path>/NAME.git)")
	cmd.Flags().StringVarP(&flags.description, "description", "d", "", "Project description")
	cmd.Flags().BoolVar(&flags.initRepo, "init", false, "Create an empty bare repository if none exists")

	return cmd
}

func runProjectsAdd(cmd *cobra.Command, name string, flags projectsAddFlags) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	entry := config.ProjectEntry{Repo: flags.repo, Description: flags.description}
	if err := addProject(cwd, name, entry); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Registered project %q\n", name)

	if flags.initRepo {
		projects, err := config.LoadProjects(cwd)
		if err != nil {
			return fmt.Errorf("loading projects: %w", err)
		}
		path := projects.RepoPath(cwd, cfg, name)
		created, err := initProjectRepo(path)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(out, "Created bare repository %s\n", path)
		}
	}

	return nil
}

// addProject registers name in the projects file under basePath.
func addProject(basePath, name string, entry config.ProjectEntry) error {
	if name == "" {
		return errors.New("project name is required")
	}

	projects, err := config.LoadProjects(basePath)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	if _, exists := projects.Projects[name]; exists {
		return fmt.Errorf("project %q already exists", name)
	}

	projects.Add(name, entry)
	if err := projects.Save(basePath); err != nil {
		return fmt.Errorf("saving projects: %w", err)
	}
	return nil
}

// initProjectRepo creates a bare repository at path unless one is already there.
func initProjectRepo(path string) (bool, error) {
	_, err := git.PlainInit(path, true)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("initializing repository %s: %w", path, err)
	}
	return true, nil
}
