package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectsConfig holds the registered projects (read/write).
type ProjectsConfig struct {
	Projects map[string]ProjectEntry `yaml:"projects,omitempty"`
}

// ProjectEntry holds configuration for a specific project.
type ProjectEntry struct {
	// Repo overrides the repository path derived from git.base_path.
	Repo        string `yaml:"repo,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// LoadProjects loads project configuration from the .review directory.
func LoadProjects(basePath string) (*ProjectsConfig, error) {
	data, err := os.ReadFile(ProjectsFilePath(basePath))
	if os.IsNotExist(err) {
		// Return empty config if file doesn't exist
		return &ProjectsConfig{
			Projects: make(map[string]ProjectEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading projects file: %w", err)
	}

	var cfg ProjectsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing projects file: %w", err)
	}

	if cfg.Projects == nil {
		cfg.Projects = make(map[string]ProjectEntry)
	}

	return &cfg, nil
}

// Save writes the projects configuration to the projects file.
func (p *ProjectsConfig) Save(basePath string) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling projects config: %w", err)
	}

	if err := os.WriteFile(ProjectsFilePath(basePath), data, 0600); err != nil {
		return fmt.Errorf("writing projects file: %w", err)
	}

	return nil
}

// Add adds a project to the configuration.
func (p *ProjectsConfig) Add(name string, entry ProjectEntry) {
	if p.Projects == nil {
		p.Projects = make(map[string]ProjectEntry)
	}
	p.Projects[name] = entry
}

// Get returns the configuration for a specific project.
func (p *ProjectsConfig) Get(name string) (*ProjectEntry, error) {
	if len(p.Projects) == 0 {
		return nil, errors.New("no projects configured")
	}

	entry, ok := p.Projects[name]
	if !ok {
		return nil, fmt.Errorf("project %q not found (available: %s)", name, strings.Join(p.Names(), ", "))
	}

	return &entry, nil
}

// Names returns the registered project names in order.
func (p *ProjectsConfig) Names() []string {
	names := make([]string, 0, len(p.Projects))
	for name := range p.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RepoPath returns the repository of a project: its override if set,
// otherwise the path derived from cfg.
func (p *ProjectsConfig) RepoPath(basePath string, cfg *Config, project string) string {
	if entry, ok := p.Projects[project]; ok && entry.Repo != "" {
		return entry.Repo
	}
	return cfg.RepoPath(basePath, project)
}
