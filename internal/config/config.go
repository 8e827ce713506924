package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/schedule"
)

// DefaultRebuildCron rebuilds every night at midnight.
const DefaultRebuildCron = "0 0 * * *"

// Unbounded is the default for max_projects.
const Unbounded = math.MaxInt32

// Config is the full amansuggest configuration.
type Config struct {
	// DataRoot holds index/ (one bleve index per project) and suggester/.
	DataRoot        string             `yaml:"data_root"`
	ProjectsEnabled bool               `yaml:"projects_enabled"`
	Projects        map[string]Project `yaml:"projects,omitempty"`
	Suggester       SuggesterConfig    `yaml:"suggester"`
	Server          ServerConfig       `yaml:"server"`
}

// Project is one independently indexed source tree.
type Project struct {
	// Path is the index location relative to <data_root>/index.
	// Defaults to the project name.
	Path string `yaml:"path,omitempty"`
	// Indexed reports whether the project's index is usable. Absent means true.
	Indexed *bool `yaml:"indexed,omitempty"`
}

// IsIndexed reports whether the project takes part in suggester builds.
func (p Project) IsIndexed() bool {
	return p.Indexed == nil || *p.Indexed
}

// SuggesterConfig controls the autocomplete service.
type SuggesterConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxResults int  `yaml:"max_results"`
	// MinChars is the shortest prefix that is looked up.
	MinChars int `yaml:"min_chars"`
	// AllowedProjects restricts lookups; nil allows every project.
	AllowedProjects []string `yaml:"allowed_projects,omitempty"`
	MaxProjects     int      `yaml:"max_projects"`
	// AllowedFields restricts lookups; nil allows every field.
	AllowedFields       []string `yaml:"allowed_fields,omitempty"`
	AllowComplexQueries bool     `yaml:"allow_complex_queries"`
	AllowMostPopular    bool     `yaml:"allow_most_popular"`
	ShowScores          bool     `yaml:"show_scores"`
	ShowProjects        bool     `yaml:"show_projects"`
	ShowTime            bool     `yaml:"show_time"`
	// RebuildCron is a 5-field cron expression. nil (YAML null) disables
	// automatic rebuild.
	RebuildCron *string `yaml:"rebuild_cron"`
	// BuildTerminationTimeout is in seconds; 0 means no limit.
	BuildTerminationTimeout int `yaml:"build_termination_timeout"`
}

// ServerConfig configures the daemon process.
type ServerConfig struct {
	SocketPath string `yaml:"socket_path"`
	PIDPath    string `yaml:"pid_path"`
	HTTPAddr   string `yaml:"http_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	home := homeDir()
	base := filepath.Join(home, ".amansuggest")

	return &Config{
		DataRoot:        filepath.Join(base, "data"),
		ProjectsEnabled: true,
		Suggester:       DefaultSuggesterConfig(),
		Server: ServerConfig{
			SocketPath: filepath.Join(base, "daemon.sock"),
			PIDPath:    filepath.Join(base, "daemon.pid"),
			HTTPAddr:   "127.0.0.1:8089",
			LogLevel:   "info",
			LogFile:    filepath.Join(base, "logs", "suggestd.log"),
		},
	}
}

// DefaultSuggesterConfig returns the suggester defaults.
func DefaultSuggesterConfig() SuggesterConfig {
	cron := DefaultRebuildCron
	return SuggesterConfig{
		Enabled:                 true,
		MaxResults:              10,
		MinChars:                0,
		MaxProjects:             Unbounded,
		AllowComplexQueries:     true,
		AllowMostPopular:        true,
		ShowProjects:            true,
		RebuildCron:             &cron,
		BuildTerminationTimeout: 1800,
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

// GetUserConfigPath returns the configuration file path:
//   - $XDG_CONFIG_HOME/amansuggest/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amansuggest/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amansuggest", "config.yaml")
	}
	return filepath.Join(homeDir(), ".config", "amansuggest", "config.yaml")
}

// Load builds the configuration in order of increasing precedence:
//  1. Defaults
//  2. The config file at path (GetUserConfigPath when empty); a missing file is fine
//  3. Environment variables (AMANSUGGEST_*)
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetUserConfigPath()
	}

	cfg := NewConfig()
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.ConfigError("cannot stat config file "+path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile reads defaults plus the file at path without environment
// overrides, so the result can be written back unchanged.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.ConfigError("cannot stat config file "+path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path on top of the current values, so keys missing from
// the file keep their defaults and explicit zero values are honored.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError("failed to read config file "+path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.ConfigError("failed to parse config file "+path, err)
	}
	return nil
}

// applyEnvOverrides applies AMANSUGGEST_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AMANSUGGEST_DATA_ROOT"); v != "" {
		c.DataRoot = v
	}
	if v := os.Getenv("AMANSUGGEST_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("AMANSUGGEST_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("AMANSUGGEST_SUGGESTER_ENABLED"); v != "" {
		c.Suggester.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("AMANSUGGEST_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Suggester.MaxResults = n
		}
	}
	if v, ok := os.LookupEnv("AMANSUGGEST_REBUILD_CRON"); ok {
		if v == "" || strings.EqualFold(v, "off") {
			c.Suggester.RebuildCron = nil
		} else {
			c.Suggester.RebuildCron = &v
		}
	}
}

// Validate checks the configuration. Cron expressions are parsed here so a
// bad schedule fails at load time instead of when the timer is armed.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return errors.ConfigError("data_root must be set", nil)
	}
	if err := c.Suggester.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return errors.ConfigError(
			fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}
	return nil
}

// Validate checks the suggester section.
func (s *SuggesterConfig) Validate() error {
	if s.MaxResults <= 0 {
		return errors.ConfigError(fmt.Sprintf("suggester.max_results must be positive, got %d", s.MaxResults), nil)
	}
	if s.MinChars < 0 {
		return errors.ConfigError(fmt.Sprintf("suggester.min_chars must be non-negative, got %d", s.MinChars), nil)
	}
	if s.MaxProjects < 1 {
		return errors.ConfigError(fmt.Sprintf("suggester.max_projects must be at least 1, got %d", s.MaxProjects), nil)
	}
	if s.BuildTerminationTimeout < 0 {
		return errors.ConfigError(
			fmt.Sprintf("suggester.build_termination_timeout must be non-negative, got %d", s.BuildTerminationTimeout), nil)
	}
	if s.RebuildCron != nil {
		if err := schedule.NewCronCalculator().Validate(*s.RebuildCron); err != nil {
			return err
		}
	}
	return nil
}

// SetRebuildCron validates and stores expr. nil disables automatic rebuild.
func (s *SuggesterConfig) SetRebuildCron(expr *string) error {
	if expr != nil {
		if err := schedule.NewCronCalculator().Validate(*expr); err != nil {
			return err
		}
		v := *expr
		expr = &v
	}
	s.RebuildCron = expr
	return nil
}

// Cron returns the rebuild expression, or "" when automatic rebuild is off.
func (s *SuggesterConfig) Cron() string {
	if s.RebuildCron == nil {
		return ""
	}
	return *s.RebuildCron
}

// ProjectAllowed reports whether lookups may touch project.
func (s *SuggesterConfig) ProjectAllowed(project string) bool {
	return s.AllowedProjects == nil || slices.Contains(s.AllowedProjects, project)
}

// FieldAllowed reports whether lookups may target field.
func (s *SuggesterConfig) FieldAllowed(field string) bool {
	return s.AllowedFields == nil || slices.Contains(s.AllowedFields, field)
}

// IndexRoot is the directory holding every project index.
func (c *Config) IndexRoot() string {
	return filepath.Join(c.DataRoot, "index")
}

// SuggesterDir is where the suggestion engine keeps its data.
func (c *Config) SuggesterDir() string {
	return filepath.Join(c.DataRoot, "suggester")
}

// IndexDir returns the index directory for project. With projects disabled
// the single root index lives directly in IndexRoot.
func (c *Config) IndexDir(project string) string {
	if !c.ProjectsEnabled || project == "" {
		return c.IndexRoot()
	}
	path := project
	if p, ok := c.Projects[project]; ok && p.Path != "" {
		path = strings.TrimPrefix(p.Path, "/")
	}
	return filepath.Join(c.IndexRoot(), path)
}

// HasProject reports whether project is configured.
func (c *Config) HasProject(project string) bool {
	_, ok := c.Projects[project]
	return ok
}

// IndexedProjects returns the sorted names of projects whose index is usable.
func (c *Config) IndexedProjects() []string {
	var names []string
	for name, p := range c.Projects {
		if p.IsIndexed() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy. Config values handed to the suggester are
// treated as immutable snapshots.
func (c *Config) Clone() *Config {
	out := *c
	if c.Projects != nil {
		out.Projects = make(map[string]Project, len(c.Projects))
		for k, v := range c.Projects {
			if v.Indexed != nil {
				b := *v.Indexed
				v.Indexed = &b
			}
			out.Projects[k] = v
		}
	}
	out.Suggester.AllowedProjects = slices.Clone(c.Suggester.AllowedProjects)
	out.Suggester.AllowedFields = slices.Clone(c.Suggester.AllowedFields)
	if c.Suggester.RebuildCron != nil {
		v := *c.Suggester.RebuildCron
		out.Suggester.RebuildCron = &v
	}
	return &out
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
