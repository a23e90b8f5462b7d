// internal/config/config.go
//
// This package handles configuration and the .sluice directory structure.
// Every project that uses Sluice gets a .sluice/ folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/sluice/internal/rule"
)

const (
	// SluiceDir is the name of the directory we create in each project
	SluiceDir = ".sluice"

	defaultCapacity = 4
	defaultRefresh  = Duration(100 * time.Millisecond)
)

const defaultProjectConfigYAML = `# sluice project configuration
version: 1

pipeline:
  # Maximum actions admitted per pass.
  capacity: 4
  # Sleep before re-polling a deferred action.
  refresh: 100ms
  # Reject appends of anything that is not a pipeline action.
  strict: false

rulebook:
  # Dispatch order. The first applicable rule claims a field.
  order:
    - choice
    - action_request
    - boolean
    - number
    - mapping
    - string
  rules:
    number:
      fix: true
      options:
        num_type: float
`

// RuleSettings declares one rule entry inside .sluice/config.yaml.
type RuleSettings struct {
	Fields       []string       `yaml:"fields,omitempty"`
	ApplyTypes   []string       `yaml:"apply_types,omitempty"`
	ExcludeTypes []string       `yaml:"exclude_types,omitempty"`
	Fix          *bool          `yaml:"fix,omitempty"`
	Options      map[string]any `yaml:"options,omitempty"`
}

// Duration wraps time.Duration so "100ms" style values round-trip
// through YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string or a bare number of
// nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		var ns int64
		if err := node.Decode(&ns); err != nil {
			return fmt.Errorf("invalid duration %q", node.Value)
		}
		*d = Duration(ns)
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go's string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// PipelineConfig captures execution preferences.
type PipelineConfig struct {
	Capacity int      `yaml:"capacity"`
	Refresh  Duration `yaml:"refresh"`
	Strict   bool     `yaml:"strict"`
}

// RuleBookConfig captures the dispatch order plus per-rule overrides.
type RuleBookConfig struct {
	Order []string                `yaml:"order,omitempty"`
	Rules map[string]RuleSettings `yaml:"rules,omitempty"`
}

// ProjectConfig models .sluice/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	RuleBook RuleBookConfig `yaml:"rulebook"`
}

// Config holds the runtime configuration for Sluice.
type Config struct {
	// ProjectDir is the directory where the user ran `sluice` from
	ProjectDir string

	// SluiceProjectDir is ProjectDir/.sluice
	SluiceProjectDir string

	Project ProjectConfig
}

// InitSluiceDir creates the .sluice directory structure in the given
// project directory.
//
// Structure created:
// .sluice/
// ├── logs/     <- Pipeline and validation activity
// └── state/    <- For persisting state between runs
func InitSluiceDir(projectDir string) error {
	sluiceDir := filepath.Join(projectDir, SluiceDir)

	dirs := []string{
		filepath.Join(sluiceDir, "logs"),
		filepath.Join(sluiceDir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(sluiceDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:       projectDir,
		SluiceProjectDir: filepath.Join(projectDir, SluiceDir),
		Project:          defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.SluiceProjectDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.SluiceProjectDir, "state")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.SluiceProjectDir, "config.yaml")
}

// Capacity returns the configured admission limit per pass.
func (c *Config) Capacity() int {
	return c.Project.Pipeline.Capacity
}

// Refresh returns the configured deferred-action poll interval.
func (c *Config) Refresh() time.Duration {
	return time.Duration(c.Project.Pipeline.Refresh)
}

// Strict reports whether the executor rejects non-action appends.
func (c *Config) Strict() bool {
	return c.Project.Pipeline.Strict
}

// SetCapacity updates the admission limit and persists the value back
// to .sluice/config.yaml.
func (c *Config) SetCapacity(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("config: capacity must be at least 1")
	}
	c.Project.Pipeline.Capacity = capacity
	return c.saveProjectConfig()
}

// BuildRuleBook materializes the configured rulebook over the built-in
// checkers. Entries naming unknown checkers are rejected.
func (c *Config) BuildRuleBook() (*rule.RuleBook, error) {
	rb := c.Project.RuleBook
	if len(rb.Order) == 0 {
		return rule.Default(), nil
	}

	factories := make(map[string]rule.Factory, len(rb.Order))
	configs := make(map[string]rule.Config, len(rb.Order))
	defaults := rule.Default()
	for _, name := range rb.Order {
		factory, base, ok := defaults.Get(name)
		if !ok {
			return nil, fmt.Errorf("config: rulebook names unknown rule %q", name)
		}
		factories[name] = factory
		configs[name] = mergeRuleSettings(base, rb.Rules[name])
	}
	return rule.NewRuleBook(factories, rb.Order, configs)
}

func mergeRuleSettings(base rule.Config, settings RuleSettings) rule.Config {
	if len(settings.Fields) > 0 {
		base.Fields = settings.Fields
	}
	if len(settings.ApplyTypes) > 0 {
		base.ApplyTypes = settings.ApplyTypes
	}
	if len(settings.ExcludeTypes) > 0 {
		base.ExcludeTypes = settings.ExcludeTypes
	}
	if settings.Fix != nil {
		base.Fix = *settings.Fix
	}
	if len(settings.Options) > 0 {
		base.Options = rule.Options(base.Options).Merged(rule.Options(settings.Options))
	}
	return base
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Pipeline: PipelineConfig{
			Capacity: defaultCapacity,
			Refresh:  defaultRefresh,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Pipeline.Capacity == 0 {
		pc.Pipeline.Capacity = defaultCapacity
	}
	if pc.Pipeline.Refresh == 0 {
		pc.Pipeline.Refresh = defaultRefresh
	}
}

func (pc *ProjectConfig) normalize() {
	for i := range pc.RuleBook.Order {
		pc.RuleBook.Order[i] = strings.ToLower(strings.TrimSpace(pc.RuleBook.Order[i]))
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Pipeline.Capacity < 1 {
		return fmt.Errorf("pipeline.capacity must be >= 1")
	}
	if pc.Pipeline.Refresh <= 0 {
		return fmt.Errorf("pipeline.refresh must be positive")
	}
	seen := map[string]bool{}
	for _, name := range pc.RuleBook.Order {
		if name == "" {
			return fmt.Errorf("rulebook.order entries must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("rulebook.order repeats %q", name)
		}
		seen[name] = true
	}
	for name := range pc.RuleBook.Rules {
		if len(pc.RuleBook.Order) > 0 && !seen[name] {
			return fmt.Errorf("rulebook.rules configures %q which is not in rulebook.order", name)
		}
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.SluiceProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure sluice dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
