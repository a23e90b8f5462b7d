package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	sluiceDir := filepath.Join(projectDir, ".sluice")
	if err := os.MkdirAll(sluiceDir, 0755); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, SluiceProjectDir: sluiceDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Capacity() != defaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", defaultCapacity, c.Capacity())
	}
	if c.Refresh() != time.Duration(defaultRefresh) {
		t.Fatalf("expected default refresh %v, got %v", time.Duration(defaultRefresh), c.Refresh())
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	sluiceDir := filepath.Join(projectDir, ".sluice")
	if err := os.MkdirAll(sluiceDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
pipeline:
  capacity: 2
  refresh: 250ms
  strict: true
rulebook:
  order:
    - boolean
    - number
  rules:
    number:
      fix: false
      options:
        num_type: int
        upper_bound: 10
`)
	if err := os.WriteFile(filepath.Join(sluiceDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, SluiceProjectDir: sluiceDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", c.Capacity())
	}
	if c.Refresh() != 250*time.Millisecond {
		t.Fatalf("expected refresh 250ms, got %v", c.Refresh())
	}
	if !c.Strict() {
		t.Fatal("expected strict mode on")
	}

	book, err := c.BuildRuleBook()
	if err != nil {
		t.Fatalf("BuildRuleBook returned error: %v", err)
	}
	order := book.Order()
	if len(order) != 2 || order[0] != "boolean" || order[1] != "number" {
		t.Fatalf("wrong rulebook order: %v", order)
	}
	_, numberCfg, ok := book.Get("number")
	if !ok {
		t.Fatal("expected number rule in rulebook")
	}
	if numberCfg.Fix {
		t.Fatal("expected number fix override to stick")
	}
	if got := numberCfg.Options["num_type"]; got != "int" {
		t.Fatalf("expected num_type option int, got %v", got)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero capacity", "pipeline:\n  capacity: -1\n"},
		{"duplicate rule order", "rulebook:\n  order:\n    - boolean\n    - boolean\n"},
		{"settings outside order", "rulebook:\n  order:\n    - boolean\n  rules:\n    number:\n      fix: true\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			projectDir := t.TempDir()
			sluiceDir := filepath.Join(projectDir, ".sluice")
			if err := os.MkdirAll(sluiceDir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(sluiceDir, "config.yaml"), []byte("version: 1\n"+tc.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			c := &Config{ProjectDir: projectDir, SluiceProjectDir: sluiceDir, Project: defaultProjectConfig()}
			if err := c.loadProjectConfig(); err == nil {
				t.Fatal("expected validation error but got none")
			}
		})
	}
}

func TestBuildRuleBookRejectsUnknownRules(t *testing.T) {
	c := &Config{Project: defaultProjectConfig()}
	c.Project.RuleBook.Order = []string{"boolean", "telepathy"}
	if _, err := c.BuildRuleBook(); err == nil {
		t.Fatal("expected error for unknown rule name")
	}
}

func TestInitSluiceDirSeedsConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitSluiceDir(projectDir); err != nil {
		t.Fatalf("InitSluiceDir returned error: %v", err)
	}
	for _, sub := range []string{"logs", "state"} {
		if _, err := os.Stat(filepath.Join(projectDir, ".sluice", sub)); err != nil {
			t.Fatalf("expected %s directory: %v", sub, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(projectDir, ".sluice", "config.yaml"))
	if err != nil {
		t.Fatalf("expected seeded config: %v", err)
	}
	if !strings.Contains(string(data), "capacity: 4") {
		t.Fatalf("seeded config missing defaults:\n%s", data)
	}

	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Capacity() != defaultCapacity {
		t.Fatalf("expected seeded capacity %d, got %d", defaultCapacity, c.Capacity())
	}
}
