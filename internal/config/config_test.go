package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %#v", cfg)
	}
	if cfg.OutDir != "." || cfg.LogLevel != "INFO" || cfg.DBTable != "arkoon_rule" {
		t.Errorf("unexpected defaults %#v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "akx2csv.yaml")
	os.WriteFile(path, []byte("out_dir: /tmp/reports\nexpand_groups: true\ndb: user:pw@tcp(db:3306)/fw\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.OutDir != "/tmp/reports" || !cfg.ExpandGroups || cfg.DB != "user:pw@tcp(db:3306)/fw" {
		t.Errorf("file values not applied: %#v", cfg)
	}
	if cfg.LogLevel != "INFO" || cfg.DBTable != "arkoon_rule" {
		t.Errorf("unset keys should keep defaults: %#v", cfg)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	os.WriteFile(path, nil, 0644)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected empty file to be accepted, got %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %#v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}

	unknown := filepath.Join(dir, "unknown.yaml")
	os.WriteFile(unknown, []byte("outdir: typo\n"), 0644)
	if _, err := Load(unknown); err == nil {
		t.Errorf("expected error for unknown key")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("expand_groups: [\n"), 0644)
	if _, err := Load(invalid); err == nil {
		t.Errorf("expected error for malformed YAML")
	}
}
