package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name     string        `yaml:"name"`
	Port     int           `yaml:"port"`
	Throttle time.Duration `yaml:"throttle"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "mindweave")
	path := writeFile(t, "name: ${SAMPLE_NAME}\nport: 9090\nthrottle: 3s\n")

	var cfg sample
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "mindweave" || cfg.Port != 9090 || cfg.Throttle != 3*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	var cfg sample
	if err := Load(path, &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	path := writeFile(t, "name: override\n")
	cfg := sample{Port: 8080}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Name != "override" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg := sample{Port: 8080}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if found {
		t.Error("found = true for missing file")
	}
	if cfg.Port != 8080 {
		t.Errorf("defaults changed: %+v", cfg)
	}

	bad := sample{}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &bad); err == nil {
		t.Error("invalid defaults should still fail validation")
	}
}

func TestLoadOptional_ExistingFile(t *testing.T) {
	path := writeFile(t, "port: 7000\n")
	var cfg sample
	found, err := LoadOptional(path, &cfg)
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if cfg.Port != 7000 {
		t.Errorf("port = %d", cfg.Port)
	}
}

func TestDecode(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "8181")
	cfg := sample{Name: "kept"}
	if err := Decode(strings.NewReader("port: ${SAMPLE_PORT}\n"), &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Port != 8181 || cfg.Name != "kept" {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := Decode(strings.NewReader("port: [1, 2"), &cfg); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_UnreadableIsNotOptional(t *testing.T) {
	var cfg sample
	if _, err := LoadOptional(t.TempDir(), &cfg); err == nil {
		t.Error("a directory path should fail, not count as missing")
	}
}
