// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	origHome := os.Getenv("HOME")
	t.Cleanup(func() { os.Setenv("HOME", origHome) })

	tmpDir := t.TempDir()
	os.Setenv("HOME", tmpDir)
	return tmpDir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultBatchSize != 8 {
		t.Errorf("DefaultBatchSize = %d, want 8", cfg.DefaultBatchSize)
	}
	if cfg.DefaultMaxLength != 512 {
		t.Errorf("DefaultMaxLength = %d, want 512", cfg.DefaultMaxLength)
	}
	if cfg.ConflictThreshold != 0.7 {
		t.Errorf("ConflictThreshold = %v, want 0.7", cfg.ConflictThreshold)
	}
	if cfg.ServeAddr != "127.0.0.1:8765" {
		t.Errorf("ServeAddr = %q, want 127.0.0.1:8765", cfg.ServeAddr)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	withTempHome(t)
	cfg, err := LoadConfigFile()
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadConfigFile() with no file = %+v, want defaults", cfg)
	}
}

func TestSaveThenLoadConfigFile(t *testing.T) {
	withTempHome(t)

	cfg := DefaultConfig()
	cfg.DefaultBatchSize = 16
	cfg.LogLevel = "debug"

	if err := SaveConfigFile(cfg); err != nil {
		t.Fatalf("SaveConfigFile() error = %v", err)
	}

	loaded, err := LoadConfigFile()
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if loaded.DefaultBatchSize != 16 {
		t.Errorf("DefaultBatchSize = %d, want 16", loaded.DefaultBatchSize)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", loaded.LogLevel)
	}
	// Fields untouched by the save should still resolve to the defaults.
	if loaded.DefaultMaxLength != DefaultConfig().DefaultMaxLength {
		t.Errorf("DefaultMaxLength = %d, want default", loaded.DefaultMaxLength)
	}
}

func TestConfigPathPrecedence(t *testing.T) {
	tmpDir := withTempHome(t)
	configDir := filepath.Join(tmpDir, ".config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}

	yamlPath := filepath.Join(configDir, "steerkit.yaml")
	if err := os.WriteFile(yamlPath, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := ConfigPath(); got != yamlPath {
		t.Errorf("ConfigPath() = %q, want %q", got, yamlPath)
	}

	cfg, err := LoadConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}

	jsonPath := filepath.Join(configDir, "steerkit.json")
	if err := os.WriteFile(jsonPath, []byte(`{"log_level":"error"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ConfigPath(); got != jsonPath {
		t.Errorf("ConfigPath() with both present = %q, want json path %q", got, jsonPath)
	}
}
