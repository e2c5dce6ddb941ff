// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the on-disk form of steerkit's persistent settings. CLI
// flags always take precedence over a value loaded from here.
type ConfigFile struct {
	VectorsDir        string  `json:"vectors_dir,omitempty" yaml:"vectors_dir,omitempty"`
	DefaultBatchSize  int     `json:"default_batch_size,omitempty" yaml:"default_batch_size,omitempty"`
	DefaultMaxLength  int     `json:"default_max_length,omitempty" yaml:"default_max_length,omitempty"`
	ConflictThreshold float64 `json:"conflict_threshold,omitempty" yaml:"conflict_threshold,omitempty"`
	ServeAddr         string  `json:"serve_addr,omitempty" yaml:"serve_addr,omitempty"`
	LogLevel          string  `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// DefaultConfig returns the built-in settings used when no config file
// is present and no flag overrides a value.
func DefaultConfig() ConfigFile {
	return ConfigFile{
		VectorsDir:        "~/.local/share/steerkit/vectors",
		DefaultBatchSize:  8,
		DefaultMaxLength:  512,
		ConflictThreshold: 0.7,
		ServeAddr:         "127.0.0.1:8765",
		LogLevel:          "info",
	}
}

var configMu sync.Mutex

// ConfigPath resolves the config file path, preferring an existing
// steerkit.json, then steerkit.yaml, then steerkit.yml under
// ~/.config. If none exist, it defaults to the .json form.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".config")
	for _, name := range []string{"steerkit.json", "steerkit.yaml", "steerkit.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "steerkit.json")
}

// LoadConfigFile reads the config file, if any, merged over
// DefaultConfig. A missing file is not an error.
func LoadConfigFile() (ConfigFile, error) {
	cfg := DefaultConfig()
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cli: read config %s: %w", path, err)
	}

	var onDisk ConfigFile
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &onDisk)
	default:
		err = json.Unmarshal(data, &onDisk)
	}
	if err != nil {
		return cfg, fmt.Errorf("cli: parse config %s: %w", path, err)
	}

	mergeConfig(&cfg, onDisk)
	return cfg, nil
}

func mergeConfig(base *ConfigFile, override ConfigFile) {
	if override.VectorsDir != "" {
		base.VectorsDir = override.VectorsDir
	}
	if override.DefaultBatchSize != 0 {
		base.DefaultBatchSize = override.DefaultBatchSize
	}
	if override.DefaultMaxLength != 0 {
		base.DefaultMaxLength = override.DefaultMaxLength
	}
	if override.ConflictThreshold != 0 {
		base.ConflictThreshold = override.ConflictThreshold
	}
	if override.ServeAddr != "" {
		base.ServeAddr = override.ServeAddr
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
}

// SaveConfigFile writes cfg to ConfigPath(), creating the parent
// directory if needed. The format is chosen by the path's extension.
func SaveConfigFile(cfg ConfigFile) error {
	configMu.Lock()
	defer configMu.Unlock()

	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cli: create config dir: %w", err)
	}

	var data []byte
	var err error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cli: encode config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func newConfigCmd(ro *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit steerkit's persistent settings",
	}
	cmd.AddCommand(newConfigShowCmd(ro))
	cmd.AddCommand(newConfigSetCmd(ro))
	return cmd
}

func newConfigShowCmd(ro *RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigFile()
			if err != nil {
				return err
			}
			if ro.JSONOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config file:        %s\n", ConfigPath())
			fmt.Fprintf(cmd.OutOrStdout(), "vectors_dir:        %s\n", cfg.VectorsDir)
			fmt.Fprintf(cmd.OutOrStdout(), "default_batch_size: %d\n", cfg.DefaultBatchSize)
			fmt.Fprintf(cmd.OutOrStdout(), "default_max_length: %d\n", cfg.DefaultMaxLength)
			fmt.Fprintf(cmd.OutOrStdout(), "conflict_threshold: %g\n", cfg.ConflictThreshold)
			fmt.Fprintf(cmd.OutOrStdout(), "serve_addr:         %s\n", cfg.ServeAddr)
			fmt.Fprintf(cmd.OutOrStdout(), "log_level:          %s\n", cfg.LogLevel)
			return nil
		},
	}
}

func newConfigSetCmd(ro *RootOpts) *cobra.Command {
	var vectorsDir, serveAddr, logLevel string
	var batchSize, maxLength int
	var conflictThreshold float64

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Persist one or more settings to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigFile()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("vectors-dir") {
				cfg.VectorsDir = vectorsDir
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.DefaultBatchSize = batchSize
			}
			if cmd.Flags().Changed("max-length") {
				cfg.DefaultMaxLength = maxLength
			}
			if cmd.Flags().Changed("conflict-threshold") {
				cfg.ConflictThreshold = conflictThreshold
			}
			if cmd.Flags().Changed("serve-addr") {
				cfg.ServeAddr = serveAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := SaveConfigFile(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", ConfigPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&vectorsDir, "vectors-dir", "", "default directory for discovered/saved steering vectors")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "default discovery batch size")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "default discovery max token length")
	cmd.Flags().Float64Var(&conflictThreshold, "conflict-threshold", 0, "default |cosine| threshold for compose conflict detection")
	cmd.Flags().StringVar(&serveAddr, "serve-addr", "", "default listen address for steerkit serve")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "default log level: debug, info, warn, error")
	return cmd
}
