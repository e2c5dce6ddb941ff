// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config is the server's runtime configuration: where it listens and
// where it looks for and saves SteeringVector artifacts.
type Config struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	VectorsDir string `json:"vectors_dir,omitempty" yaml:"vectors_dir,omitempty"`

	// ReferenceHiddenDim and ReferenceNumLayers size the in-memory
	// reference model the server steers against when no host integration
	// supplies a real pkg/llmhost.CausalLM.
	ReferenceHiddenDim int `json:"reference_hidden_dim,omitempty" yaml:"reference_hidden_dim,omitempty"`
	ReferenceNumLayers int `json:"reference_num_layers,omitempty" yaml:"reference_num_layers,omitempty"`
}

// DefaultConfig returns the server's built-in settings.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         "127.0.0.1:8765",
		VectorsDir:         "~/.local/share/steerkit/vectors",
		ReferenceHiddenDim: 32,
		ReferenceNumLayers: 4,
	}
}

var configMu sync.Mutex

// ConfigPath returns the path to the server's config file, preferring an
// existing steerkit-server.json, then .yaml, then .yml under ~/.config.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	configDir := filepath.Join(home, ".config")

	jsonPath := filepath.Join(configDir, "steerkit-server.json")
	yamlPath := filepath.Join(configDir, "steerkit-server.yaml")
	ymlPath := filepath.Join(configDir, "steerkit-server.yml")

	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath
	}
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	if _, err := os.Stat(ymlPath); err == nil {
		return ymlPath
	}
	return jsonPath
}

// LoadConfigFile loads the server's config file merged over
// DefaultConfig. A missing file is not an error.
func LoadConfigFile() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("server: read config %s: %w", path, err)
	}

	var onDisk Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &onDisk)
	default:
		err = json.Unmarshal(data, &onDisk)
	}
	if err != nil {
		return cfg, fmt.Errorf("server: parse config %s: %w", path, err)
	}

	if onDisk.ListenAddr != "" {
		cfg.ListenAddr = onDisk.ListenAddr
	}
	if onDisk.VectorsDir != "" {
		cfg.VectorsDir = onDisk.VectorsDir
	}
	if onDisk.ReferenceHiddenDim != 0 {
		cfg.ReferenceHiddenDim = onDisk.ReferenceHiddenDim
	}
	if onDisk.ReferenceNumLayers != 0 {
		cfg.ReferenceNumLayers = onDisk.ReferenceNumLayers
	}
	return cfg, nil
}

// SaveConfigFile writes cfg to ConfigPath(), creating the parent
// directory if needed.
func SaveConfigFile(cfg Config) error {
	configMu.Lock()
	defer configMu.Unlock()

	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("server: cannot resolve config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("server: create config dir: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("server: encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
