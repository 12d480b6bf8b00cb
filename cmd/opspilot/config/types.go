// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

type OpsPilotConfig struct {
	// Server: where the assistant service listens and stores its data
	Server ServerConfig `yaml:"server"`

	// ModelBackend: decides if you want local or cloud
	ModelBackend BackendConfig `yaml:"model_backend"`

	// CLI: defaults for the command line client
	CLI CLIConfig `yaml:"cli"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`         // e.g. 12220
	DataPath    string `yaml:"data_path"`    // SQLite ticket database
	SessionPath string `yaml:"session_path"` // BadgerDB session directory
}

type BackendConfig struct {
	// Type can be "ollama", "openai" or "none"
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type CLIConfig struct {
	// ServiceURL is where ask/console/examples send their requests.
	ServiceURL string `yaml:"service_url"`

	// UserID identifies this machine's conversation session.
	UserID string `yaml:"user_id"`
}

func DefaultConfig() OpsPilotConfig {
	dataDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".opspilot")
	}

	userID := "console"
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		userID = hostname
	}

	return OpsPilotConfig{
		Server: ServerConfig{
			Port:        "12220",
			DataPath:    filepath.Join(dataDir, "tickets.db"),
			SessionPath: filepath.Join(dataDir, "sessions"),
		},
		ModelBackend: BackendConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
		},
		CLI: CLIConfig{
			ServiceURL: "http://localhost:12220",
			UserID:     userID,
		},
	}
}
