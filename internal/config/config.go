// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the investigation pipeline's configuration in
// layers: built-in defaults, then a project-local .autodebug/config.yaml,
// then environment variables — each layer overriding the last. CLI flags
// are handled in cmd/autodebug and are not merged into Config.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the investigation pipeline and HTTP API
// read at startup.
type Config struct {
	Models             []string `yaml:"models"`
	GeminiAPIKeys      []string `yaml:"-"`
	AllowProjectRoot   bool     `yaml:"allow_project_root"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	AllowedOriginRegex string   `yaml:"-"`
	APIKey             string   `yaml:"-"`
	MaxLogBytes        int      `yaml:"max_log_bytes"`
	MaxPatchBytes      int      `yaml:"max_patch_bytes"`
	MaxRepoFiles       int      `yaml:"max_repo_files"`
	MaxRepoBytes       int      `yaml:"max_repo_bytes"`
	NoColor            bool     `yaml:"-"`
}

// Defaults returns the pipeline's built-in configuration before any
// layering is applied.
func Defaults() Config {
	return Config{
		Models:        []string{"gemini-3-flash-preview", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
		MaxLogBytes:   1 << 20,    // 1 MiB
		MaxPatchBytes: 200 << 10, // 200 KiB
		MaxRepoFiles:  20000,
		MaxRepoBytes:  500 << 20, // 500 MiB
	}
}

// Load builds a Config by layering defaults, an optional
// .autodebug/config.yaml under projectRoot, and environment variables, in
// that order.
func Load(logger *slog.Logger, projectRoot string) (Config, error) {
	cfg := Defaults()

	yamlPath := filepath.Join(projectRoot, ".autodebug", "config.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		logger.Debug("config.yaml_loaded", "path", yamlPath)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := firstNonEmpty("ROMA_MODELS", "GEMINI_MODELS"); v != "" {
		cfg.Models = splitCSV(v)
	}
	cfg.GeminiAPIKeys = collectKeyPool()
	if v := os.Getenv("ROMA_ALLOW_PROJECT_ROOT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowProjectRoot = b
		}
	}
	if v := os.Getenv("ROMA_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	cfg.AllowedOriginRegex = os.Getenv("ROMA_ALLOWED_ORIGIN_REGEX")
	if v := os.Getenv("ROMA_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := envInt("ROMA_MAX_LOG_BYTES"); v > 0 {
		cfg.MaxLogBytes = v
	}
	if v := envInt("ROMA_MAX_PATCH_BYTES"); v > 0 {
		cfg.MaxPatchBytes = v
	}
	if v := envInt("ROMA_MAX_REPO_FILES"); v > 0 {
		cfg.MaxRepoFiles = v
	}
	if v := envInt("ROMA_MAX_REPO_BYTES"); v > 0 {
		cfg.MaxRepoBytes = v
	}
}

// collectKeyPool gathers GEMINI_API_KEY, GEMINI_API_KEY2 .. N, or a single
// GEMINI_API_KEYS comma-separated value.
func collectKeyPool() []string {
	if v := os.Getenv("GEMINI_API_KEYS"); v != "" {
		return splitCSV(v)
	}
	var keys []string
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		keys = append(keys, v)
	}
	for i := 2; ; i++ {
		v := os.Getenv("GEMINI_API_KEY" + strconv.Itoa(i))
		if v == "" {
			break
		}
		keys = append(keys, v)
	}
	return keys
}

func firstNonEmpty(envVars ...string) string {
	for _, v := range envVars {
		if val := os.Getenv(v); val != "" {
			return val
		}
	}
	return ""
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(name string) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}
	return v
}
