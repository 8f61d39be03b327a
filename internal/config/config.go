// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the optional YAML configuration file the CLI
// accepts via -config. Everything here is ambient CLI behavior; it
// never touches the core's compile-time tunables (BLOCK_SIZE,
// N_BLOCKS, table capacity, carry-over size all stay fixed per
// spec.md §6).
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config holds ambient, runtime-overridable CLI behavior.
type Config struct {
	// Verbose enables the post-run stats line on stderr.
	Verbose bool `json:"verbose"`
	// OutputBufferBytes sizes the buffered writer wrapping stdout.
	OutputBufferBytes int `json:"outputBufferBytes"`
}

// Default is the configuration used when -config is not given.
func Default() Config {
	return Config{OutputBufferBytes: 64 * 1024}
}

// Load reads and parses a YAML configuration file, starting from
// Default so any field the file omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.OutputBufferBytes <= 0 {
		return Config{}, fmt.Errorf("config: outputBufferBytes must be positive, got %d", cfg.OutputBufferBytes)
	}
	return cfg, nil
}
