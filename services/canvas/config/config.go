// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the canvas service.
//
// This package loads the pipeline configuration: the allowed-create gate,
// the kind alias table, per-kind default labels, model whitelists, layout
// constants, and runner routing. A default configuration is embedded into
// the binary so the service starts with zero files on disk; an explicit
// file overrides it after passing the same validation.
//
// Thread Safety:
//
//	A loaded *Config is immutable after Load returns and safe for
//	concurrent reads. Callers must not mutate the maps it exposes.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxYAMLFileSize is the maximum allowed config file size (1MB).
	// Prevents memory issues from oversized or hostile files.
	MaxYAMLFileSize = 1024 * 1024

	// MaxAliasEntries bounds the alias table size.
	MaxAliasEntries = 200
)

//go:embed canvas_defaults.yaml
var defaultConfigYAML []byte

// =============================================================================
// Configuration Types
// =============================================================================

// ModelWhitelist is a closed allow-list with a designated default model.
type ModelWhitelist struct {
	Default string   `yaml:"default" validate:"required"`
	Allowed []string `yaml:"allowed" validate:"required,min=1"`
}

// Clamp returns value if it is on the allow-list, otherwise the default.
// Empty and absent values clamp to the default; this never errors.
func (w *ModelWhitelist) Clamp(value string) string {
	for _, m := range w.Allowed {
		if m == value {
			return value
		}
	}
	return w.Default
}

// OrientationSet canonicalizes orientation values for video/storyboard kinds.
type OrientationSet struct {
	Default string   `yaml:"default" validate:"required"`
	Allowed []string `yaml:"allowed" validate:"required,min=1"`
}

// Canonicalize lower-cases and clamps the value. The result is always a
// member of the allowed set, even for empty input.
func (o *OrientationSet) Canonicalize(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range o.Allowed {
		if a == v {
			return v
		}
	}
	return o.Default
}

// LayoutConfig holds the deterministic placement constants.
type LayoutConfig struct {
	// GridColumns is the fixed column count for auto-assigned positions.
	GridColumns int `yaml:"grid_columns" validate:"required,min=1"`

	// ColumnWidth is the horizontal pitch in pixels.
	ColumnWidth float64 `yaml:"column_width" validate:"required,gt=0"`

	// RowHeight is the vertical pitch in pixels.
	RowHeight float64 `yaml:"row_height" validate:"required,gt=0"`

	// CloneOffset is the per-clone pixel offset for duplicateNodes.
	CloneOffset float64 `yaml:"clone_offset" validate:"required,gt=0"`
}

// RunDagConfig bounds whole-graph execution.
type RunDagConfig struct {
	DefaultConcurrency int `yaml:"default_concurrency" validate:"required,min=1"`
	MaxConcurrency     int `yaml:"max_concurrency" validate:"required,min=1"`
}

// Config is the full canvas pipeline configuration.
type Config struct {
	// AllowedCreateKinds is the strict subset of kinds the model may create.
	AllowedCreateKinds []datatypes.NodeKind `yaml:"allowed_create_kinds" validate:"required,min=1"`

	// KindAliases maps free-form type strings onto the kind enum.
	KindAliases map[string]datatypes.NodeKind `yaml:"kind_aliases"`

	// DefaultLabels holds per-kind human-readable default labels.
	DefaultLabels map[datatypes.NodeKind]string `yaml:"default_labels" validate:"required"`

	// ImageModels is the imageModel allow-list and default.
	ImageModels ModelWhitelist `yaml:"image_models"`

	// VideoModels is the videoModel allow-list and default.
	VideoModels ModelWhitelist `yaml:"video_models"`

	// Orientations is the accepted orientation set.
	Orientations OrientationSet `yaml:"orientations"`

	// Layout holds placement constants.
	Layout LayoutConfig `yaml:"layout"`

	// RemoteKinds lists the kinds executed by the remote runner. Closed
	// set membership, not a heuristic.
	RemoteKinds []datatypes.NodeKind `yaml:"remote_kinds"`

	// RunDag bounds whole-graph execution concurrency.
	RunDag RunDagConfig `yaml:"run_dag"`

	allowedSet map[datatypes.NodeKind]bool
	remoteSet  map[datatypes.NodeKind]bool
}

// =============================================================================
// Loading
// =============================================================================

var configValidate = validator.New()

// LoadDefault parses and validates the embedded default configuration.
//
// # Outputs
//
//   - *Config: The immutable default configuration.
//   - error: Non-nil if the embedded YAML is malformed (a build defect).
func LoadDefault() (*Config, error) {
	return parse(defaultConfigYAML)
}

// Load reads, parses, and validates a configuration file. An empty path
// falls back to the embedded defaults.
//
// # Inputs
//
//   - path: Config file path. Empty for embedded defaults.
//
// # Outputs
//
//   - *Config: The immutable loaded configuration.
//   - error: Non-nil on read, size, parse, or validation failure.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadDefault()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("config %s exceeds %d bytes", path, MaxYAMLFileSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := configValidate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if len(cfg.KindAliases) > MaxAliasEntries {
		return nil, fmt.Errorf("alias table has %d entries, limit is %d", len(cfg.KindAliases), MaxAliasEntries)
	}

	cfg.allowedSet = make(map[datatypes.NodeKind]bool, len(cfg.AllowedCreateKinds))
	for _, k := range cfg.AllowedCreateKinds {
		cfg.allowedSet[k] = true
	}
	cfg.remoteSet = make(map[datatypes.NodeKind]bool, len(cfg.RemoteKinds))
	for _, k := range cfg.RemoteKinds {
		cfg.remoteSet[k] = true
	}
	return &cfg, nil
}

// =============================================================================
// Lookups
// =============================================================================

// ResolveKindAlias maps a free-form type string onto the kind enum. Lookup
// is case-insensitive over both the raw string and its snake-cased form.
// Unrecognized strings pass through unchanged so server-declared kinds keep
// working without a config rollout.
func (c *Config) ResolveKindAlias(raw string) datatypes.NodeKind {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return datatypes.NodeKind(trimmed)
	}
	if k, ok := c.KindAliases[trimmed]; ok {
		return k
	}
	lower := strings.ToLower(trimmed)
	if k, ok := c.KindAliases[lower]; ok {
		return k
	}
	// Casing variants of canonical kinds ("TEXT", "Composevideo") resolve
	// to the canonical spelling.
	for kind := range c.DefaultLabels {
		if strings.EqualFold(string(kind), trimmed) {
			return kind
		}
	}
	return datatypes.NodeKind(trimmed)
}

// CreateAllowed reports whether the kind passes the allowed-type gate.
func (c *Config) CreateAllowed(kind datatypes.NodeKind) bool {
	return c.allowedSet[kind]
}

// AllowedKindNames returns the allowed-create set for error messages.
func (c *Config) AllowedKindNames() []string {
	names := make([]string, 0, len(c.AllowedCreateKinds))
	for _, k := range c.AllowedCreateKinds {
		names = append(names, string(k))
	}
	return names
}

// DefaultLabel returns the per-kind default label, falling back to the
// kind name itself for kinds the table does not know.
func (c *Config) DefaultLabel(kind datatypes.NodeKind) string {
	if label, ok := c.DefaultLabels[kind]; ok {
		return label
	}
	return string(kind)
}

// RemoteKind reports whether the kind routes to the remote runner.
func (c *Config) RemoteKind(kind datatypes.NodeKind) bool {
	return c.remoteSet[kind]
}

// GridPosition computes the deterministic position for the n-th node so
// repeated creations fan out visibly instead of stacking.
func (c *Config) GridPosition(index int) datatypes.Position {
	col := index % c.Layout.GridColumns
	row := index / c.Layout.GridColumns
	return datatypes.Position{
		X: float64(col) * c.Layout.ColumnWidth,
		Y: float64(row) * c.Layout.RowHeight,
	}
}

// DagConcurrency clamps a requested runDag concurrency into bounds.
func (c *Config) DagConcurrency(requested int) int {
	if requested <= 0 {
		return c.RunDag.DefaultConcurrency
	}
	if requested > c.RunDag.MaxConcurrency {
		return c.RunDag.MaxConcurrency
	}
	return requested
}
