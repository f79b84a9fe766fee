// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for streamtally.
//
// Configuration is a TOML file with defaults, environment variable
// overrides, and validation that reports every problem at once.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ValidationError / ValidateErrors: field-level validation failures
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (STREAMTALLY_*), optionally seeded from .env
//   - ~/.streamtally/config.toml, or the file named by --config
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.LoadFromPath(path)
//	if err != nil {
//	    return err
//	}
//	v, _ := cfg.BuildVocabulary()
//	layout := report.NewLayout(report.ItemsFor(v), cfg.Geometry(), rows, cols)
package config
