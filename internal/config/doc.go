// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for opentalk.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ServerConfig: Relay address pre-filled on the login screen
//   - TransferConfig: Staging, download, and outbound worker settings
//   - ValidateErrors: Every out-of-range field found by Validate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags (applied by main)
//   - Environment variables (OPENTALK_*)
//   - ~/.opentalk/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	port := cfg.Server.Port
package config
