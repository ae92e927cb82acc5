// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete opentalk configuration.
type Config struct {
	User     UserConfig     `toml:"user"`
	Server   ServerConfig   `toml:"server"`
	Transfer TransferConfig `toml:"transfer"`
	Log      LogConfig      `toml:"log"`
	Relay    RelayConfig    `toml:"relay"`
}

// UserConfig holds the identity pre-filled on the login screen.
type UserConfig struct {
	// Name is the display name; empty leaves the login field blank
	Name string `toml:"name"`
}

// ServerConfig holds the relay address pre-filled on the login screen.
type ServerConfig struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// TransferConfig controls inbound staging, downloads, and outbound workers.
type TransferConfig struct {
	// StagingDir receives inbound files; empty means the working directory
	StagingDir string `toml:"staging_dir"`
	// StagingPrefix is prepended to staged file names
	StagingPrefix string `toml:"staging_prefix"`
	// DownloadDir pre-fills the destination prompt; empty means the working directory
	DownloadDir string `toml:"download_dir"`
	// MaxConcurrent bounds simultaneous outbound transfers
	MaxConcurrent int `toml:"max_concurrent"`
	// RateLimitKBps paces outbound file data (-1 = unlimited). The relay
	// drops a receiver whose queue of 256 chunks fills, so an unpaced send
	// can cut off peers on slow links.
	RateLimitKBps int `toml:"rate_limit_kbps"`
}

// DefaultRateLimitKBps keeps a full relay queue (256 chunks of 32 KiB)
// at about two seconds of traffic.
const DefaultRateLimitKBps = 4096

// UnlimitedRate disables outbound pacing.
const UnlimitedRate = -1

// LogConfig controls the log file. The TUI owns the terminal, so logs never
// go to stdout.
type LogConfig struct {
	// File is the log path; empty means ~/.opentalk/opentalk.log
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// RelayConfig holds opentalk-relay settings.
type RelayConfig struct {
	Listen string `toml:"listen"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "127.0.0.1",
			Port:    8080,
		},
		Transfer: TransferConfig{
			StagingPrefix: "temp_",
			MaxConcurrent: 4,
			RateLimitKBps: DefaultRateLimitKBps,
		},
		Log: LogConfig{
			Level: "info",
		},
		Relay: RelayConfig{
			Listen: ":8080",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the opentalk configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".opentalk"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultLogPath returns ~/.opentalk/opentalk.log.
func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "opentalk.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.opentalk/config.toml, falling back to defaults when it does
// not exist. A file that exists but cannot be decoded still yields defaults,
// along with the decode error for the caller to report.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	path, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			loaded := &Config{}
			if err := LoadTOML(loaded, path); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				cfg = loaded
			}
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadTOML decodes a TOML file into cfg and fills missing values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logrus.WithField("keys", strings.Join(keys, ", ")).Warn("ignoring unknown config keys")
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file, which must exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	// Server
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaults.Server.Address
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}

	// Transfer
	if cfg.Transfer.StagingPrefix == "" {
		cfg.Transfer.StagingPrefix = defaults.Transfer.StagingPrefix
	}
	if cfg.Transfer.MaxConcurrent == 0 {
		cfg.Transfer.MaxConcurrent = defaults.Transfer.MaxConcurrent
	}
	if cfg.Transfer.RateLimitKBps == 0 {
		cfg.Transfer.RateLimitKBps = defaults.Transfer.RateLimitKBps
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	// Relay
	if cfg.Relay.Listen == "" {
		cfg.Relay.Listen = defaults.Relay.Listen
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# opentalk configuration file\n")
	buf.WriteString("# Values here pre-fill the login screen; flags and OPENTALK_* variables override them.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns ValidateErrors if
// anything is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range, must be 1-65535", c.Server.Port),
		})
	}

	if strings.ContainsAny(c.Transfer.StagingPrefix, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "transfer.staging_prefix",
			Message: fmt.Sprintf("prefix %q must not contain a path separator", c.Transfer.StagingPrefix),
		})
	}
	if c.Transfer.MaxConcurrent < 1 || c.Transfer.MaxConcurrent > 64 {
		errs = append(errs, ValidationError{
			Field:   "transfer.max_concurrent",
			Message: fmt.Sprintf("value %d out of range, must be 1-64", c.Transfer.MaxConcurrent),
		})
	}
	if c.Transfer.RateLimitKBps < UnlimitedRate || c.Transfer.RateLimitKBps == 0 {
		errs = append(errs, ValidationError{
			Field:   "transfer.rate_limit_kbps",
			Message: fmt.Sprintf("value %d invalid, must be positive or -1 for unlimited", c.Transfer.RateLimitKBps),
		})
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: trace, debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OPENTALK_NAME: overrides user.name
//   - OPENTALK_ADDRESS: overrides server.address
//   - OPENTALK_PORT: overrides server.port (ignored if not a number)
//   - OPENTALK_STAGING_DIR: overrides transfer.staging_dir
//   - OPENTALK_DOWNLOAD_DIR: overrides transfer.download_dir
//   - OPENTALK_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if name := os.Getenv("OPENTALK_NAME"); name != "" {
		c.User.Name = name
	}
	if addr := os.Getenv("OPENTALK_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if port := os.Getenv("OPENTALK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dir := os.Getenv("OPENTALK_STAGING_DIR"); dir != "" {
		c.Transfer.StagingDir = dir
	}
	if dir := os.Getenv("OPENTALK_DOWNLOAD_DIR"); dir != "" {
		c.Transfer.DownloadDir = dir
	}
	if level := os.Getenv("OPENTALK_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
