// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing for opentalk and opentalk-relay.
package cli

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed client arguments. Empty strings and a zero Port mean
// "not given"; config values apply instead.
type Args struct {
	ConfigPath string
	Name       string
	Host       string
	Port       int
	LogFile    string
	Debug      bool

	// Subcommand of "config": "show" (default) or "init"
	Subcommand string
}

// RelayArgs holds parsed relay arguments.
type RelayArgs struct {
	ConfigPath string
	Listen     string
	Debug      bool
	Help       bool
	Version    bool
}

var clientFlags = []string{"config", "c", "name", "n", "host", "H", "port", "p", "log-file", "debug", "d", "help", "h", "version", "v"}

const usageText = `opentalk - terminal peer chat with file transfer

Usage:
  opentalk [flags]           Open the login screen
  opentalk config [show]     Print the effective configuration
  opentalk config init       Write a default config file
  opentalk version           Show version information
  opentalk help              Show this help

Flags:
  -c, --config PATH          Config file (default: ~/.opentalk/config.toml)
  -n, --name NAME            Pre-fill the display name
  -H, --host ADDRESS         Pre-fill the server address
  -p, --port PORT            Pre-fill the server port
      --log-file PATH        Log file (default: ~/.opentalk/opentalk.log)
  -d, --debug                Enable debug logging

Keys (chat screen):
  Enter                      Send message / download focused file
  Tab / Shift+Tab            Move between file offers
  Ctrl+O                     Send a file
  Esc                        Close prompt or picker
  Ctrl+C                     Quit

Environment:
  OPENTALK_NAME, OPENTALK_ADDRESS, OPENTALK_PORT, OPENTALK_STAGING_DIR,
  OPENTALK_DOWNLOAD_DIR, OPENTALK_LOG_LEVEL

Version: %s
`

const relayUsageText = `opentalk-relay - relay server for opentalk peers

Usage:
  opentalk-relay [flags]

Flags:
  -l, --listen ADDR          Listen address (default from config, ":8080")
  -c, --config PATH          Config file (default: ~/.opentalk/config.toml)
  -d, --debug                Enable debug logging
  -v, --version              Show version information

Version: %s
`

// Usage returns the client help text.
func Usage() string {
	return fmt.Sprintf(usageText, Version)
}

// RelayUsage returns the relay help text.
func RelayUsage() string {
	return fmt.Sprintf(relayUsageText, Version)
}

// VersionString returns version information.
func VersionString(binary string) string {
	return fmt.Sprintf("%s version %s\n  Git commit: %s\n  Build date: %s\n  Go: %s\n",
		binary, Version, GitCommit, BuildDate, runtime.Version())
}

// Parse parses client arguments (without the program name).
func Parse(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, "debug", "d", "help", "h", "version", "v")

	if unknown := p.Unknown(clientFlags...); len(unknown) > 0 {
		sort.Strings(unknown)
		return CmdHelp, Args{}, NewValidationErrorWithExample("flag", "--"+unknown[0], "unknown flag", "opentalk --host 127.0.0.1 --port 8080")
	}

	args := Args{
		ConfigPath: p.Flag("config", "c"),
		Name:       p.Flag("name", "n"),
		Host:       p.Flag("host", "H"),
		LogFile:    p.Flag("log-file"),
		Debug:      p.BoolFlag("debug", "d"),
	}
	if raw := p.Flag("port", "p"); raw != "" {
		port, err := ParsePort(raw)
		if err != nil {
			return CmdHelp, Args{}, err
		}
		args.Port = port
	}

	if p.BoolFlag("help", "h") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version", "v") {
		return CmdVersion, args, nil
	}

	switch cmd := strings.ToLower(p.Subcommand()); cmd {
	case "", "tui", "chat":
		return CmdTUI, args, nil
	case "config":
		args.Subcommand = strings.ToLower(p.Positional(1))
		switch args.Subcommand {
		case "":
			args.Subcommand = "show"
		case "show", "init":
		default:
			return CmdHelp, args, NewValidationErrorWithExample("config subcommand", args.Subcommand, "unknown subcommand", "opentalk config init")
		}
		return CmdConfig, args, nil
	case "version":
		return CmdVersion, args, nil
	case "help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, NewValidationErrorWithExample("command", cmd, "unknown command", "opentalk help")
	}
}

// ParseRelay parses relay arguments (without the program name).
func ParseRelay(argv []string) (RelayArgs, error) {
	p := NewArgParser(argv, "debug", "d", "help", "h", "version", "v")

	if unknown := p.Unknown("listen", "l", "config", "c", "debug", "d", "help", "h", "version", "v"); len(unknown) > 0 {
		sort.Strings(unknown)
		return RelayArgs{}, NewValidationErrorWithExample("flag", "--"+unknown[0], "unknown flag", "opentalk-relay --listen :8080")
	}
	if p.PositionalCount() > 0 && p.Subcommand() != "version" && p.Subcommand() != "help" {
		return RelayArgs{}, NewValidationError("argument", p.Subcommand(), "unexpected argument")
	}

	return RelayArgs{
		ConfigPath: p.Flag("config", "c"),
		Listen:     p.Flag("listen", "l"),
		Debug:      p.BoolFlag("debug", "d"),
		Help:       p.BoolFlag("help", "h") || p.Subcommand() == "help",
		Version:    p.BoolFlag("version", "v") || p.Subcommand() == "version",
	}, nil
}
