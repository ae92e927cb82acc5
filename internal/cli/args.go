// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing shared by the opentalk and opentalk-relay
// binaries.

package cli

import (
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser handles the flag formats both binaries accept:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments: arguments without flags
//   - Subcommands: first positional argument
type ArgParser struct {
	subcommand string            // First positional arg (e.g., "version", "config")
	flags      map[string]string // String flags (--key=value)
	boolFlags  map[string]bool   // Boolean flags (--debug)
	positional []string          // All positional arguments including subcommand
	boolNames  map[string]bool   // Flags that never take a value
}

// NewArgParser parses raw. Names in boolNames are always treated as boolean
// flags, so "--debug version" does not swallow the subcommand.
//
// Example:
//
//	args := NewArgParser([]string{"--host", "10.0.0.5", "--port=9000", "--debug"}, "debug")
//	args.Flag("host")      // "10.0.0.5"
//	args.Flag("port")      // "9000"
//	args.BoolFlag("debug") // true
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	parser := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0),
		boolNames:  make(map[string]bool, len(boolNames)),
	}
	for _, name := range boolNames {
		parser.boolNames[name] = true
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]

		// "--" ends flag parsing
		if arg == "--" {
			parser.positional = append(parser.positional, raw[i+1:]...)
			break
		}

		if !strings.HasPrefix(arg, "-") || arg == "-" {
			parser.positional = append(parser.positional, arg)
			i++
			continue
		}

		// --flag=value
		if name, value, ok := strings.Cut(arg, "="); ok {
			flagName := strings.TrimLeft(name, "-")
			if parser.boolNames[flagName] || value == "true" || value == "false" {
				parser.boolFlags[flagName] = value == "true"
			} else {
				parser.flags[flagName] = value
			}
			i++
			continue
		}

		flagName := strings.TrimLeft(arg, "-")
		if !parser.boolNames[flagName] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			parser.flags[flagName] = raw[i+1]
			i += 2
		} else {
			parser.boolFlags[flagName] = true
			i++
		}
	}

	if len(parser.positional) > 0 {
		parser.subcommand = parser.positional[0]
	}
	return parser
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a string flag, trying each name in turn so a
// long and short spelling can be passed together.
func (p *ArgParser) Flag(names ...string) string {
	for _, name := range names {
		if val, ok := p.flags[strings.TrimLeft(name, "-")]; ok {
			return val
		}
	}
	return ""
}

// BoolFlag reports whether any of the named boolean flags was set.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, name := range names {
		if p.boolFlags[strings.TrimLeft(name, "-")] {
			return true
		}
	}
	return false
}

// Positional returns the positional argument at index, or "".
// Index 0 is the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// Unknown returns every flag name not in known.
func (p *ArgParser) Unknown(known ...string) []string {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	var unknown []string
	for name := range p.flags {
		if !allowed[name] {
			unknown = append(unknown, name)
		}
	}
	for name := range p.boolFlags {
		if !allowed[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// ParsePort parses a TCP port number in 1-65535.
func ParsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("port", s, "port is required")
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, NewValidationErrorWithExample("port", s, "must be a number from 1 to 65535", "--port 8080")
	}
	return port, nil
}
