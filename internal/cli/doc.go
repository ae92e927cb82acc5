// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses command-line arguments for the opentalk client and the
// opentalk-relay server.
//
// # Key Types
//
//   - ArgParser: long, short, boolean and positional argument parsing
//   - Command / Args: the client's parsed invocation
//   - RelayArgs: the relay's parsed invocation
//   - ValidationError / CommandError: structured errors mapped to exit codes
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.Fatal(err)
//	}
//	switch cmd {
//	case cli.CmdTUI:
//	    // run the login and chat screens
//	case cli.CmdVersion:
//	    fmt.Print(cli.VersionString("opentalk"))
//	}
package cli
