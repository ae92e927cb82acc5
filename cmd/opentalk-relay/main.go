// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// opentalk-relay forwards chat and file frames between opentalk peers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/opentalk-tui/internal/cli"
	"github.com/jeranaias/opentalk-tui/internal/config"
	"github.com/jeranaias/opentalk-tui/internal/logging"
	"github.com/jeranaias/opentalk-tui/internal/relay"
)

func main() {
	args, err := cli.ParseRelay(os.Args[1:])
	if err != nil {
		cli.Fatal(err)
	}
	if args.Help {
		fmt.Print(cli.RelayUsage())
		return
	}
	if args.Version {
		fmt.Print(cli.VersionString("opentalk-relay"))
		return
	}

	var cfg *config.Config
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		cli.Fatal(cli.NewCommandError("relay", "load config", "configuration is invalid", cli.ExitConfigError, err))
	}

	log, logErr := logging.NewStderr(logging.Options{Level: cfg.Log.Level, Debug: args.Debug})
	if logErr != nil {
		cli.Fatal(cli.NewCommandError("relay", "setup logging", "bad log level", cli.ExitConfigError, logErr))
	}
	if err != nil {
		log.WithError(err).Warn("using default configuration")
	}

	listen := cfg.Relay.Listen
	if args.Listen != "" {
		listen = args.Listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := relay.ListenAndServe(ctx, listen, log); err != nil {
		cli.Fatal(cli.NewCommandError("relay", "listen", listen, cli.ExitNetworkError, err))
	}
	log.Info("relay stopped")
}
