// opentalk - terminal peer chat with file transfer.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/cli"
	"github.com/jeranaias/opentalk-tui/internal/config"
	"github.com/jeranaias/opentalk-tui/internal/logging"
	"github.com/jeranaias/opentalk-tui/internal/network"
	"github.com/jeranaias/opentalk-tui/internal/session"
	"github.com/jeranaias/opentalk-tui/internal/transfer"
	"github.com/jeranaias/opentalk-tui/internal/ui/app"
	"github.com/jeranaias/opentalk-tui/internal/ui/chat"
	"github.com/jeranaias/opentalk-tui/internal/ui/login"
	"github.com/jeranaias/opentalk-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.Fatal(err)
	}

	switch cmd {
	case cli.CmdVersion:
		fmt.Print(cli.VersionString("opentalk"))
	case cli.CmdHelp:
		fmt.Print(cli.Usage())
	case cli.CmdConfig:
		runConfig(args)
	default:
		runTUI(args)
	}
}

// loadConfig loads the config named by --config, or the default file. A
// default file that cannot be decoded yields defaults plus a warning error.
func loadConfig(args cli.Args) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		cli.Fatal(cli.NewCommandError("opentalk", "load config", "configuration is invalid", cli.ExitConfigError, err))
	}
	return cfg, err
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func runConfig(args cli.Args) {
	switch args.Subcommand {
	case "init":
		path := args.ConfigPath
		if path == "" {
			p, err := config.ConfigPathTOML()
			if err != nil {
				cli.Fatal(cli.NewCommandError("config", "init", "cannot locate home directory", cli.ExitConfigError, err))
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil {
			cli.Fatal(cli.NewCommandError("config", "init", path+" already exists", cli.ExitConfigError, nil))
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			cli.Fatal(cli.NewCommandError("config", "init", "cannot create config directory", cli.ExitConfigError, err))
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			cli.Fatal(cli.NewCommandError("config", "init", "cannot write config", cli.ExitConfigError, err))
		}
		fmt.Printf("Wrote %s\n", path)

	default:
		cfg, err := loadConfig(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		fmt.Print(cfg.String())
	}
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(args cli.Args) {
	cfg, loadErr := loadConfig(args)

	logFile := args.LogFile
	if logFile == "" {
		logFile = cfg.Log.File
	}
	if logFile == "" {
		if p, err := config.DefaultLogPath(); err == nil {
			logFile = p
		}
	}
	log, closer, err := logging.Setup(logging.Options{File: logFile, Level: cfg.Log.Level, Debug: args.Debug})
	if err != nil {
		cli.Fatal(cli.NewCommandError("opentalk", "setup logging", logFile, cli.ExitConfigError, err))
	}
	defer closer.Close()

	if loadErr != nil {
		log.WithError(loadErr).Warn("using default configuration")
	}
	log.WithField("version", Version).Info("opentalk starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	root := app.New(styles.NewTheme(), loginOptions(ctx, cfg, args, log), chat.Options{
		DownloadDir: cfg.Transfer.DownloadDir,
		Logger:      log,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	final, runErr := p.Run()

	if m, ok := final.(app.Model); ok && m.Session() != nil {
		if err := m.Session().Close(); err != nil {
			log.WithError(err).Warn("session close")
		}
	}
	if runErr != nil {
		log.WithError(runErr).Error("program exited with error")
		fmt.Fprintf(os.Stderr, "Error running opentalk: %v\n", runErr)
		os.Exit(cli.ExitGeneralError)
	}
	log.Info("opentalk stopped")
}

// loginOptions pre-fills the login form from config, then flags.
func loginOptions(ctx context.Context, cfg *config.Config, args cli.Args, log logrus.FieldLogger) login.Options {
	opts := login.Options{
		Name:    cfg.User.Name,
		Address: cfg.Server.Address,
		Context: ctx,
		Logger:  log,
	}
	if cfg.Server.Port > 0 {
		opts.Port = strconv.Itoa(cfg.Server.Port)
	}
	if args.Name != "" {
		opts.Name = args.Name
	}
	if args.Host != "" {
		opts.Address = args.Host
	}
	if args.Port > 0 {
		opts.Port = strconv.Itoa(args.Port)
	}

	deps := session.Deps{
		Connect: func(name string, stager *transfer.Stager) network.Dialer {
			return network.NewDialer(network.Options{
				Name:          name,
				Stager:        stager,
				RateLimitKBps: cfg.Transfer.RateLimitKBps,
				Logger:        log,
			})
		},
		StagingDir:    cfg.Transfer.StagingDir,
		StagingPrefix: cfg.Transfer.StagingPrefix,
		MaxConcurrent: cfg.Transfer.MaxConcurrent,
		Logger:        log,
	}
	opts.Bootstrap = func(ctx context.Context, creds session.Credentials) (login.Session, error) {
		s, err := session.Bootstrap(ctx, creds, deps)
		if err != nil {
			// a nil *Session must not become a non-nil interface
			return nil, err
		}
		return s, nil
	}
	return opts
}
