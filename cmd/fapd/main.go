// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/fap/lib/autopilot"
	"github.com/bureau-foundation/fap/lib/config"
	"github.com/bureau-foundation/fap/lib/control"
	"github.com/bureau-foundation/fap/lib/fapserver"
	"github.com/bureau-foundation/fap/lib/geo"
	"github.com/bureau-foundation/fap/lib/logging"
	"github.com/bureau-foundation/fap/lib/process"
	"github.com/bureau-foundation/fap/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options holds the parsed command line.
type options struct {
	configPath    string
	listen        string
	controlSocket string
	logLevel      string
	showVersion   bool
}

func parseFlags(args []string) (options, *pflag.FlagSet, error) {
	var parsed options
	flagSet := pflag.NewFlagSet("fapd", pflag.ContinueOnError)
	flagSet.StringVar(&parsed.configPath, "config", "", "configuration file (default: $"+config.EnvVar+", else built-in defaults)")
	flagSet.StringVar(&parsed.listen, "listen", "", "override server bind address, host:port")
	flagSet.StringVar(&parsed.controlSocket, "control-socket", "", "override control socket path")
	flagSet.StringVar(&parsed.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	flagSet.BoolVar(&parsed.showVersion, "version", false, "print version information and exit")
	err := flagSet.Parse(args)
	return parsed, flagSet, err
}

func run(args []string) error {
	parsed, flagSet, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if parsed.showVersion {
		fmt.Println("fapd " + version.Full())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg, configPath, err := loadConfig(parsed)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Format:     cfg.Logging.Format,
		Level:      level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	build := version.Current()
	logger.Info("fapd starting",
		"version", build.Version,
		"commit", build.Commit,
		"dirty", build.Dirty,
		"config", configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, configPath, logger)
}

// loadConfig resolves the configuration file, applies flag overrides
// and validates the result. The returned path is empty when running on
// defaults.
func loadConfig(parsed options) (*config.Config, string, error) {
	path := parsed.configPath
	if path == "" {
		path = os.Getenv(config.EnvVar)
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if parsed.listen != "" {
		host, portText, err := net.SplitHostPort(parsed.listen)
		if err != nil {
			return nil, "", fmt.Errorf("--listen: %w", err)
		}
		port, err := strconv.Atoi(portText)
		if err != nil {
			return nil, "", fmt.Errorf("--listen: invalid port %q", portText)
		}
		cfg.Server.Bind = host
		cfg.Server.Port = port
	}
	if parsed.controlSocket != "" {
		cfg.Control.SocketPath = parsed.controlSocket
	}
	if parsed.logLevel != "" {
		cfg.Logging.Level = parsed.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, path, nil
}

// serverConfig converts the file configuration into server limits.
func serverConfig(cfg *config.Config) fapserver.Config {
	return fapserver.Config{
		ServerID:           cfg.Server.ID,
		Address:            cfg.Address(),
		MaxAssociatedUsers: cfg.Server.MaxAssociatedUsers,
		MaxRejectedUsers:   cfg.Server.MaxRejectedUsers,
		UpdatePeriod:       cfg.Server.UpdatePeriod.Std(),
		UpdateTimeout:      cfg.Server.UpdateTimeout.Std(),
		ReceiveTimeout:     cfg.Server.ReceiveTimeout.Std(),
		MaxDistance:        cfg.Server.MaxDistance,
		HeartbeatInterval:  cfg.Server.HeartbeatInterval.Std(),
		ShutdownTimeout:    cfg.Server.ShutdownTimeout.Std(),
	}
}

// serve runs the daemon until ctx is cancelled or a component fails.
func serve(ctx context.Context, cfg *config.Config, configPath string, logger *logging.Logger) error {
	origin := cfg.Autopilot.Origin
	controller := autopilot.NewEmulator(autopilot.EmulatorConfig{
		Origin: geo.RawCoordinates{Latitude: origin.Latitude, Longitude: origin.Longitude, Altitude: origin.Altitude},
		Logger: logger.With("component", "autopilot"),
	})

	server := fapserver.New(serverConfig(cfg), controller, fapserver.WithLogger(logger.With("component", "fapserver")))
	if err := server.Initialize(ctx); err != nil {
		return fmt.Errorf("starting access point: %w", err)
	}
	logger.Info("access point running", "address", server.Addr().String())

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Control.SocketPath != "" {
		socketServer := control.NewSocketServer(cfg.Control.SocketPath, logger.With("component", "control"))
		control.Register(socketServer, server)
		group.Go(func() error {
			return socketServer.Serve(groupCtx)
		})
	}

	if configPath != "" {
		group.Go(func() error {
			return config.Watch(groupCtx, configPath, func(reloaded *config.Config, err error) {
				applyReload(logger, cfg, reloaded, err)
			})
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		return nil
	})

	runErr := group.Wait()
	logger.Info("shutting down")
	if err := server.Terminate(); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		return errors.Join(runErr, err)
	}
	return runErr
}

// applyReload applies the live-reloadable part of a changed
// configuration file.
func applyReload(logger *logging.Logger, running, reloaded *config.Config, err error) {
	if err != nil {
		logger.Warn("ignoring configuration change", "error", err)
		return
	}
	if reloaded.Logging.Level != running.Logging.Level {
		level, err := logging.ParseLevel(reloaded.Logging.Level)
		if err != nil {
			logger.Warn("ignoring configuration change", "error", err)
			return
		}
		logger.Level.Set(level)
		running.Logging.Level = reloaded.Logging.Level
		logger.Info("log level changed", "level", reloaded.Logging.Level)
	}
	if reloaded.Server != running.Server || reloaded.Control != running.Control || reloaded.Autopilot != running.Autopilot {
		logger.Info("configuration changed; restart fapd to apply server changes")
	}
}
