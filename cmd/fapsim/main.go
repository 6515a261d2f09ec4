// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/fap/lib/clock"
	"github.com/bureau-foundation/fap/lib/fapclient"
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

// Area is a latitude/longitude bounding box in degrees.
type Area struct {
	MinLatitude, MaxLatitude   float64
	MinLongitude, MaxLongitude float64
}

// testArea surrounds the default flight controller origin. Its corners
// lie beyond the default maximum distance, so some users get dropped
// and reconnect.
var testArea = Area{
	MinLatitude: 41.175590, MaxLatitude: 41.180524,
	MinLongitude: -8.601089, MaxLongitude: -8.594566,
}

// Options configures a simulation.
type Options struct {
	Address  string
	Clients  int
	FirstID  int
	Period   time.Duration
	Updates  int
	Altitude float64
	Area     Area
	Seed     uint64
}

// Stats counts simulation outcomes.
type Stats struct {
	Associations atomic.Int64
	Rejections   atomic.Int64
	Updates      atomic.Int64
	Drops        atomic.Int64
}

func run(args []string) error {
	options := Options{Area: testArea}
	var logLevel string
	var showVersion bool

	flagSet := pflag.NewFlagSet("fapsim", pflag.ContinueOnError)
	flagSet.StringVar(&options.Address, "address", "127.0.0.1:40123", "access point address")
	flagSet.IntVarP(&options.Clients, "clients", "n", 10, "number of simulated users")
	flagSet.IntVar(&options.FirstID, "first-id", 1, "user id of the first simulated user")
	flagSet.DurationVar(&options.Period, "period", 10*time.Second, "GPS update period")
	flagSet.IntVar(&options.Updates, "updates", 0, "accepted updates per user before leaving (0: run until interrupted)")
	flagSet.Float64Var(&options.Altitude, "altitude", 0, "altitude of every fix, in metres")
	flagSet.Uint64Var(&options.Seed, "seed", 0, "random seed (0: time based)")
	flagSet.StringVar(&logLevel, "log-level", "info", "logging level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print(os.Stdout, "fapsim")
		return nil
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Format: logging.FormatAuto, Level: level})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var stats Stats
	err = simulate(ctx, options, clock.Real(), logger.Logger, &stats)
	logger.Info("simulation finished",
		"associations", stats.Associations.Load(),
		"rejections", stats.Rejections.Load(),
		"updates", stats.Updates.Load(),
		"drops", stats.Drops.Load(),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// simulate runs options.Clients users until they finish or ctx ends.
func simulate(ctx context.Context, options Options, clk clock.Clock, logger *slog.Logger, stats *Stats) error {
	if options.Clients < 1 {
		return fmt.Errorf("--clients must be at least 1, got %d", options.Clients)
	}
	if options.Period <= 0 {
		return errors.New("--period must be positive")
	}
	seed := options.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for index := range options.Clients {
		user := &simulatedUser{
			id:      options.FirstID + index,
			options: options,
			random:  newRandom(seed, uint64(index)),
			clock:   clk,
			logger:  logger.With("user_id", options.FirstID+index),
			stats:   stats,
		}
		group.Go(func() error { return user.run(groupCtx) })
	}
	return group.Wait()
}

type simulatedUser struct {
	id      int
	options Options
	random  *rand.Rand
	clock   clock.Clock
	logger  *slog.Logger
	stats   *Stats
}

func (u *simulatedUser) run(ctx context.Context) error {
	ticker := u.clock.NewTicker(u.options.Period)
	defer ticker.Stop()

	var client *fapclient.Client
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	associated := false
	accepted := 0
	for {
		if client == nil {
			dialed, err := fapclient.Dial(ctx, u.options.Address, fapclient.Options{UserID: u.id, Logger: u.logger})
			if err != nil {
				return fmt.Errorf("user %d: %w", u.id, err)
			}
			client = dialed
		}

		if !associated {
			switch err := client.Associate(ctx); {
			case err == nil:
				associated = true
				u.stats.Associations.Add(1)
				u.logger.Info("associated", "server_id", client.ServerID())
			case errors.Is(err, fapclient.ErrRejected):
				u.stats.Rejections.Add(1)
				u.logger.Info("association rejected, retrying next period")
			default:
				return fmt.Errorf("user %d: %w", u.id, err)
			}
		}

		if associated {
			fix := u.randomFix()
			if _, err := client.SendPosition(ctx, fix); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// The access point closes the connection of a user
				// that strays too far.
				u.stats.Drops.Add(1)
				u.logger.Warn("dropped by access point, reconnecting", "fix", fix.String(), "error", err)
				client.Close()
				client = nil
				associated = false
			} else {
				u.stats.Updates.Add(1)
				accepted++
				u.logger.Debug("position sent", "fix", fix.String())
			}

			if u.options.Updates > 0 && accepted >= u.options.Updates {
				if err := client.Desassociate(ctx); err != nil {
					return fmt.Errorf("user %d: %w", u.id, err)
				}
				u.logger.Info("desassociated", "updates", accepted)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newRandom(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func (u *simulatedUser) randomFix() geo.RawCoordinates {
	area := u.options.Area
	return geo.RawCoordinates{
		Latitude:  area.MinLatitude + u.random.Float64()*(area.MaxLatitude-area.MinLatitude),
		Longitude: area.MinLongitude + u.random.Float64()*(area.MaxLongitude-area.MinLongitude),
		Altitude:  u.options.Altitude,
		Timestamp: u.clock.Now(),
	}
}
