// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/fap/lib/codec"
	"github.com/bureau-foundation/fap/lib/config"
	"github.com/bureau-foundation/fap/lib/control"
	"github.com/bureau-foundation/fap/lib/geo"
	"github.com/bureau-foundation/fap/lib/process"
	"github.com/bureau-foundation/fap/lib/version"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

const usage = `Usage: fapctl [flags] <command> [args]

Commands:
  status            server id, address, users, heartbeat
  position          current NED position of the vehicle
  users             last known position of each associated user
  move <x> <y> <z>  set the NED position target, in metres
  version           print version information

Put -- before negative move coordinates: fapctl move -- 10 -5 -20

Flags:
`

type options struct {
	socketPath string
	jsonOutput bool
	rawOutput  bool
	timeout    time.Duration
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var parsed options
	flagSet := pflag.NewFlagSet("fapctl", pflag.ContinueOnError)
	flagSet.StringVar(&parsed.socketPath, "socket", "", "control socket path")
	flagSet.BoolVar(&parsed.jsonOutput, "json", false, "print response data as JSON")
	flagSet.BoolVar(&parsed.rawOutput, "raw", false, "print response data in CBOR diagnostic notation")
	flagSet.DurationVar(&parsed.timeout, "timeout", 10*time.Second, "request timeout")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}
	command, commandArgs := flagSet.Arg(0), flagSet.Args()[1:]

	if command == "version" {
		version.Print(stdout, "fapctl")
		return nil
	}

	socketPath, err := resolveSocket(parsed.socketPath)
	if err != nil {
		return err
	}
	client := control.NewClient(socketPath)

	ctx, cancel := context.WithTimeout(ctx, parsed.timeout)
	defer cancel()

	action, fields, err := buildRequest(command, commandArgs)
	if err != nil {
		return err
	}

	if parsed.rawOutput {
		data, err := client.CallRaw(ctx, action, fields)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Fprintln(stdout, "ok")
			return nil
		}
		notation, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		fmt.Fprintln(stdout, notation)
		return nil
	}

	switch action {
	case control.ActionStatus:
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if parsed.jsonOutput {
			return printJSON(stdout, status)
		}
		printStatus(stdout, status)
	case control.ActionPosition:
		position, err := client.Position(ctx)
		if err != nil {
			return err
		}
		if parsed.jsonOutput {
			return printJSON(stdout, position)
		}
		fmt.Fprintf(stdout, "x=%.2f y=%.2f z=%.2f\n", position.X, position.Y, position.Z)
	case control.ActionUsers:
		users, err := client.Users(ctx)
		if err != nil {
			return err
		}
		if parsed.jsonOutput {
			return printJSON(stdout, users)
		}
		printUsers(stdout, users)
	case control.ActionMove:
		if err := client.Call(ctx, action, fields, nil); err != nil {
			return err
		}
		if parsed.jsonOutput {
			return printJSON(stdout, map[string]bool{"ok": true})
		}
		fmt.Fprintln(stdout, "ok")
	}
	return nil
}

// resolveSocket picks the socket path from the flag, then the config
// file named by FAP_CONFIG, then the default.
func resolveSocket(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if path := os.Getenv(config.EnvVar); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return "", fmt.Errorf("loading %s: %w", path, err)
		}
		if cfg.Control.SocketPath == "" {
			return "", fmt.Errorf("control socket is disabled in %s", path)
		}
		return cfg.Control.SocketPath, nil
	}
	return config.Default().Control.SocketPath, nil
}

// buildRequest maps a command line onto an action and its fields.
func buildRequest(command string, args []string) (string, map[string]any, error) {
	switch command {
	case control.ActionStatus, control.ActionPosition, control.ActionUsers:
		if len(args) != 0 {
			return "", nil, fmt.Errorf("%s takes no arguments", command)
		}
		return command, nil, nil
	case control.ActionMove:
		if len(args) != 3 {
			return "", nil, errors.New("usage: fapctl move <x> <y> <z>")
		}
		var target geo.NedCoordinates
		for index, field := range []*float64{&target.X, &target.Y, &target.Z} {
			value, err := strconv.ParseFloat(args[index], 64)
			if err != nil {
				return "", nil, fmt.Errorf("move: invalid coordinate %q", args[index])
			}
			*field = value
		}
		if !target.IsFinite() {
			return "", nil, errors.New("move: coordinates must be finite")
		}
		return command, map[string]any{"x": target.X, "y": target.Y, "z": target.Z}, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func printStatus(w io.Writer, status control.StatusResponse) {
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(table, "server id\t%d\n", status.ServerID)
	fmt.Fprintf(table, "address\t%s\n", status.Address)
	fmt.Fprintf(table, "users\t%d associated, %d connected, %d slots\n", status.ActiveUsers, status.Sessions, status.Capacity)
	fmt.Fprintf(table, "origin\t%s\n", status.Origin)
	fmt.Fprintf(table, "started\t%s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(table, "heartbeat\t%s\n", map[bool]string{true: "alive", false: "failing"}[status.HeartbeatAlive])
	table.Flush()
}

func printUsers(w io.Writer, users []control.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "no positioned users")
		return
	}
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "SLOT\tUSER\tX\tY\tZ\tLAST UPDATE")
	for _, user := range users {
		fmt.Fprintf(table, "%d\t%d\t%.2f\t%.2f\t%.2f\t%s\n",
			user.Slot, user.UserID, user.Position.X, user.Position.Y, user.Position.Z,
			user.LastUpdate.Format(time.RFC3339))
	}
	table.Flush()
}
