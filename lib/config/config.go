// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable [Load] reads the file path
// from.
const EnvVar = "FAP_CONFIG"

// Config is the daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Autopilot AutopilotConfig `yaml:"autopilot"`
	Control   ControlConfig   `yaml:"control"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the access point protocol server.
type ServerConfig struct {
	// ID is put in the userId field of every reply.
	ID int `yaml:"id"`

	// Bind is the listen host. Default: 0.0.0.0
	Bind string `yaml:"bind"`

	// Port is the listen port. 0 picks a free port. Default: 40123
	Port int `yaml:"port"`

	// MaxAssociatedUsers caps concurrent associations. Default: 10
	MaxAssociatedUsers int `yaml:"max_associated_users"`

	// MaxRejectedUsers is the number of extra connection slots kept so
	// clients beyond the cap can connect and be told they are rejected.
	// Default: 1
	MaxRejectedUsers int `yaml:"max_rejected_users"`

	// UpdatePeriod is how often clients send GPS updates. Default: 10s
	UpdatePeriod Duration `yaml:"update_period"`

	// UpdateTimeout is how long an associated client may stay silent.
	// Zero means twice UpdatePeriod.
	UpdateTimeout Duration `yaml:"update_timeout"`

	// ReceiveTimeout bounds each socket read. Zero means 1.5 times the
	// update timeout.
	ReceiveTimeout Duration `yaml:"receive_timeout"`

	// MaxDistance is the largest accepted distance in metres between
	// the vehicle and a user. Default: 300
	MaxDistance float64 `yaml:"max_distance"`

	// HeartbeatInterval paces heartbeats to the flight controller.
	// Default: 500ms
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// ShutdownTimeout bounds each wait during shutdown. Default: 5s
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// AutopilotConfig configures the flight controller.
type AutopilotConfig struct {
	// Origin is the global origin reported by the emulated flight
	// controller.
	Origin OriginConfig `yaml:"origin"`
}

// OriginConfig is a geodetic position in degrees and metres.
type OriginConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

// ControlConfig configures the operator control socket.
type ControlConfig struct {
	// SocketPath is the Unix socket path. Empty disables the socket.
	// Default: /run/fap/control.sock
	SocketPath string `yaml:"socket_path"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is one of text, json, auto. Default: auto
	Format string `yaml:"format"`

	// File, when set, receives log records instead of stderr and is
	// rotated by size.
	File string `yaml:"file"`

	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ID:                 254,
			Bind:               "0.0.0.0",
			Port:               40123,
			MaxAssociatedUsers: 10,
			MaxRejectedUsers:   1,
			UpdatePeriod:       Duration(10 * time.Second),
			MaxDistance:        300,
			HeartbeatInterval:  Duration(500 * time.Millisecond),
			ShutdownTimeout:    Duration(5 * time.Second),
		},
		Autopilot: AutopilotConfig{
			Origin: OriginConfig{Latitude: 41.1779656, Longitude: -8.5971899, Altitude: 0},
		},
		Control: ControlConfig{
			SocketPath: "/run/fap/control.sock",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads the file named by FAP_CONFIG. Unlike [LoadFile] it fails
// when the variable is unset; callers that allow running on defaults
// check the variable themselves.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your fap.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads path over [Default]. Fields the file omits keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes data as the contents of the file at path. The
// extension selects the format.
func Parse(path string, data []byte) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// YAML is a superset of JSON, so the stripped document goes
		// through the same decoder and the same tags.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// Address returns the listen address as host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Bind, strconv.Itoa(c.Server.Port))
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	c.Control.SocketPath = expandVars(c.Control.SocketPath)
	c.Logging.File = expandVars(c.Logging.File)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json", "auto"}
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	server := c.Server
	if server.ID < 1 {
		errs = append(errs, fmt.Errorf("server.id must be positive, got %d", server.ID))
	}
	if server.Port < 0 || server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in [0, 65535], got %d", server.Port))
	}
	if server.MaxAssociatedUsers < 1 {
		errs = append(errs, fmt.Errorf("server.max_associated_users must be at least 1, got %d", server.MaxAssociatedUsers))
	}
	if server.MaxRejectedUsers < 0 {
		errs = append(errs, fmt.Errorf("server.max_rejected_users must not be negative, got %d", server.MaxRejectedUsers))
	}
	if server.UpdatePeriod <= 0 {
		errs = append(errs, errors.New("server.update_period must be positive"))
	}
	if server.UpdateTimeout < 0 || server.ReceiveTimeout < 0 {
		errs = append(errs, errors.New("server.update_timeout and server.receive_timeout must not be negative"))
	}
	if !(server.MaxDistance > 0) || math.IsInf(server.MaxDistance, 0) {
		errs = append(errs, fmt.Errorf("server.max_distance must be a positive number, got %v", server.MaxDistance))
	}
	if server.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("server.heartbeat_interval must be positive"))
	}
	if server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	origin := c.Autopilot.Origin
	if origin.Latitude < -90 || origin.Latitude > 90 || origin.Longitude < -180 || origin.Longitude > 180 {
		errs = append(errs, fmt.Errorf("autopilot.origin out of range: %v, %v", origin.Latitude, origin.Longitude))
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}

	return errors.Join(errs...)
}
