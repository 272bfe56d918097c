package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/pacforge/internal/resolver"
)

// Tools names the external programs the process collaborators run.
type Tools struct {
	Git     string
	Makepkg string
	Pacman  string
	Sudo    string
}

// Config is the resolved application configuration.
type Config struct {
	Policy        resolver.Policy
	ProviderOrder []string
	UpgradeMenu   bool
	Devel         bool

	FetchConcurrency int
	FetchTimeout     time.Duration
	RemoteTimeout    time.Duration

	LogLevel  string
	LogFormat string

	MetricsPort int

	SocketIOURL       string
	SocketIONamespace string
	SocketIOInsecure  bool

	SnapshotPath string
	CloneDir     string

	Tools Tools
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Policy:            resolver.DefaultPolicy(),
		FetchConcurrency:  4,
		FetchTimeout:      2 * time.Minute,
		RemoteTimeout:     30 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
		SocketIONamespace: "/",
		CloneDir:          ".pacforge/clone",
		Tools: Tools{
			Git:     "git",
			Makepkg: "makepkg",
			Pacman:  "pacman",
			Sudo:    "sudo",
		},
	}
}

// Validate rejects settings the rest of the program cannot use.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.LogFormat))
	}
	mode, err := resolver.ParseMode(string(c.Policy.Mode))
	if err != nil {
		errs = append(errs, err)
	} else {
		c.Policy.Mode = mode
	}
	if _, err := resolver.ParseProviderOrder(c.ProviderOrder); err != nil {
		errs = append(errs, err)
	}
	if c.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("fetch concurrency must be at least 1, got %d", c.FetchConcurrency))
	}
	if c.FetchTimeout < 0 || c.RemoteTimeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid metrics port %d", c.MetricsPort))
	}
	if c.CloneDir == "" {
		errs = append(errs, errors.New("clone_dir cannot be empty"))
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps a level name to its slog level. Names are case
// insensitive and "warning" is accepted for "warn". Unknown names yield
// slog.LevelInfo and an error.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
}
