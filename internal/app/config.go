package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects what Run does.
type Mode string

const (
	// ModeServe deploys a source directory and hosts its services.
	ModeServe Mode = "serve"
	// ModeRun deploys a single file and invokes its main function, or hosts
	// its services when it has none.
	ModeRun Mode = "run"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Mode Mode

	SourceDir string   // serve: directory scanned at startup
	File      string   // run: the single source file
	Args      []string // run: arguments for main

	Address   string
	Extension string
	Watch     bool

	SessionTimeout time.Duration // zero selects the default, negative never expires
	SessionSweep   string
	SessionShards  int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error

	switch cfg.Mode {
	case ModeServe:
		if cfg.SourceDir == "" {
			errs = append(errs, errors.New("source directory is required in serve mode"))
		}
	case ModeRun:
		if cfg.File == "" {
			errs = append(errs, errors.New("source file is required in run mode"))
		}
		if cfg.Watch {
			errs = append(errs, errors.New("watch is only supported in serve mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q: must be 'serve' or 'run'", cfg.Mode))
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if _, ok := parseLevel(cfg.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel))
	}

	if cfg.Extension != "" && !strings.HasPrefix(cfg.Extension, ".") {
		errs = append(errs, fmt.Errorf("invalid extension %q: must start with '.'", cfg.Extension))
	}
	if cfg.SessionShards < 0 {
		errs = append(errs, fmt.Errorf("invalid session-shards %d: must not be negative", cfg.SessionShards))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck-port %d", cfg.HealthcheckPort))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
