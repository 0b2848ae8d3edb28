package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// cliConfig holds user supplied flag values prior to translation into
// transport.Config so main.go can validate and map.
type cliConfig struct {
	port            uint
	wavPath         string
	logLevel        string
	maxFrameSize    uint
	showVersion     bool
	hookScripts     []string // event_type=script_path pairs
	hookWebhooks    []string // event_type=webhook_url pairs
	hookTimeout     string
	hookConcurrency int
}

// listenAddr is the net.Listen-ready address for cfg.port.
func (c *cliConfig) listenAddr() string {
	return fmt.Sprintf(":%d", c.port)
}

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("audiocast-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var hookScripts stringSliceFlag
	var hookWebhooks stringSliceFlag

	fs.UintVar(&cfg.port, "port", 8080, "TCP port to listen on (1-65535)")
	fs.StringVar(&cfg.wavPath, "wav", "", "Path to the source WAV file (required)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.UintVar(&cfg.maxFrameSize, "max-frame-size", 16*1024*1024, "Maximum frame size in bytes (kept in the server config; broadcast payloads are not checked against it)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.Var(&hookScripts, "hook-script", "Hook script in format event_type=script_path (can be specified multiple times)")
	fs.Var(&hookWebhooks, "hook-webhook", "Hook webhook in format event_type=webhook_url (can be specified multiple times)")
	fs.StringVar(&cfg.hookTimeout, "hook-timeout", "30s", "Timeout for hook execution")
	fs.IntVar(&cfg.hookConcurrency, "hook-concurrency", 10, "Maximum concurrent hook executions")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.hookScripts = hookScripts
	cfg.hookWebhooks = hookWebhooks

	if cfg.showVersion {
		return cfg, nil
	}

	if cfg.wavPath == "" {
		return nil, errors.New("-wav is required")
	}
	if !strings.HasSuffix(strings.ToLower(cfg.wavPath), ".wav") {
		return nil, fmt.Errorf("-wav must name a .wav file, got %q", cfg.wavPath)
	}
	if info, err := os.Stat(cfg.wavPath); err != nil {
		return nil, fmt.Errorf("-wav %q: %w", cfg.wavPath, err)
	} else if info.IsDir() {
		return nil, fmt.Errorf("-wav %q is a directory", cfg.wavPath)
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if cfg.maxFrameSize == 0 {
		return nil, errors.New("max-frame-size must be non-zero")
	}

	if cfg.port == 0 || cfg.port > 65535 {
		return nil, fmt.Errorf("-port must be between 1 and 65535, got %d", cfg.port)
	}

	for _, script := range cfg.hookScripts {
		if err := validateHookAssignment("hook-script", script); err != nil {
			return nil, err
		}
	}
	for _, webhook := range cfg.hookWebhooks {
		if err := validateHookAssignment("hook-webhook", webhook); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// stringSliceFlag implements flag.Value for flags given multiple times.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ", ") }

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// validateHookAssignment validates event_type=value format.
func validateHookAssignment(flagName, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid %s format %q, expected event_type=value", flagName, assignment)
	}
	if parts[0] == "" {
		return fmt.Errorf("invalid %s: event type cannot be empty", flagName)
	}
	if parts[1] == "" {
		return fmt.Errorf("invalid %s: value cannot be empty", flagName)
	}
	return nil
}
