package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

type cliConfig struct {
	serverIP     string
	serverPort   string
	logLevel     string
	maxFrameSize uint
	showVersion  bool
	outputPath   string
	speakerName  string
	defaultSpeak bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("audiocast-client", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.serverIP, "ip", "", "Server IP address or hostname")
	fs.StringVar(&cfg.serverPort, "port", "", "Server TCP port")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.UintVar(&cfg.maxFrameSize, "max-frame-size", 16*1024*1024, "Maximum accepted frame size in bytes")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&cfg.outputPath, "file", "", "Write received audio to this WAV file")
	fs.StringVar(&cfg.speakerName, "speaker", "", "Play through the named output device")
	fs.BoolVar(&cfg.defaultSpeak, "default-speaker", false, "Play through the default output device")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.showVersion {
		return cfg, nil
	}

	if cfg.serverIP == "" {
		return nil, errors.New("-ip is required")
	}
	if cfg.serverPort == "" {
		return nil, errors.New("-port is required")
	}

	selected := 0
	if cfg.outputPath != "" {
		selected++
	}
	if cfg.speakerName != "" {
		selected++
	}
	if cfg.defaultSpeak {
		selected++
	}
	if selected != 1 {
		return nil, fmt.Errorf("exactly one of -file, -speaker, or -default-speaker is required")
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if cfg.maxFrameSize == 0 {
		return nil, errors.New("max-frame-size must be non-zero")
	}

	return cfg, nil
}

// listSpeakersCmd is the subcommand name for enumerating output devices,
// invoked as "audiocast-client list-available-speakers" rather than a flag.
const listSpeakersCmd = "list-available-speakers"

// parseListSpeakersFlags parses the (currently empty) flag set for the
// list-available-speakers subcommand, mirroring the top-level command's
// flag.NewFlagSet usage for consistency.
func parseListSpeakersFlags(args []string) error {
	fs := flag.NewFlagSet(listSpeakersCmd, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	return fs.Parse(args)
}
