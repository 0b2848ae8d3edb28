package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/alxayo/audiocast/internal/audiocast/client"
	"github.com/alxayo/audiocast/internal/audiocast/sink"
	"github.com/alxayo/audiocast/internal/audiocast/transport"
	"github.com/alxayo/audiocast/internal/logger"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == listSpeakersCmd {
		if err := parseListSpeakersFlags(os.Args[2:]); err != nil {
			os.Exit(2)
		}
		if err := printOutputDevices(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	addr := net.JoinHostPort(cfg.serverIP, cfg.serverPort)

	stopCh := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		close(stopCh)
	}()

	log.Info("connecting", "addr", addr)
	conn, err := transport.DialWithRetry(addr, uint32(cfg.maxFrameSize), stopCh)
	if err != nil {
		log.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Info("connected", "addr", conn.RemoteAddr().String())

	sessCfg := sessionConfig(cfg, stopCh)
	sess := client.NewSession(conn, log, sessCfg)

	if err := sess.Run(); err != nil {
		log.Error("session ended with error", "error", err)
		os.Exit(1)
	}
	log.Info("session ended cleanly")
}

func sessionConfig(cfg *cliConfig, stopCh chan struct{}) client.Config {
	sc := client.Config{
		Cancel: func() bool {
			select {
			case <-stopCh:
				return true
			default:
				return false
			}
		},
	}
	switch {
	case cfg.outputPath != "":
		sc.Mode = client.ModeFile
		sc.OutputPath = cfg.outputPath
	case cfg.speakerName != "":
		sc.Mode = client.ModeNamedSpeaker
		sc.DeviceName = cfg.speakerName
	case cfg.defaultSpeak:
		sc.Mode = client.ModeDefaultSpeaker
	}
	return sc
}

func printOutputDevices() error {
	devices, err := sink.ListOutputDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no output devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%d: %s\n", d.Index, d.Name)
	}
	return nil
}
