package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alxayo/audiocast/internal/audiocast/pacer"
	"github.com/alxayo/audiocast/internal/audiocast/source"
	"github.com/alxayo/audiocast/internal/audiocast/transport"
	"github.com/alxayo/audiocast/internal/logger"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		// the flag package already printed parse errors; validation errors
		// from parseFlags are not printed, only the exit status reports them
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

	src, err := source.Open(cfg.wavPath)
	if err != nil {
		log.Error("failed to open source WAV", "path", cfg.wavPath, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	server := transport.New(transport.Config{
		ListenAddr:      cfg.listenAddr(),
		MaxFrameSize:    uint32(cfg.maxFrameSize),
		HookScripts:     cfg.hookScripts,
		HookWebhooks:    cfg.hookWebhooks,
		HookTimeout:     cfg.hookTimeout,
		HookConcurrency: cfg.hookConcurrency,
	})

	if err := server.Bind(); err != nil {
		log.Error("failed to bind server", "error", err)
		os.Exit(1)
	}

	log.Info("server started", "addr", server.Addr().String(), "wav", cfg.wavPath, "version", version)

	pacerDone := make(chan error, 1)
	go func() {
		pacerDone <- pacer.Run(src, server)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pacerErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case pacerErr = <-pacerDone:
		if pacerErr != nil {
			log.Error("pacer stopped with error", "error", pacerErr)
		} else {
			log.Info("stream finished")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := server.Drop(); err != nil {
			log.Error("server stop error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
		os.Exit(1)
	}

	if pacerErr != nil {
		os.Exit(1)
	}
}
