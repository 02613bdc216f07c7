package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/chanrelay/internal/config"
	"github.com/omochice/chanrelay/internal/logging"
	"github.com/omochice/chanrelay/internal/server"
)

func main() {
	cfg := config.ServerFromEnv()

	// Parse command-line flags; environment values become the defaults
	flag.StringVar(&cfg.Address, "addr", cfg.Address, "TCP address to listen on (e.g., localhost:5000)")
	flag.StringVar(&cfg.WebSocketAddress, "ws-addr", cfg.WebSocketAddress, "WebSocket address to listen on, disabled when empty (e.g., :8080)")
	flag.StringVar(&cfg.WebSocketPath, "ws-path", cfg.WebSocketPath, "Request path accepted for WebSocket upgrades")
	flag.IntVar(&cfg.MaxFrameSize, "max-frame-size", cfg.MaxFrameSize, "Largest accepted frame payload in bytes")
	flag.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Time allowed for a subscriber to take one frame")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Append logs to this file instead of stderr")
	logConsole := flag.Bool("log-console", false, "Human-readable log output instead of JSON")
	flag.Parse()

	logger, closer, err := logging.New(logging.Options{Level: *logLevel, File: *logFile, Console: *logConsole})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closer.Close()

	srv := server.New(cfg, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			closer.Close()
			os.Exit(1)
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Stop()
		<-errChan
	}
}
