package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/chanrelay/internal/client"
	"github.com/omochice/chanrelay/internal/config"
	"github.com/omochice/chanrelay/internal/logging"
)

func main() {
	cfg := config.ClientFromEnv()

	// Parse command-line flags; environment values become the defaults
	flag.StringVar(&cfg.Address, "server", cfg.Address, "Server address: host:port for TCP or ws://host:port/ws for WebSocket")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Display name to register with")
	flag.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Time allowed to establish the connection")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Append logs to this file instead of stderr")
	flag.Parse()

	logger, closer, err := logging.New(logging.Options{Level: *logLevel, File: *logFile, Console: *logFile == ""})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg, os.Stdout, logger)
	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to server: %v\n", err)
		closer.Close()
		os.Exit(1)
	}

	fmt.Printf("Connected to %s as %s\n", cfg.Address, cfg.Name)
	fmt.Println("Type /join <channel> to switch channels, exit to quit")

	if err := c.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Disconnected: %v\n", err)
		closer.Close()
		os.Exit(1)
	}
}
