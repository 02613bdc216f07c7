// Package config provides the runtime defaults, environment overrides and
// validation for the relay server and client.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/omochice/chanrelay/pkg/protocol"
)

// Environment variables read by ServerFromEnv and ClientFromEnv.
const (
	EnvAddress          = "CHANRELAY_ADDR"
	EnvWebSocketAddress = "CHANRELAY_WS_ADDR"
	EnvWebSocketPath    = "CHANRELAY_WS_PATH"
	EnvMaxFrameSize     = "CHANRELAY_MAX_FRAME_SIZE"
	EnvWriteTimeout     = "CHANRELAY_WRITE_TIMEOUT"
	EnvEventBuffer      = "CHANRELAY_EVENT_BUFFER"
	EnvName             = "CHANRELAY_NAME"
	EnvDialTimeout      = "CHANRELAY_DIAL_TIMEOUT"
)

// DefaultAddress is where the server listens and the client connects when
// nothing else is configured.
const DefaultAddress = "localhost:5000"

// Server holds the relay server settings.
type Server struct {
	// Address is the host:port of the raw TCP listener.
	Address string
	// WebSocketAddress enables a second listener accepting WebSocket
	// upgrades when non-empty.
	WebSocketAddress string
	// WebSocketPath is the request path accepted for upgrades.
	WebSocketPath string
	// MaxFrameSize bounds the payload of a single inbound frame.
	MaxFrameSize int
	// WriteTimeout bounds every frame write; a subscriber that cannot take a
	// frame within it is disconnected.
	WriteTimeout time.Duration
	// EventBuffer is the capacity of the event loop's inbound queue.
	EventBuffer int
}

// Client holds the relay client settings.
type Client struct {
	// Address is host:port for TCP or a ws:// URL for WebSocket.
	Address      string
	Name         string
	MaxFrameSize int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServer returns a Server populated with default values for all settings.
func DefaultServer() Server {
	return Server{
		Address:       DefaultAddress,
		WebSocketPath: "/ws",
		MaxFrameSize:  protocol.DefaultMaxPayloadSize,
		WriteTimeout:  5 * time.Second,
		EventBuffer:   256,
	}
}

// DefaultClient returns a Client populated with default values for all settings.
func DefaultClient() Client {
	return Client{
		Address:      DefaultAddress,
		Name:         "Foo",
		MaxFrameSize: protocol.DefaultMaxPayloadSize,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// ServerFromEnv creates a Server from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func ServerFromEnv() Server {
	cfg := DefaultServer()

	if addr := os.Getenv(EnvAddress); addr != "" {
		cfg.Address = addr
	}
	if addr := os.Getenv(EnvWebSocketAddress); addr != "" {
		cfg.WebSocketAddress = addr
	}
	if path := os.Getenv(EnvWebSocketPath); path != "" {
		cfg.WebSocketPath = path
	}
	if size := os.Getenv(EnvMaxFrameSize); size != "" {
		cfg.MaxFrameSize = parseIntValue(size, cfg.MaxFrameSize)
	}
	if timeout := os.Getenv(EnvWriteTimeout); timeout != "" {
		cfg.WriteTimeout = parseDuration(timeout, cfg.WriteTimeout)
	}
	if buf := os.Getenv(EnvEventBuffer); buf != "" {
		cfg.EventBuffer = parseIntValue(buf, cfg.EventBuffer)
	}

	return cfg
}

// ClientFromEnv creates a Client from environment variables.
func ClientFromEnv() Client {
	cfg := DefaultClient()

	if addr := os.Getenv(EnvAddress); addr != "" {
		cfg.Address = addr
	}
	if name := os.Getenv(EnvName); name != "" {
		cfg.Name = name
	}
	if size := os.Getenv(EnvMaxFrameSize); size != "" {
		cfg.MaxFrameSize = parseIntValue(size, cfg.MaxFrameSize)
	}
	if timeout := os.Getenv(EnvDialTimeout); timeout != "" {
		cfg.DialTimeout = parseDuration(timeout, cfg.DialTimeout)
	}
	if timeout := os.Getenv(EnvWriteTimeout); timeout != "" {
		cfg.WriteTimeout = parseDuration(timeout, cfg.WriteTimeout)
	}

	return cfg
}

// Validate reports the first invalid server setting.
func (c Server) Validate() error {
	if c.Address == "" {
		return errors.New("config: address is required")
	}
	if c.WebSocketAddress != "" && !strings.HasPrefix(c.WebSocketPath, "/") {
		return fmt.Errorf("config: websocket path %q must start with /", c.WebSocketPath)
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("config: max frame size must be positive, got %d", c.MaxFrameSize)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("config: write timeout must be positive, got %v", c.WriteTimeout)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("config: event buffer must not be negative, got %d", c.EventBuffer)
	}
	return nil
}

// Validate reports the first invalid client setting.
func (c Client) Validate() error {
	if c.Address == "" {
		return errors.New("config: address is required")
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("config: max frame size must be positive, got %d", c.MaxFrameSize)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("config: dial timeout must be positive, got %v", c.DialTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("config: write timeout must be positive, got %v", c.WriteTimeout)
	}
	return nil
}

// IsWebSocket reports whether the client address selects the WebSocket transport.
func (c Client) IsWebSocket() bool {
	return strings.HasPrefix(c.Address, "ws://") || strings.HasPrefix(c.Address, "wss://")
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go duration syntax ("750ms") or a bare number of seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
