package chat

import (
	"github.com/google/uuid"
)

// State is the lifecycle stage of a connection as seen by the router.
type State int

const (
	StateUnregistered State = iota
	StateRegistered
	StateSubscribed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Client is the server-side record of one accepted connection.
// It is owned by the Hub and must only be touched from the goroutine that
// owns the Hub.
type Client struct {
	ID   string
	Conn Conn

	// Name is the advisory display name from the last register.
	Name string

	state    State
	seq      uint64
	channels []string
}

// NewClient wraps conn in a new unregistered client with a fresh ID.
func NewClient(conn Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Conn: conn,
	}
}

// State returns the client's lifecycle state.
func (c *Client) State() State {
	return c.state
}

// Channels returns the client's subscriptions in join order.
func (c *Client) Channels() []string {
	out := make([]string, len(c.channels))
	copy(out, c.channels)
	return out
}

// Subscribed reports whether the client receives broadcasts for channel.
func (c *Client) Subscribed(channel string) bool {
	for _, ch := range c.channels {
		if ch == channel {
			return true
		}
	}
	return false
}
