package chat

import (
	"errors"
	"fmt"
	"sort"

	"github.com/omochice/chanrelay/pkg/protocol"
)

// ErrUnknownClient is returned when routing on behalf of a client the hub
// does not hold.
var ErrUnknownClient = errors.New("client not registered with hub")

// ErrUnroutable is returned for a message variant the router has no rule for.
var ErrUnroutable = errors.New("unroutable message")

// Hub is the connection table and channel router.
//
// Hub is not safe for concurrent use: the server's event loop owns it and is
// the only goroutine that mutates it, so no lock guards the table.
type Hub struct {
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
	nextSeq  uint64
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	if _, ok := h.clients[client]; ok {
		return
	}
	h.nextSeq++
	client.seq = h.nextSeq
	h.clients[client] = struct{}{}
}

// Unregister removes a client from the hub and from every channel it
// subscribed to. It reports whether the client was present.
func (h *Hub) Unregister(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	for _, ch := range client.channels {
		subs := h.channels[ch]
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, ch)
		}
	}
	return true
}

// Has reports whether client is registered.
func (h *Hub) Has(client *Client) bool {
	_, ok := h.clients[client]
	return ok
}

// Join subscribes client to channel. Joining an already subscribed channel
// leaves the subscription set unchanged and returns false, as does joining on
// behalf of a client the hub does not hold.
func (h *Hub) Join(client *Client, channel string) bool {
	if !h.Has(client) {
		return false
	}
	client.state = StateSubscribed
	if client.Subscribed(channel) {
		return false
	}
	client.channels = append(client.channels, channel)

	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
	return true
}

// Subscribers returns the clients subscribed to channel in registration order.
func (h *Hub) Subscribers(channel string) []*Client {
	subs := h.channels[channel]
	out := make([]*Client, 0, len(subs))
	for c := range subs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Route applies the routing rule for msg sent by from and returns the clients
// that must receive it.
//
// register and join are acknowledged to the sender only; message goes to
// every subscriber of its channel, the sender included when subscribed. A
// message to a channel nobody subscribes to yields no recipients.
func (h *Hub) Route(from *Client, msg protocol.Message) ([]*Client, error) {
	if !h.Has(from) {
		return nil, ErrUnknownClient
	}

	switch m := msg.(type) {
	case protocol.Register:
		from.Name = m.Name
		if from.state == StateUnregistered {
			from.state = StateRegistered
		}
		return []*Client{from}, nil
	case protocol.Join:
		h.Join(from, m.Channel)
		return []*Client{from}, nil
	case protocol.Text:
		return h.Subscribers(m.Channel), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnroutable, msg)
	}
}

// Clients returns all registered clients in registration order.
func (h *Hub) Clients() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	return len(h.clients)
}

// Channels returns channel names with their subscriber counts.
func (h *Hub) Channels() map[string]int {
	out := make(map[string]int, len(h.channels))
	for ch, subs := range h.channels {
		out[ch] = len(subs)
	}
	return out
}
