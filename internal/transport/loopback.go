package transport

import (
	"sync"

	"github.com/holoshare/relay/pkg/streaming"
)

// Hub is an in-process message fabric connecting multiple loopback
// clients. It backs single-machine sessions and tests: every broadcast
// reaches every other connected client in send order, and control
// messages that late joiners must not miss are replayed on connect.
type Hub struct {
	mu      sync.Mutex
	clients map[uint16]*loopbackClient

	// newest announce and join per peer, replayed to late joiners
	announces map[uint16]streaming.Envelope
	joins     map[uint16]streaming.Envelope
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[uint16]*loopbackClient),
		announces: make(map[uint16]streaming.Envelope),
		joins:     make(map[uint16]streaming.Envelope),
	}
}

// Client creates a transport endpoint for one peer on this hub.
func (h *Hub) Client(peerID uint16) Transport {
	return &loopbackClient{hub: h, peerID: peerID}
}

func (h *Hub) connect(c *loopbackClient) {
	h.mu.Lock()
	h.clients[c.peerID] = c

	replay := make([]streaming.Envelope, 0, len(h.joins)+len(h.announces))
	for id, env := range h.joins {
		if id != c.peerID {
			replay = append(replay, env)
		}
	}
	for id, env := range h.announces {
		if id != c.peerID {
			replay = append(replay, env)
		}
	}
	h.mu.Unlock()

	for _, env := range replay {
		c.deliver(env)
	}
}

func (h *Hub) disconnect(c *loopbackClient) {
	h.mu.Lock()
	delete(h.clients, c.peerID)
	delete(h.announces, c.peerID)
	delete(h.joins, c.peerID)
	h.mu.Unlock()

	env, err := streaming.NewEnvelope(streaming.TypePeerLeave,
		streaming.PeerLeavePayload{PeerID: c.peerID})
	if err == nil {
		env.Sender = c.peerID
		h.broadcast(c.peerID, env)
	}
}

func (h *Hub) broadcast(from uint16, env streaming.Envelope) {
	h.mu.Lock()
	switch env.Type {
	case streaming.TypeAnnounce:
		h.announces[from] = env
	case streaming.TypePeerJoin:
		h.joins[from] = env
	}
	targets := make([]*loopbackClient, 0, len(h.clients))
	for id, c := range h.clients {
		if id != from {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.deliver(env)
	}
}

type loopbackClient struct {
	hub    *Hub
	peerID uint16

	mu        sync.Mutex
	handler   Handler
	connected bool
}

func (c *loopbackClient) OnReceive(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *loopbackClient) Connect() error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.hub.connect(c)
	return nil
}

func (c *loopbackClient) Broadcast(env streaming.Envelope) error {
	env.Sender = c.peerID
	c.hub.broadcast(c.peerID, env)
	return nil
}

func (c *loopbackClient) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.mu.Unlock()
	c.hub.disconnect(c)
	return nil
}

func (c *loopbackClient) deliver(env streaming.Envelope) {
	c.mu.Lock()
	h := c.handler
	connected := c.connected
	c.mu.Unlock()
	if h != nil && connected {
		h(env)
	}
}
