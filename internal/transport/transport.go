package transport

import (
	"fmt"

	"github.com/holoshare/relay/pkg/streaming"
)

// Handler consumes an envelope delivered by the transport. Handlers run
// on the transport's read goroutine and must not block.
type Handler func(env streaming.Envelope)

// Transport moves envelopes between session peers. Broadcast is
// fire-and-forget; delivery order is preserved per sender but nothing
// is guaranteed across senders.
type Transport interface {
	// Connect joins the session. OnReceive must be set before Connect.
	Connect() error
	Broadcast(env streaming.Envelope) error
	OnReceive(h Handler)
	Close() error
}

// New builds a transport from its config name.
func New(kind, url, secret string, localPeer uint16) (Transport, error) {
	switch kind {
	case "loopback":
		return NewHub().Client(localPeer), nil
	case "websocket":
		return NewWebsocketClient(url, secret, localPeer), nil
	default:
		return nil, fmt.Errorf("unknown transport type: %q", kind)
	}
}
