package alignment

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holoshare/relay/pkg/core"
	"github.com/holoshare/relay/pkg/streaming"
)

// Sender broadcasts an envelope to every connected peer. The transport
// layer buffers announcements for replay so late joiners still receive
// the current origin.
type Sender interface {
	Broadcast(env streaming.Envelope) error
}

// Negotiator runs the origin-announcement side of alignment. The first
// announcement waits out a settle delay so the headset's tracking has
// stabilized before the origin it reports is shared; recalibration
// announces immediately.
type Negotiator struct {
	mu        sync.Mutex
	registry  *Registry
	sender    Sender
	localPeer uint16
	schema    uint16
	settle    time.Duration
	timer     *time.Timer
	announced bool
	log       *slog.Logger
}

func NewNegotiator(registry *Registry, sender Sender, localPeer uint16, schemaVersion uint16, settle time.Duration, log *slog.Logger) *Negotiator {
	return &Negotiator{
		registry:  registry,
		sender:    sender,
		localPeer: localPeer,
		schema:    schemaVersion,
		settle:    settle,
		log:       log,
	}
}

// Start arms the settle timer. When it fires the local reference origin
// is broadcast. Calling Start again while armed restarts the delay.
func (n *Negotiator) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.settle, func() {
		if err := n.AnnounceNow(); err != nil {
			n.log.Error("origin announcement failed", "error", err)
		}
	})
	n.log.Debug("origin announcement scheduled", "settle", n.settle)
}

// Stop disarms a pending settle timer.
func (n *Negotiator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// AnnounceNow broadcasts the current local reference origin without
// waiting. Used after recalibration and when a new peer joins a
// session that already announced.
func (n *Negotiator) AnnounceNow() error {
	ref := n.registry.LocalReference()
	env, err := streaming.NewEnvelope(streaming.TypeAnnounce, streaming.AnnouncePayload{
		PeerID:        n.localPeer,
		Origin:        ref.Position,
		Rotation:      ref.Rotation,
		SchemaVersion: n.schema,
	})
	if err != nil {
		return fmt.Errorf("building announcement: %w", err)
	}
	env.Sender = n.localPeer
	if err := n.sender.Broadcast(env); err != nil {
		return fmt.Errorf("broadcasting announcement: %w", err)
	}

	n.mu.Lock()
	n.announced = true
	n.mu.Unlock()
	n.log.Info("origin announced",
		"originX", ref.Position.X, "originY", ref.Position.Y, "originZ", ref.Position.Z)
	return nil
}

// Announced reports whether the local origin has been broadcast at
// least once this session.
func (n *Negotiator) Announced() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.announced
}

// HandleAnnounce resolves a remote announcement into the registry. The
// local peer's own broadcast loops back on some transports and is
// dropped here. Announcements arrive in order per peer; a repeated
// announcement simply re-resolves, last one wins.
func (n *Negotiator) HandleAnnounce(p streaming.AnnouncePayload) {
	if p.PeerID == n.localPeer {
		return
	}
	n.registry.RegisterAnnouncement(p.PeerID, p.Origin, p.Rotation)
}

// HandleRecalibrate resets a peer (or with core.AllPeers every peer)
// and, if the local origin was already shared, re-announces so the
// reset peers can re-resolve.
func (n *Negotiator) HandleRecalibrate(peerID uint16) error {
	if peerID == core.AllPeers {
		n.registry.RecalibrateAll()
	} else {
		n.registry.Recalibrate(peerID)
	}
	if n.Announced() {
		return n.AnnounceNow()
	}
	return nil
}
