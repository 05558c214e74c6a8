package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holoshare/relay/internal/alignment"
	"github.com/holoshare/relay/internal/avatar"
	"github.com/holoshare/relay/internal/dispatcher"
	"github.com/holoshare/relay/internal/logging"
	"github.com/holoshare/relay/internal/mailbox"
	"github.com/holoshare/relay/internal/sensor"
	"github.com/holoshare/relay/internal/transport"
	"github.com/holoshare/relay/pkg/core"
	"github.com/holoshare/relay/pkg/streaming"
)

const sensorBufferSize = 256

// Options collects the pieces an Engine needs. All fields are required
// except Source, which may be nil when the process has no local sensor.
type Options struct {
	LocalPeer    core.Peer
	TickRate     int
	Transport    transport.Transport
	Registry     *alignment.Registry
	Negotiator   *alignment.Negotiator
	Synchronizer *avatar.Synchronizer
	Codec        *sensor.Codec
	Ingester     *sensor.Ingester
	Throttle     *sensor.Throttle
	Source       sensor.Source
	Logger       *slog.Logger
}

// Engine runs one shared session: it owns the tick loop, routes
// incoming envelopes through the dispatcher, relays the local pose and
// sensor stream out, and maintains the replicated view of every remote
// peer.
type Engine struct {
	opts    Options
	disp    *dispatcher.Dispatcher
	roster  *PeerRoster
	metrics *metrics

	// localPose is written by the embedding application from its own
	// tracking loop and read by the tick loop; stale reads are fine.
	localPose mailbox.Slot[core.Pose]

	// samples holds the newest decoded sensor sample per remote peer.
	samples *mailbox.PerPeer[core.SensorSample]

	log *slog.Logger
}

// NewEngine wires the dispatcher routes and returns a ready engine.
// Call Run to join the session.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	if opts.TickRate <= 0 {
		opts.TickRate = 30
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	disp, err := dispatcher.New(logging.NewDispatcherLogger(log))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating session metrics: %w", err)
	}

	e := &Engine{
		opts:    opts,
		disp:    disp,
		roster:  NewPeerRoster(),
		metrics: m,
		samples: mailbox.NewPerPeer[core.SensorSample](),
		log:     log,
	}
	e.localPose.Put(core.DefaultPose())
	e.registerHandlers()
	if err := m.observePeers(e.roster); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) registerHandlers() {
	e.disp.Register(streaming.TypeAnnounce, e.handleAnnounce, dispatcher.Logged())
	e.disp.Register(streaming.TypePoseState, e.handlePoseState)
	e.disp.Register(streaming.TypeSensorFrame, e.handleSensorFrame,
		dispatcher.Buffered(sensorBufferSize))
	e.disp.Register(streaming.TypePeerJoin, e.handlePeerJoin, dispatcher.Logged())
	e.disp.Register(streaming.TypePeerLeave, e.handlePeerLeave, dispatcher.Logged())
	e.disp.Register(streaming.TypeRecalibrate, e.handleRecalibrate, dispatcher.Logged())
}

// Run joins the session and blocks driving the tick loop until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.opts.Transport.OnReceive(e.receive)
	if err := e.opts.Transport.Connect(); err != nil {
		return fmt.Errorf("connecting transport: %w", err)
	}

	join, err := streaming.NewEnvelope(streaming.TypePeerJoin, streaming.PeerJoinPayload{
		PeerID: e.opts.LocalPeer.ID,
		Name:   e.opts.LocalPeer.Name,
	})
	if err != nil {
		return fmt.Errorf("building join message: %w", err)
	}
	if err := e.opts.Transport.Broadcast(join); err != nil {
		return fmt.Errorf("broadcasting join: %w", err)
	}

	e.opts.Negotiator.Start()
	defer e.opts.Negotiator.Stop()

	interval := time.Second / time.Duration(e.opts.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("session started",
		"peer", e.opts.LocalPeer.ID,
		"tickRate", e.opts.TickRate)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("session stopping")
			return e.opts.Transport.Close()
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

// tick advances the avatars and relays the local state out.
func (e *Engine) tick(now time.Time) {
	e.opts.Synchronizer.Tick(now)

	pose, ok := e.localPose.Latest()
	if ok {
		e.broadcastPose(pose)
	}

	if e.opts.Source != nil && e.opts.Source.IsConnected() && e.opts.Throttle.ShouldEmit() {
		e.emitSensorFrame()
	}
	e.metrics.ticks.Add(context.Background(), 1)
}

func (e *Engine) broadcastPose(pose core.Pose) {
	env, err := streaming.NewEnvelope(streaming.TypePoseState, streaming.PoseStatePayload{
		PeerID:   e.opts.LocalPeer.ID,
		Position: pose.Position,
		Rotation: pose.Rotation,
	})
	if err != nil {
		e.log.Error("building pose message", "error", err)
		return
	}
	if err := e.opts.Transport.Broadcast(env); err != nil {
		e.log.Error("broadcasting pose", "error", err)
	}
}

func (e *Engine) emitSensorFrame() {
	raw := e.opts.Source.PullLatestSample()
	if raw == nil {
		return
	}
	sample := e.opts.Ingester.Ingest(raw)
	data, err := e.opts.Codec.Encode(sample)
	if err != nil {
		e.log.Error("encoding sensor frame", "error", err)
		return
	}
	env, err := streaming.NewEnvelope(streaming.TypeSensorFrame, streaming.SensorFramePayload{
		PeerID: e.opts.LocalPeer.ID,
		Data:   data,
	})
	if err != nil {
		e.log.Error("building sensor message", "error", err)
		return
	}
	if err := e.opts.Transport.Broadcast(env); err != nil {
		e.log.Error("broadcasting sensor frame", "error", err)
		return
	}
	e.metrics.framesSent.Add(context.Background(), 1)
}

// receive is the transport callback; it maps envelopes onto dispatcher
// events.
func (e *Engine) receive(env streaming.Envelope) {
	_, err := e.disp.Dispatch(dispatcher.Event{
		Type:      env.Type,
		Sender:    env.Sender,
		Payload:   env.Payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		e.log.Debug("dispatch failed", "type", env.Type, "error", err)
	}
}

func (e *Engine) handleAnnounce(ev dispatcher.Event) (any, error) {
	var p streaming.AnnouncePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal announce: %w", err)
	}
	known := e.opts.Registry.IsAligned(p.PeerID)
	e.opts.Negotiator.HandleAnnounce(p)

	// Echo our announce back when a previously unknown peer resolves,
	// so both sides end up aligned no matter who announced first. The
	// echo only fires on the unknown->known edge, so it cannot loop.
	if !known && p.PeerID != e.opts.LocalPeer.ID && e.opts.Negotiator.Announced() {
		if err := e.opts.Negotiator.AnnounceNow(); err != nil {
			e.log.Error("announce echo failed", "error", err)
		}
	}

	if p.PeerID != e.opts.LocalPeer.ID && p.SchemaVersion != e.opts.Codec.Schema().Version {
		e.log.Warn("peer encodes with a different sensor schema; its frames will be dropped",
			"peer", p.PeerID,
			"peerSchema", p.SchemaVersion,
			"localSchema", e.opts.Codec.Schema().Version)
	}
	return nil, nil
}

func (e *Engine) handlePoseState(ev dispatcher.Event) (any, error) {
	var p streaming.PoseStatePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pose state: %w", err)
	}
	if p.PeerID == e.opts.LocalPeer.ID {
		return nil, nil
	}

	// The pose is stored raw; the synchronizer maps it through the
	// alignment registry on every tick, so a mode switch or a
	// late-resolving alignment re-places the avatar without waiting for
	// the remote to send again.
	e.opts.Synchronizer.Observe(core.PeerPose{
		PeerID: p.PeerID,
		Time:   ev.Timestamp,
		Pose:   core.NewPose(p.Position, p.Rotation),
	})
	return nil, nil
}

func (e *Engine) handleSensorFrame(ev dispatcher.Event) (any, error) {
	var p streaming.SensorFramePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal sensor frame: %w", err)
	}
	if p.PeerID == e.opts.LocalPeer.ID {
		return nil, nil
	}

	sample, err := e.opts.Codec.Decode(p.Data)
	if err != nil {
		// desync or garbage: the peer shows no data this tick
		e.metrics.desyncs.Add(context.Background(), 1)
		e.log.Debug("sensor frame rejected", "peer", p.PeerID, "error", err)
		e.samples.Put(p.PeerID, core.Absent())
		return nil, nil
	}
	e.samples.Put(p.PeerID, sample)
	e.metrics.framesReceived.Add(context.Background(), 1)
	return nil, nil
}

func (e *Engine) handlePeerJoin(ev dispatcher.Event) (any, error) {
	var p streaming.PeerJoinPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal peer join: %w", err)
	}
	if p.PeerID == e.opts.LocalPeer.ID {
		return nil, nil
	}
	e.roster.Add(core.Peer{ID: p.PeerID, Name: p.Name, JoinTime: ev.Timestamp})
	e.log.Info("peer joined", "peer", p.PeerID, "name", p.Name)

	// late joiner missed our announce; repeat it for them
	if e.opts.Negotiator.Announced() {
		if err := e.opts.Negotiator.AnnounceNow(); err != nil {
			e.log.Error("re-announce for joiner failed", "error", err)
		}
	}
	return nil, nil
}

func (e *Engine) handlePeerLeave(ev dispatcher.Event) (any, error) {
	var p streaming.PeerLeavePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal peer leave: %w", err)
	}
	e.roster.Remove(p.PeerID)
	e.opts.Synchronizer.Remove(p.PeerID)
	e.opts.Registry.RemovePeer(p.PeerID)
	e.samples.Delete(p.PeerID)
	e.log.Info("peer left", "peer", p.PeerID)
	return nil, nil
}

func (e *Engine) handleRecalibrate(ev dispatcher.Event) (any, error) {
	var p streaming.RecalibratePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal recalibrate: %w", err)
	}
	return nil, e.opts.Negotiator.HandleRecalibrate(p.PeerID)
}

// SetLocalPose records the local headset pose for the next outgoing
// tick. Called from the embedding application's own tracking loop.
func (e *Engine) SetLocalPose(pose core.Pose) {
	e.localPose.Put(pose.ClampScale())
}

// PeerSample returns the newest decoded sensor sample for a remote
// peer, if any arrived.
func (e *Engine) PeerSample(peerID uint16) (core.SensorSample, bool) {
	return e.samples.Latest(peerID)
}

// PeerPose returns the smoothed display pose for a remote peer.
func (e *Engine) PeerPose(peerID uint16) (core.Pose, bool) {
	return e.opts.Synchronizer.Pose(peerID)
}

// Peers returns the current roster of remote peers.
func (e *Engine) Peers() []core.Peer {
	return e.roster.List()
}

// TrackedAvatarCount returns how many remote avatars are live.
func (e *Engine) TrackedAvatarCount() int {
	return len(e.opts.Synchronizer.TrackedPeers())
}

// AlignedPeerCount returns how many remote peers have resolved
// alignment records.
func (e *Engine) AlignedPeerCount() int {
	return len(e.opts.Registry.AlignedPeers())
}

// Aligned reports whether the session has a usable shared frame.
func (e *Engine) Aligned() bool {
	return e.opts.Registry.Aligned()
}

// RequestRecalibration broadcasts an alignment reset to the session and
// applies it locally. Use core.AllPeers to reset everyone.
func (e *Engine) RequestRecalibration(peerID uint16) error {
	env, err := streaming.NewEnvelope(streaming.TypeRecalibrate,
		streaming.RecalibratePayload{PeerID: peerID})
	if err != nil {
		return fmt.Errorf("building recalibrate message: %w", err)
	}
	if err := e.opts.Transport.Broadcast(env); err != nil {
		return fmt.Errorf("broadcasting recalibrate: %w", err)
	}
	return e.opts.Negotiator.HandleRecalibrate(peerID)
}
