package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holoshare/relay/internal/alignment"
	"github.com/holoshare/relay/internal/avatar"
	"github.com/holoshare/relay/internal/dispatcher"
	"github.com/holoshare/relay/internal/sensor"
	"github.com/holoshare/relay/internal/transport"
	"github.com/holoshare/relay/pkg/core"
	"github.com/holoshare/relay/pkg/streaming"
)

type fakeSource struct {
	mu  sync.Mutex
	raw []float32
}

func (f *fakeSource) IsConnected() bool { return true }

func (f *fakeSource) PullLatestSample() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw
}

func (f *fakeSource) set(raw []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = raw
}

// startEngine builds a full engine on the hub and runs it until test
// cleanup.
func startEngine(t *testing.T, hub *transport.Hub, peerID uint16, src sensor.Source) *Engine {
	t.Helper()
	log := slog.Default()

	schema := sensor.ReducedSchema()
	tr := hub.Client(peerID)
	reg := alignment.NewRegistry(core.AutoAlign, core.DefaultPose(), log)
	neg := alignment.NewNegotiator(reg, tr, peerID, schema.Version, 10*time.Millisecond, log)

	e, err := NewEngine(Options{
		LocalPeer:    core.Peer{ID: peerID, IsLocal: true},
		TickRate:     100,
		Transport:    tr,
		Registry:     reg,
		Negotiator:   neg,
		Synchronizer: avatar.NewSynchronizer(8, peerID, reg, log),
		Codec:        sensor.NewCodec(schema, true),
		Ingester:     sensor.NewIngester(schema, log),
		Throttle:     sensor.NewThrottle(1),
		Source:       src,
		Logger:       log,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func TestEnginesExchangePoses(t *testing.T) {
	hub := transport.NewHub()
	a := startEngine(t, hub, 1, nil)
	b := startEngine(t, hub, 2, nil)

	a.SetLocalPose(core.NewPose(math32.Vec3(1, 2, 3), math32.NewQuat(0, 0, 0, 1)))

	require.Eventually(t, func() bool {
		_, ok := b.PeerPose(1)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// both peers share an identity origin, so the pose maps through
	require.Eventually(t, func() bool {
		p, ok := b.PeerPose(1)
		return ok && math32.Abs(p.Position.X-1) < 1e-3 &&
			math32.Abs(p.Position.Y-2) < 1e-3 &&
			math32.Abs(p.Position.Z-3) < 1e-3
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := a.PeerPose(2)
	assert.True(t, ok)
}

func TestEnginesAlign(t *testing.T) {
	hub := transport.NewHub()
	a := startEngine(t, hub, 1, nil)
	b := startEngine(t, hub, 2, nil)

	require.Eventually(t, func() bool {
		return a.opts.Registry.IsAligned(2) && b.opts.Registry.IsAligned(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSensorRelay(t *testing.T) {
	hub := transport.NewHub()

	src := &fakeSource{}
	raw := make([]float32, 3*10+4)
	for i := 0; i < 30; i++ {
		raw[i] = 0.1
	}
	raw[30], raw[31] = 0.25, 0.75 // gaze
	raw[32] = 0                   // blink
	raw[33] = 0.5                 // pupil
	src.set(raw)

	startEngine(t, hub, 1, src)
	b := startEngine(t, hub, 2, nil)

	require.Eventually(t, func() bool {
		s, ok := b.PeerSample(1)
		return ok && s.LandmarksPresent && s.GazePresent
	}, 2*time.Second, 10*time.Millisecond)

	s, _ := b.PeerSample(1)
	assert.Len(t, s.Landmarks, 10)
	assert.InDelta(t, 0.25, s.Gaze.X, 1e-3)
	assert.InDelta(t, 0.5, s.PupilSize, 1e-3)
	assert.False(t, s.Blink)
}

func TestRosterTracksJoinsAndLeaves(t *testing.T) {
	hub := transport.NewHub()
	a := startEngine(t, hub, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	btr := hub.Client(2)
	bReg := alignment.NewRegistry(core.AutoAlign, core.DefaultPose(), slog.Default())
	bEngine, err := NewEngine(Options{
		LocalPeer:    core.Peer{ID: 2, IsLocal: true},
		TickRate:     100,
		Transport:    btr,
		Registry:     bReg,
		Negotiator:   alignment.NewNegotiator(bReg, btr, 2, 1, time.Hour, slog.Default()),
		Synchronizer: avatar.NewSynchronizer(8, 2, bReg, slog.Default()),
		Codec:        sensor.NewCodec(sensor.ReducedSchema(), true),
		Ingester:     sensor.NewIngester(sensor.ReducedSchema(), slog.Default()),
		Throttle:     sensor.NewThrottle(1),
	})
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bEngine.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, ok := a.roster.Get(2)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	require.Eventually(t, func() bool {
		_, ok := a.roster.Get(2)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, a.opts.Synchronizer.Visible(2))
}

func TestRecalibrationPropagates(t *testing.T) {
	hub := transport.NewHub()
	a := startEngine(t, hub, 1, nil)
	b := startEngine(t, hub, 2, nil)

	require.Eventually(t, func() bool {
		return a.opts.Registry.IsAligned(2) && b.opts.Registry.IsAligned(1)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.RequestRecalibration(core.AllPeers))

	// both sides re-announce, so alignment recovers on its own
	require.Eventually(t, func() bool {
		return a.opts.Registry.IsAligned(2) && b.opts.Registry.IsAligned(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDesyncedFrameYieldsAbsentSample(t *testing.T) {
	hub := transport.NewHub()
	b := startEngine(t, hub, 2, nil)

	payload := streaming.SensorFramePayload{PeerID: 1, Data: []byte{0xDE, 0xAD}}
	env, err := streaming.NewEnvelope(streaming.TypeSensorFrame, payload)
	require.NoError(t, err)

	_, err = b.handleSensorFrame(dispatcher.Event{
		Type:    streaming.TypeSensorFrame,
		Sender:  1,
		Payload: env.Payload,
	})
	require.NoError(t, err)

	s, ok := b.PeerSample(1)
	require.True(t, ok)
	assert.False(t, s.LandmarksPresent)
	assert.False(t, s.GazePresent)
}
