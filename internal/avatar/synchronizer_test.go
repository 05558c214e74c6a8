package avatar

import (
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holoshare/relay/pkg/core"
)

const localID uint16 = 1

func testSync(rate float32) *Synchronizer {
	return NewSynchronizer(rate, localID, nil, slog.Default())
}

func poseAt(x, y, z float32) core.Pose {
	return core.NewPose(math32.Vec3(x, y, z), math32.NewQuat(0, 0, 0, 1))
}

func observe(s *Synchronizer, peer uint16, t time.Time, p core.Pose) {
	s.Observe(core.PeerPose{PeerID: peer, Time: t, Pose: p})
}

func TestFirstSampleSnaps(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	assert.False(t, s.Visible(2))

	observe(s, 2, base, poseAt(3, 1, -2))
	s.Tick(base)

	got, ok := s.Pose(2)
	require.True(t, ok)
	assert.Equal(t, math32.Vec3(3, 1, -2), got.Position)
	assert.True(t, s.Visible(2))
}

func TestExponentialApproach(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	observe(s, 2, base, poseAt(0, 0, 0))
	s.Tick(base)

	observe(s, 2, base, poseAt(10, 0, 0))
	dt := 50 * time.Millisecond
	s.Tick(base.Add(dt))

	got, ok := s.Pose(2)
	require.True(t, ok)

	want := float32(10 * (1 - math.Exp(-8*dt.Seconds())))
	assert.InDelta(t, want, got.Position.X, 1e-4)
	assert.Greater(t, got.Position.X, float32(0))
	assert.Less(t, got.Position.X, float32(10))
}

func TestFrameRateIndependence(t *testing.T) {
	// one 100ms tick and four 25ms ticks land in the same place
	run := func(steps int) float32 {
		s := testSync(8)
		base := time.Now()
		observe(s, 2, base, poseAt(0, 0, 0))
		s.Tick(base)
		observe(s, 2, base, poseAt(10, 0, 0))

		step := 100 * time.Millisecond / time.Duration(steps)
		now := base
		for i := 0; i < steps; i++ {
			now = now.Add(step)
			s.Tick(now)
		}
		got, _ := s.Pose(2)
		return got.Position.X
	}

	coarse := run(1)
	fine := run(4)
	assert.InDelta(t, coarse, fine, 1e-3)
}

func TestConvergesToTarget(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	observe(s, 2, base, poseAt(0, 0, 0))
	s.Tick(base)
	observe(s, 2, base, poseAt(5, -1, 2))

	now := base
	for i := 0; i < 300; i++ {
		now = now.Add(33 * time.Millisecond)
		s.Tick(now)
	}

	got, _ := s.Pose(2)
	assert.InDelta(t, 5, got.Position.X, 1e-3)
	assert.InDelta(t, -1, got.Position.Y, 1e-3)
	assert.InDelta(t, 2, got.Position.Z, 1e-3)
}

func TestRotationSlerps(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	observe(s, 2, base, poseAt(0, 0, 0))
	s.Tick(base)

	target := core.NewPose(math32.Vec3(0, 0, 0),
		math32.NewQuatAxisAngle(math32.Vec3(0, 1, 0), math.Pi/2))
	observe(s, 2, base, target)

	now := base
	for i := 0; i < 300; i++ {
		now = now.Add(33 * time.Millisecond)
		s.Tick(now)
	}

	got, _ := s.Pose(2)
	assert.InDelta(t, target.Rotation.Y, got.Rotation.Y, 1e-3)
	assert.InDelta(t, target.Rotation.W, got.Rotation.W, 1e-3)
}

// shiftAligner maps positions by a swappable offset, standing in for a
// registry whose resolution changes mid-session.
type shiftAligner struct {
	mu     sync.Mutex
	offset math32.Vector3
}

func (a *shiftAligner) set(o math32.Vector3) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offset = o
}

func (a *shiftAligner) TransformPosition(_ uint16, p math32.Vector3) (math32.Vector3, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return p.Add(a.offset), nil
}

func (a *shiftAligner) TransformRotation(_ uint16, q math32.Quat) (math32.Quat, error) {
	return q, nil
}

func TestAlignmentChangeRemapsWithoutNewPose(t *testing.T) {
	al := &shiftAligner{offset: math32.Vec3(-5, 0, 0)}
	s := NewSynchronizer(8, localID, al, slog.Default())
	base := time.Now()

	observe(s, 2, base, poseAt(5, 0, 0))
	s.Tick(base)

	got, ok := s.Pose(2)
	require.True(t, ok)
	assert.InDelta(t, 0, got.Position.X, 1e-5)

	// the mapping changes while the remote stays silent; ticks alone
	// must carry the avatar to the re-mapped raw pose
	al.set(math32.Vec3(0, 0, 0))
	now := base
	for i := 0; i < 300; i++ {
		now = now.Add(33 * time.Millisecond)
		s.Tick(now)
	}

	got, _ = s.Pose(2)
	assert.InDelta(t, 5, got.Position.X, 1e-3)
}

func TestLocalEchoIgnored(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	observe(s, localID, base, poseAt(1, 1, 1))
	s.Tick(base)

	assert.False(t, s.Visible(localID))
	assert.Empty(t, s.TrackedPeers())
}

func TestLatestObservationWins(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	observe(s, 2, base, poseAt(1, 0, 0))
	observe(s, 2, base, poseAt(2, 0, 0))
	observe(s, 2, base, poseAt(3, 0, 0))
	s.Tick(base)

	// first tick snaps straight to the newest observation
	got, _ := s.Pose(2)
	assert.Equal(t, float32(3), got.Position.X)
}

func TestRemove(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	observe(s, 2, base, poseAt(1, 0, 0))
	s.Tick(base)
	require.True(t, s.Visible(2))

	s.Remove(2)
	assert.False(t, s.Visible(2))
	assert.Empty(t, s.TrackedPeers())
}

func TestScaleClamped(t *testing.T) {
	s := testSync(8)
	base := time.Now()

	bad := poseAt(0, 0, 0)
	bad.Scale = 0
	observe(s, 2, base, bad)
	s.Tick(base)

	got, _ := s.Pose(2)
	assert.GreaterOrEqual(t, got.Scale, core.MinScale)
}
