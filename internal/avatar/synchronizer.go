package avatar

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"cogentcore.org/core/math32"

	"github.com/holoshare/relay/internal/mailbox"
	"github.com/holoshare/relay/pkg/core"
)

// TrackingState is the lifecycle of a remote peer's replicated pose.
type TrackingState int

const (
	// Uninitialized means no pose has arrived yet; nothing to display.
	Uninitialized TrackingState = iota
	// Tracking means at least one pose arrived and the avatar is live.
	Tracking
)

func (s TrackingState) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "uninitialized"
}

// Aligner maps a raw remote-space pose into the local frame. Both
// methods return identity-mapped values alongside any error, so callers
// can render through an incomplete alignment. A nil Aligner passes
// poses through untouched.
type Aligner interface {
	TransformPosition(peerID uint16, p math32.Vector3) (math32.Vector3, error)
	TransformRotation(peerID uint16, q math32.Quat) (math32.Quat, error)
}

// peerState carries the displayed pose and the newest raw network pose
// for one remote peer. raw stays in the remote's own frame; the aligned
// target is recomputed from it every tick.
type peerState struct {
	state   TrackingState
	current core.Pose
	raw     core.Pose
	target  core.Pose
}

// Synchronizer smooths remote pose updates onto the local display tick.
// Network callbacks drop raw poses into per-peer mailboxes; Tick drains
// them, maps each peer's newest raw pose through the aligner, and moves
// each displayed pose toward that target with an exponential ease that
// is independent of the tick rate. The first pose for a peer snaps, so
// avatars never fly in from the world origin.
type Synchronizer struct {
	mu        sync.Mutex
	rate      float32
	localPeer uint16
	aligner   Aligner
	inbox     *mailbox.PerPeer[core.PeerPose]
	peers     map[uint16]*peerState
	lastTick  time.Time
	log       *slog.Logger
}

// NewSynchronizer builds a synchronizer with the given smoothing rate
// in units of 1/second. Higher is snappier; 8 reaches ~63% of the
// remaining distance in 125ms.
func NewSynchronizer(rate float32, localPeer uint16, aligner Aligner, log *slog.Logger) *Synchronizer {
	if rate <= 0 {
		rate = 8
	}
	return &Synchronizer{
		rate:      rate,
		localPeer: localPeer,
		aligner:   aligner,
		inbox:     mailbox.NewPerPeer[core.PeerPose](),
		peers:     make(map[uint16]*peerState),
		log:       log,
	}
}

// Observe records a replicated pose, still in the sender's own frame.
// Called from network callbacks at whatever rate the transport
// delivers; only the newest pose per peer survives until the next Tick.
// The local peer's own echo is dropped.
func (s *Synchronizer) Observe(pose core.PeerPose) {
	if pose.PeerID == s.localPeer {
		return
	}
	s.inbox.Put(pose.PeerID, pose)
}

// Tick drains fresh poses and advances every tracked avatar toward its
// aligned target. The target is re-mapped from the raw pose on every
// tick, not just when a new pose arrives: an alignment that resolves or
// a mode that switches between poses moves the avatar on the next tick
// without waiting for the remote to send again. The smoothing fraction
// is computed from the elapsed wall time so a dropped frame moves
// avatars farther, not slower.
func (s *Synchronizer) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := float32(0)
	if !s.lastTick.IsZero() {
		dt = float32(now.Sub(s.lastTick).Seconds())
	}
	s.lastTick = now

	for _, id := range s.inbox.Peers() {
		pp, fresh := s.inbox.TakeFresh(id)
		if !fresh {
			continue
		}
		st, ok := s.peers[id]
		if !ok {
			st = &peerState{}
			s.peers[id] = st
		}
		st.raw = pp.Pose.ClampScale()
	}

	alpha := float32(0)
	if dt > 0 {
		alpha = 1 - float32(math.Exp(float64(-s.rate*dt)))
	}
	for id, st := range s.peers {
		st.target = s.align(id, st.raw)
		if st.state == Uninitialized {
			// first sample snaps, no easing from the origin
			st.current = st.target
			st.state = Tracking
			s.log.Debug("peer tracking started", "peer", id)
			continue
		}
		if alpha > 0 {
			st.current = easePose(st.current, st.target, alpha)
		}
	}
}

func (s *Synchronizer) align(peerID uint16, raw core.Pose) core.Pose {
	if s.aligner == nil {
		return raw
	}
	pos, _ := s.aligner.TransformPosition(peerID, raw.Position)
	rot, _ := s.aligner.TransformRotation(peerID, raw.Rotation)
	return core.Pose{Position: pos, Rotation: rot, Scale: raw.Scale}.ClampScale()
}

func easePose(from, to core.Pose, alpha float32) core.Pose {
	pos := from.Position.Add(to.Position.Sub(from.Position).MulScalar(alpha))
	rot := from.Rotation
	rot.Slerp(to.Rotation, alpha)
	scale := from.Scale + (to.Scale-from.Scale)*alpha
	return core.Pose{Position: pos, Rotation: rot, Scale: scale}.ClampScale()
}

// Pose returns the displayed pose for a peer and whether it is live.
func (s *Synchronizer) Pose(peerID uint16) (core.Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.peers[peerID]
	if !ok || st.state != Tracking {
		return core.Pose{}, false
	}
	return st.current, true
}

// Visible reports whether a peer's avatar should be rendered.
func (s *Synchronizer) Visible(peerID uint16) bool {
	_, ok := s.Pose(peerID)
	return ok
}

// Target returns the aligned target pose for a peer, before smoothing.
func (s *Synchronizer) Target(peerID uint16) (core.Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.peers[peerID]
	if !ok || st.state != Tracking {
		return core.Pose{}, false
	}
	return st.target, true
}

// Remove forgets a departed peer.
func (s *Synchronizer) Remove(peerID uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, peerID)
	s.inbox.Delete(peerID)
	s.log.Debug("peer tracking removed", "peer", peerID)
}

// TrackedPeers returns the ids of all live avatars.
func (s *Synchronizer) TrackedPeers() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint16, 0, len(s.peers))
	for id, st := range s.peers {
		if st.state == Tracking {
			ids = append(ids, id)
		}
	}
	return ids
}
