package alignment

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cogentcore.org/core/math32"

	"github.com/holoshare/relay/pkg/core"
)

var (
	// ErrNotAligned reports a transform request for a peer with no
	// completed alignment. Callers receive identity output alongside
	// this error and may keep rendering at the unaligned pose.
	ErrNotAligned = errors.New("alignment: peer not aligned")

	ErrBadMarkers = errors.New("alignment: invalid marker set")
)

// MinMarkerPairs is the smallest marker correspondence set accepted for
// marker-based alignment.
const MinMarkerPairs = 3

// record holds the resolved coordinate mapping for one remote peer.
type record struct {
	posOffset math32.Vector3
	rotOffset math32.Quat
}

// transformFunc maps a remote-space position and rotation into the
// local frame. rec is nil for modes that resolve without per-peer
// records. The registry mutex is held for the duration of a call.
type transformFunc struct {
	position func(r *Registry, rec *record, p math32.Vector3) math32.Vector3
	rotation func(r *Registry, rec *record, q math32.Quat) math32.Quat
}

// Registry tracks per-peer coordinate mappings. One registry serves a
// session; all methods are safe for concurrent use from the network
// callbacks and the tick loop.
type Registry struct {
	mu        sync.RWMutex
	mode      core.AlignmentMode
	localRef  core.Pose
	manualPos math32.Vector3
	manualRot math32.Quat
	records   map[uint16]*record
	warned    map[uint16]bool
	log       *slog.Logger
}

func NewRegistry(mode core.AlignmentMode, localRef core.Pose, log *slog.Logger) *Registry {
	return &Registry{
		mode:      mode,
		localRef:  localRef,
		manualRot: math32.NewQuat(0, 0, 0, 1),
		records:   make(map[uint16]*record),
		warned:    make(map[uint16]bool),
		log:       log,
	}
}

// Per-mode dispatch, keyed by the active mode at transform time.
// SharedOrigin trusts both peers to already share a world frame and
// passes data through untouched. ManualAlign applies the process-wide
// manual offset alone; AutoAlign and MarkerBased apply the resolved
// record with the manual offset layered on top as a correction.
var transforms = map[core.AlignmentMode]transformFunc{
	core.AutoAlign:    {position: offsetPosition, rotation: offsetRotation},
	core.ManualAlign:  {position: manualPosition, rotation: manualRotation},
	core.MarkerBased:  {position: offsetPosition, rotation: offsetRotation},
	core.SharedOrigin: {position: identityPosition, rotation: identityRotation},
}

func offsetPosition(r *Registry, rec *record, p math32.Vector3) math32.Vector3 {
	return p.MulQuat(rec.rotOffset).Add(rec.posOffset).Add(r.manualPos)
}

func offsetRotation(r *Registry, rec *record, q math32.Quat) math32.Quat {
	out := rec.rotOffset.Mul(q)
	out = r.manualRot.Mul(out)
	out.Normalize()
	return out
}

func manualPosition(r *Registry, _ *record, p math32.Vector3) math32.Vector3 {
	return p.Add(r.manualPos)
}

func manualRotation(r *Registry, _ *record, q math32.Quat) math32.Quat {
	out := r.manualRot.Mul(q)
	out.Normalize()
	return out
}

func identityPosition(_ *Registry, _ *record, p math32.Vector3) math32.Vector3 { return p }

func identityRotation(_ *Registry, _ *record, q math32.Quat) math32.Quat { return q }

// needsRecord reports whether the active mode resolves through per-peer
// records. Caller holds mu.
func (r *Registry) needsRecord() bool {
	return r.mode == core.AutoAlign || r.mode == core.MarkerBased
}

// Mode returns the active alignment mode.
func (r *Registry) Mode() core.AlignmentMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// SetMode switches the active alignment mode. Existing records are
// kept, so switching away from AutoAlign and back does not force a new
// negotiation round.
func (r *Registry) SetMode(mode core.AlignmentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode == r.mode {
		return
	}
	r.mode = mode
	r.warned = make(map[uint16]bool)
	r.log.Info("alignment mode switched", "mode", mode.String())
}

// LocalReference returns the local reference pose announcements are
// resolved against.
func (r *Registry) LocalReference() core.Pose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.localRef
}

// SetLocalReference replaces the local reference pose. Existing records
// keep the offsets they were resolved with; recalibrate to re-resolve.
func (r *Registry) SetLocalReference(ref core.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localRef = ref.Normalized()
}

// RegisterAnnouncement resolves a remote peer's announced origin into
// an offset pair. Re-announcement overwrites the previous record, last
// announcement wins.
func (r *Registry) RegisterAnnouncement(peerID uint16, remoteOrigin math32.Vector3, remoteRotation math32.Quat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	remoteRotation.Normalize()
	inv := remoteRotation.Inverse()
	rotOffset := inv.Mul(r.localRef.Rotation)
	rotOffset.Normalize()

	// The offset pair forms a rigid transform: points are rotated by
	// rotOffset before the translation is added, so the translation is
	// measured against the rotated remote origin. This keeps the
	// announced origin mapping exactly onto the local reference.
	r.records[peerID] = &record{
		posOffset: r.localRef.Position.Sub(remoteOrigin.MulQuat(rotOffset)),
		rotOffset: rotOffset,
	}
	delete(r.warned, peerID)
	r.log.Info("peer alignment resolved",
		"peer", peerID,
		"mode", r.mode.String(),
		"originX", remoteOrigin.X, "originY", remoteOrigin.Y, "originZ", remoteOrigin.Z)
}

// SetManualOffset installs the process-wide manual offset pair. Under
// ManualAlign it is the whole transform; under AutoAlign and
// MarkerBased it is added on top of each peer's resolved record.
func (r *Registry) SetManualOffset(posOffset math32.Vector3, rotOffset math32.Quat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rotOffset.Normalize()
	r.manualPos = posOffset
	r.manualRot = rotOffset
	r.log.Info("manual alignment offset set",
		"x", posOffset.X, "y", posOffset.Y, "z", posOffset.Z)
}

// RegisterMarkers resolves a peer from physical marker correspondences:
// each local point and the remote point observed at the same marker.
// The translation between the two centroids becomes the position
// offset. Needs at least MinMarkerPairs pairs.
func (r *Registry) RegisterMarkers(peerID uint16, local, remote []math32.Vector3) error {
	if len(local) != len(remote) {
		return fmt.Errorf("%w: %d local vs %d remote points", ErrBadMarkers, len(local), len(remote))
	}
	if len(local) < MinMarkerPairs {
		return fmt.Errorf("%w: need %d pairs, got %d", ErrBadMarkers, MinMarkerPairs, len(local))
	}

	var localSum, remoteSum math32.Vector3
	for i := range local {
		localSum = localSum.Add(local[i])
		remoteSum = remoteSum.Add(remote[i])
	}
	inv := 1 / float32(len(local))
	offset := localSum.MulScalar(inv).Sub(remoteSum.MulScalar(inv))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[peerID] = &record{
		posOffset: offset,
		rotOffset: math32.NewQuat(0, 0, 0, 1),
	}
	delete(r.warned, peerID)
	r.log.Info("marker alignment resolved", "peer", peerID, "pairs", len(local))
	return nil
}

// IsAligned reports whether a peer has a resolved record.
func (r *Registry) IsAligned(peerID uint16) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[peerID]
	return ok
}

// Aligned reports whether the session as a whole has a resolved frame:
// immediately true for the modes that need no negotiation, otherwise
// true once at least one announcement has been registered.
func (r *Registry) Aligned() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.needsRecord() {
		return true
	}
	return len(r.records) > 0
}

// TransformPosition maps a remote-space position into the local frame.
// An unaligned peer gets the position back unchanged with ErrNotAligned
// and a one-time warning.
func (r *Registry) TransformPosition(peerID uint16, p math32.Vector3) (math32.Vector3, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[peerID]
	if !ok && r.needsRecord() {
		r.warnUnaligned(peerID)
		return p, fmt.Errorf("%w: peer %d", ErrNotAligned, peerID)
	}
	return transforms[r.mode].position(r, rec, p), nil
}

// TransformRotation maps a remote-space rotation into the local frame.
func (r *Registry) TransformRotation(peerID uint16, q math32.Quat) (math32.Quat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[peerID]
	if !ok && r.needsRecord() {
		r.warnUnaligned(peerID)
		return q, fmt.Errorf("%w: peer %d", ErrNotAligned, peerID)
	}
	return transforms[r.mode].rotation(r, rec, q), nil
}

// warnUnaligned logs once per missing peer so a steady pose stream
// against an unaligned peer does not flood the log. Caller holds mu.
func (r *Registry) warnUnaligned(peerID uint16) {
	if r.warned[peerID] {
		return
	}
	r.warned[peerID] = true
	r.log.Warn("transform requested for unaligned peer, using identity", "peer", peerID)
}

// Recalibrate drops a peer's record; its next announcement re-resolves.
func (r *Registry) Recalibrate(peerID uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, peerID)
	delete(r.warned, peerID)
	r.log.Info("peer alignment reset", "peer", peerID)
}

// RecalibrateAll drops every record.
func (r *Registry) RecalibrateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[uint16]*record)
	r.warned = make(map[uint16]bool)
	r.log.Info("all peer alignments reset")
}

// RemovePeer drops a departing peer's record.
func (r *Registry) RemovePeer(peerID uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, peerID)
	delete(r.warned, peerID)
}

// AlignedPeers returns the IDs of all peers with resolved records.
func (r *Registry) AlignedPeers() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]uint16, 0, len(r.records))
	for id := range r.records {
		peers = append(peers, id)
	}
	return peers
}
