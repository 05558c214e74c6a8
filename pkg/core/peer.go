package core

import "time"

// AllPeers is the broadcast target for peer-scoped control messages.
const AllPeers uint16 = 0xFFFF

// Peer represents one participant process in the shared session.
// ID is the session-stable identifier assigned by the transport; exactly
// one peer per process has IsLocal set.
type Peer struct {
	ID       uint16
	Name     string
	IsLocal  bool
	JoinTime time.Time
}

// PeerPose is a peer's replicated pose at a point in time, still in the
// sending peer's own coordinate frame. Receivers map it into the local
// frame before display.
type PeerPose struct {
	PeerID uint16
	Time   time.Time
	Pose   Pose
}
