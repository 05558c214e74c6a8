package streaming

import (
	"encoding/json"

	"cogentcore.org/core/math32"
)

// Message type constants for the session protocol.
const (
	TypeAnnounce    = "announce"
	TypePoseState   = "pose_state"
	TypeSensorFrame = "sensor_frame"
	TypePeerJoin    = "peer_join"
	TypePeerLeave   = "peer_leave"
	TypeRecalibrate = "recalibrate"
)

// Envelope wraps all messages exchanged over the session transport.
// Sender is filled in by the transport on delivery.
type Envelope struct {
	Type    string          `json:"type"`
	Sender  uint16          `json:"sender"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AnnouncePayload carries a peer's reference pose during alignment
// negotiation, plus the sensor schema version the peer encodes with.
type AnnouncePayload struct {
	PeerID        uint16         `json:"peerId"`
	Origin        math32.Vector3 `json:"origin"`
	Rotation      math32.Quat    `json:"rotation"`
	SchemaVersion uint16         `json:"schemaVersion"`
}

// PoseStatePayload is the periodic owner-to-observers pose replication.
// Values are in the sending peer's own coordinate frame.
type PoseStatePayload struct {
	PeerID   uint16         `json:"peerId"`
	Position math32.Vector3 `json:"position"`
	Rotation math32.Quat    `json:"rotation"`
}

// SensorFramePayload carries one encoded sensor frame. Data is the
// positional field stream produced by the sensor codec; JSON transports
// it base64-encoded.
type SensorFramePayload struct {
	PeerID uint16 `json:"peerId"`
	Data   []byte `json:"data"`
}

// PeerJoinPayload announces a peer entering the session.
type PeerJoinPayload struct {
	PeerID uint16 `json:"peerId"`
	Name   string `json:"name"`
}

// PeerLeavePayload announces a peer leaving the session.
type PeerLeavePayload struct {
	PeerID uint16 `json:"peerId"`
}

// RecalibratePayload requests an alignment reset for one peer, or for
// every peer when PeerID is core.AllPeers.
type RecalibratePayload struct {
	PeerID uint16 `json:"peerId"`
}

// NewEnvelope marshals payload and wraps it with the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}
