package session

import (
	"sync"

	"github.com/holoshare/relay/pkg/core"
)

// PeerRoster caches session peers as join messages arrive to avoid
// repeated transport queries. Latency in these calls is critical to
// quickly process incoming pose and sensor data.
type PeerRoster struct {
	m     sync.Mutex
	Peers map[uint16]core.Peer
}

func NewPeerRoster() *PeerRoster {
	return &PeerRoster{
		m:     sync.Mutex{},
		Peers: make(map[uint16]core.Peer),
	}
}

func (r *PeerRoster) Reset() {
	r.m.Lock()
	defer r.m.Unlock()
	r.Peers = make(map[uint16]core.Peer)
}

func (r *PeerRoster) Get(id uint16) (core.Peer, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	if p, ok := r.Peers[id]; ok {
		return p, true
	}
	return core.Peer{}, false
}

func (r *PeerRoster) Add(p core.Peer) {
	r.m.Lock()
	defer r.m.Unlock()
	r.Peers[p.ID] = p
}

func (r *PeerRoster) Remove(id uint16) {
	r.m.Lock()
	defer r.m.Unlock()
	delete(r.Peers, id)
}

func (r *PeerRoster) Count() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.Peers)
}

func (r *PeerRoster) List() []core.Peer {
	r.m.Lock()
	defer r.m.Unlock()
	peers := make([]core.Peer, 0, len(r.Peers))
	for _, p := range r.Peers {
		peers = append(peers, p)
	}
	return peers
}
