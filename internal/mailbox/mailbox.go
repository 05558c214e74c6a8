// Package mailbox provides latest-value slots between the asynchronous
// network callbacks and the tick loop. A slot always holds the most
// recently written value; the tick loop reads without blocking and a
// slot with no new data keeps returning its last known value.
package mailbox

import "sync"

// Slot is a single latest-value mailbox. Writes overwrite; reads never
// consume.
type Slot[T any] struct {
	mu    sync.Mutex
	value T
	set   bool
	fresh bool
}

// Put stores v, replacing any previous value.
func (s *Slot[T]) Put(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.set = true
	s.fresh = true
}

// Latest returns the most recent value and whether one was ever written.
func (s *Slot[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

// TakeFresh returns the most recent value only if it has not been read
// through TakeFresh since it was written. The value itself stays in the
// slot for later Latest calls.
func (s *Slot[T]) TakeFresh() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		var zero T
		return zero, false
	}
	s.fresh = false
	return s.value, true
}

// Clear empties the slot.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value = zero
	s.set = false
	s.fresh = false
}

// PerPeer is a set of latest-value slots keyed by peer id.
type PerPeer[T any] struct {
	mu    sync.Mutex
	slots map[uint16]*Slot[T]
}

// NewPerPeer creates an empty per-peer slot set.
func NewPerPeer[T any]() *PerPeer[T] {
	return &PerPeer[T]{slots: make(map[uint16]*Slot[T])}
}

func (p *PerPeer[T]) slot(peerID uint16) *Slot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[peerID]
	if !ok {
		s = &Slot[T]{}
		p.slots[peerID] = s
	}
	return s
}

// Put stores v as the latest value for peerID.
func (p *PerPeer[T]) Put(peerID uint16, v T) {
	p.slot(peerID).Put(v)
}

// Latest returns the latest value for peerID, if any was ever written.
func (p *PerPeer[T]) Latest(peerID uint16) (T, bool) {
	p.mu.Lock()
	s, ok := p.slots[peerID]
	p.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	return s.Latest()
}

// TakeFresh returns the latest value for peerID only if it has not
// been taken before, clearing the fresh mark.
func (p *PerPeer[T]) TakeFresh(peerID uint16) (T, bool) {
	p.mu.Lock()
	s, ok := p.slots[peerID]
	p.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	return s.TakeFresh()
}

// Delete drops the slot for peerID. Used on peer leave.
func (p *PerPeer[T]) Delete(peerID uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.slots, peerID)
}

// Peers returns the ids that currently have a slot.
func (p *PerPeer[T]) Peers() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint16, 0, len(p.slots))
	for id := range p.slots {
		ids = append(ids, id)
	}
	return ids
}
