package sensor

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"
)

// staleAfter is how long the source stays "connected" after its last
// datagram. The capture bridge streams at sensor rate (~30 Hz), so two
// seconds of silence means the device is gone, not slow.
const staleAfter = 2 * time.Second

var _ Source = (*UDPSource)(nil)

// UDPSource receives raw sensor vectors from a local capture bridge.
// Each datagram carries one full vector as little-endian float32
// values; anything of a different size is dropped. Only the newest
// vector is kept, the tick loop pulls it on demand.
type UDPSource struct {
	conn   *net.UDPConn
	vecLen int
	log    *slog.Logger

	mu       sync.Mutex
	latest   []float32
	fresh    bool
	lastRecv time.Time
}

// NewUDPSource binds addr and starts receiving. vecLen is the expected
// channel count per vector, normally Ingester.RawVectorLen.
func NewUDPSource(addr string, vecLen int, log *slog.Logger) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("sensor: resolving listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("sensor: listening for sensor stream: %w", err)
	}

	s := &UDPSource{conn: conn, vecLen: vecLen, log: log}
	go s.readLoop()
	log.Info("sensor stream listener started",
		"addr", conn.LocalAddr().String(), "channels", vecLen)
	return s, nil
}

// Addr returns the bound listen address.
func (s *UDPSource) Addr() net.Addr { return s.conn.LocalAddr() }

func (s *UDPSource) readLoop() {
	want := 4 * s.vecLen
	buf := make([]byte, 65536)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			// closed, or the socket died; either way the source simply
			// goes stale and IsConnected turns false
			return
		}
		if n != want {
			s.log.Debug("dropping sensor datagram of unexpected size",
				"got", n, "want", want)
			continue
		}
		vec := make([]float32, s.vecLen)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		s.mu.Lock()
		s.latest = vec
		s.fresh = true
		s.lastRecv = time.Now()
		s.mu.Unlock()
	}
}

// IsConnected reports whether a vector arrived recently enough to treat
// the device as live.
func (s *UDPSource) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastRecv.IsZero() && time.Since(s.lastRecv) < staleAfter
}

// PullLatestSample returns the newest vector once, then nil until the
// next datagram arrives.
func (s *UDPSource) PullLatestSample() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return nil
	}
	s.fresh = false
	return s.latest
}

// Close stops the listener; the read loop exits on the next read.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}
