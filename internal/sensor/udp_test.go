package sensor

import (
	"encoding/binary"
	"log/slog"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSource(t *testing.T, src *UDPSource) net.Conn {
	t.Helper()
	conn, err := net.Dial("udp", src.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendVector(t *testing.T, conn net.Conn, vec []float32) {
	t.Helper()
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	_, err := conn.Write(buf)
	require.NoError(t, err)
}

func TestUDPSourceDeliversLatestVector(t *testing.T) {
	src, err := NewUDPSource("127.0.0.1:0", 4, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	assert.False(t, src.IsConnected())
	assert.Nil(t, src.PullLatestSample())

	conn := dialSource(t, src)
	sendVector(t, conn, []float32{0.1, 0.2, 0.3, 0.4})

	var got []float32
	require.Eventually(t, func() bool {
		got = src.PullLatestSample()
		return got != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, got)
	assert.True(t, src.IsConnected())

	// consumed; nothing new until the next datagram
	assert.Nil(t, src.PullLatestSample())
}

func TestUDPSourceIgnoresWrongSizeDatagrams(t *testing.T) {
	src, err := NewUDPSource("127.0.0.1:0", 4, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	conn := dialSource(t, src)

	// a truncated packet must not surface as a vector
	_, err = conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	sendVector(t, conn, []float32{1, 2, 3, 4})

	var got []float32
	require.Eventually(t, func() bool {
		got = src.PullLatestSample()
		return got != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
}

func TestUDPSourceFeedsIngester(t *testing.T) {
	log := slog.Default()
	ingester := NewIngester(ReducedSchema(), log)

	src, err := NewUDPSource("127.0.0.1:0", ingester.RawVectorLen(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	conn := dialSource(t, src)
	raw := make([]float32, ingester.RawVectorLen())
	for i := 0; i < 30; i++ {
		raw[i] = 0.1
	}
	raw[30], raw[31] = 0.25, 0.75 // gaze
	raw[32] = 1                   // blink
	raw[33] = 0.5                 // pupil
	sendVector(t, conn, raw)

	var pulled []float32
	require.Eventually(t, func() bool {
		pulled = src.PullLatestSample()
		return pulled != nil
	}, 2*time.Second, 5*time.Millisecond)

	sample := ingester.Ingest(pulled)
	assert.True(t, sample.LandmarksPresent)
	assert.True(t, sample.GazePresent)
	assert.True(t, sample.Blink)
	assert.InDelta(t, 0.25, sample.Gaze.X, 1e-6)
}
