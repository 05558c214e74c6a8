package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/holoshare/relay/internal/session"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics holds the session's OTel instruments. They ride the global
// meter provider and are no-ops when OTel is not configured.
type metrics struct {
	ticks          metric.Int64Counter
	framesSent     metric.Int64Counter
	framesReceived metric.Int64Counter
	desyncs        metric.Int64Counter
	peerCount      metric.Int64ObservableGauge
}

func newMetrics() (*metrics, error) {
	m := meter()
	out := &metrics{}
	var err error

	out.ticks, err = m.Int64Counter(
		"session.ticks",
		metric.WithDescription("Total session ticks processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.framesSent, err = m.Int64Counter(
		"session.sensor.frames_sent",
		metric.WithDescription("Sensor frames broadcast to the session"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames sent counter: %w", err)
	}

	out.framesReceived, err = m.Int64Counter(
		"session.sensor.frames_received",
		metric.WithDescription("Sensor frames decoded from remote peers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames received counter: %w", err)
	}

	out.desyncs, err = m.Int64Counter(
		"session.sensor.desyncs",
		metric.WithDescription("Sensor frames dropped for schema desync"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating desync counter: %w", err)
	}

	out.peerCount, err = m.Int64ObservableGauge(
		"session.peers",
		metric.WithDescription("Remote peers currently in the session"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating peer gauge: %w", err)
	}

	return out, nil
}

// observePeers registers the roster as the source for the peer gauge.
func (m *metrics) observePeers(roster *PeerRoster) error {
	_, err := meter().RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.peerCount, int64(roster.Count()))
			return nil
		},
		m.peerCount,
	)
	if err != nil {
		return fmt.Errorf("registering peer gauge callback: %w", err)
	}
	return nil
}
