package telemetry

import (
	"context"
	"fmt"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Stats is one sampled snapshot of session health.
type Stats struct {
	PeerID         uint16
	PeerCount      int
	TrackedAvatars int
	AlignedPeers   int
	Aligned        bool
}

// StatsFunc samples the current session state. It runs on the reporter
// goroutine.
type StatsFunc func() Stats

// Reporter periodically samples session stats and ships them to
// InfluxDB.
type Reporter struct {
	mgr      *Manager
	interval time.Duration
	sample   StatsFunc
}

func NewReporter(mgr *Manager, interval time.Duration, sample StatsFunc) *Reporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reporter{mgr: mgr, interval: interval, sample: sample}
}

// Run blocks writing one point per interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			stats := r.sample()
			point := influxdb2_write.NewPointWithMeasurement("session").
				AddTag("peer", fmt.Sprintf("%d", stats.PeerID)).
				AddField("peer_count", stats.PeerCount).
				AddField("tracked_avatars", stats.TrackedAvatars).
				AddField("aligned_peers", stats.AlignedPeers).
				AddField("aligned", stats.Aligned).
				SetTime(now)
			if err := r.mgr.WritePoint(ctx, "session_stats", point); err != nil {
				r.mgr.Logger.Error().Err(err).Msg("Error writing session stats")
			}
		}
	}
}
