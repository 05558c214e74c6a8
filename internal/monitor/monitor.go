package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/holoshare/relay/internal/logging"
	"github.com/holoshare/relay/internal/session"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	LogManager *logging.SlogManager
	Engine     *session.Engine
	StatusDir  string
}

// Status is the snapshot written to the status file each interval.
type Status struct {
	Time           time.Time `json:"time"`
	UptimeSeconds  float64   `json:"uptimeSeconds"`
	PeerCount      int       `json:"peerCount"`
	TrackedAvatars int       `json:"trackedAvatars"`
	AlignedPeers   int       `json:"alignedPeers"`
	Aligned        bool      `json:"aligned"`
}

// Service periodically writes a session status snapshot to disk so
// operators can inspect a running relay without attaching a debugger.
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot builds the current status.
func (s *Service) Snapshot() Status {
	return Status{
		Time:           time.Now(),
		UptimeSeconds:  time.Since(s.started).Seconds(),
		PeerCount:      len(s.deps.Engine.Peers()),
		TrackedAvatars: s.deps.Engine.TrackedAvatarCount(),
		AlignedPeers:   s.deps.Engine.AlignedPeerCount(),
		Aligned:        s.deps.Engine.Aligned(),
	}
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.started = time.Now()
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.json")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				snap := s.Snapshot()
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					data = []byte(fmt.Sprintf(`{"error": %q}`, err))
				}

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(data, '\n'))
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
