package watchdog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const restartFailureAlertThreshold = 3

// State tracks consecutive watchdog outcomes. A tick that is still running
// blocks the next one.
type State struct {
	mu          sync.Mutex
	running     bool
	failures    int
	restarts    int
	lastHealthy time.Time
	lastError   string
}

func (s *State) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *State) EndHealthy(now time.Time) {
	s.mu.Lock()
	s.running = false
	s.failures = 0
	s.lastError = ""
	s.lastHealthy = now
	s.mu.Unlock()
}

func (s *State) EndRestarted(now time.Time) {
	s.mu.Lock()
	s.running = false
	s.failures = 0
	s.restarts++
	s.lastError = ""
	s.lastHealthy = now
	s.mu.Unlock()
}

// EndFailure records a failed restart. Every third consecutive failure
// returns an alert message and resets the counter.
func (s *State) EndFailure(err error) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.failures++
	if err != nil {
		s.lastError = strings.TrimSpace(err.Error())
	}
	if s.failures >= restartFailureAlertThreshold {
		msg := "watchdog_restart_failed"
		if s.lastError != "" {
			msg = fmt.Sprintf("watchdog_restart_failed (%s)", s.lastError)
		}
		s.failures = 0
		return true, "ALERT: " + msg
	}
	return false, ""
}

type Snapshot struct {
	Failures    int
	Restarts    int
	LastHealthy time.Time
	LastError   string
	Running     bool
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Failures:    s.failures,
		Restarts:    s.restarts,
		LastHealthy: s.lastHealthy,
		LastError:   s.lastError,
		Running:     s.running,
	}
}
