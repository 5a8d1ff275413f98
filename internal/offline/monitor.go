package offline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type HealthClient interface {
	Health(ctx context.Context) error
}

// Event signals a connectivity transition.
type Event struct {
	Online bool
	At     time.Time
}

// Monitor tracks backend reachability with an active heartbeat. OS-level
// connectivity signals lie on café iPad Wi-Fi (the LAN stays up while the
// uplink is dead), so only a successful health call counts as online.
type Monitor struct {
	health       HealthClient
	interval     time.Duration
	checkTimeout time.Duration

	mu           sync.Mutex
	started      bool
	online       bool
	offlineSince *time.Time
	subs         []chan Event
}

func NewMonitor(health HealthClient) *Monitor {
	return &Monitor{
		health:       health,
		interval:     10 * time.Second,
		checkTimeout: 5 * time.Second,
		online:       true,
	}
}

// NewMonitorWithTimings compresses the heartbeat for tests.
func NewMonitorWithTimings(health HealthClient, interval, checkTimeout time.Duration) *Monitor {
	return &Monitor{
		health:       health,
		interval:     interval,
		checkTimeout: checkTimeout,
		online:       true,
	}
}

// Subscribe returns a channel of connectivity transitions. Slow subscribers
// drop events rather than blocking the heartbeat.
func (m *Monitor) Subscribe() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, 4)
	m.subs = append(m.subs, ch)
	return ch
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) OfflineSince() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offlineSince == nil {
		return nil
	}
	t := *m.offlineSince
	return &t
}

// Run drives the heartbeat until ctx is cancelled. The first check fires
// immediately so startup state is accurate.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check performs one heartbeat probe and publishes any transition.
func (m *Monitor) Check(ctx context.Context) bool {
	callCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	err := m.health.Health(callCtx)
	now := time.Now().UTC()

	m.mu.Lock()
	wasOnline := m.online
	first := !m.started
	m.started = true
	m.online = err == nil
	if m.online {
		m.offlineSince = nil
	} else if wasOnline {
		m.offlineSince = &now
	}
	transition := !first && wasOnline != m.online
	subs := append([]chan Event(nil), m.subs...)
	online := m.online
	m.mu.Unlock()

	if transition || (first && !online) {
		if online {
			log.Info().Msg("connectivity restored")
		} else {
			log.Warn().Err(err).Msg("connectivity lost")
		}
		for _, ch := range subs {
			select {
			case ch <- Event{Online: online, At: now}:
			default:
			}
		}
	}
	return online
}
