package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Monitor samples the analyzer's health on a cron schedule and keeps the
// latest observation for the status widget.
type Monitor struct {
	client *Client
	cron   *cron.Cron
	log    zerolog.Logger

	mu        sync.RWMutex
	state     HealthState
	checkedAt time.Time
}

// NewMonitor builds a monitor on the given cron schedule, e.g. "@every 1m".
func NewMonitor(client *Client, schedule string, logger zerolog.Logger) (*Monitor, error) {
	m := &Monitor{
		client: client,
		cron:   cron.New(),
		log:    logger,
		state:  StateUnknown,
	}
	if _, err := m.cron.AddFunc(schedule, m.sample); err != nil {
		return nil, err
	}
	return m, nil
}

// Start takes an immediate sample, then runs on the schedule.
func (m *Monitor) Start() {
	go m.sample()
	m.cron.Start()
}

// Stop halts scheduled sampling and waits for a running sample's job slot.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Monitor) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultProbeTimeout)
	defer cancel()

	state := m.client.Health(ctx)

	m.mu.Lock()
	prev := m.state
	m.state = state
	m.checkedAt = time.Now()
	m.mu.Unlock()

	if state != prev {
		m.log.Info().
			Str("from", string(prev)).
			Str("to", string(state)).
			Msg("analyzer health changed")
	}
}

// Snapshot returns the latest observation and when it was taken.
func (m *Monitor) Snapshot() (HealthState, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.checkedAt
}

// Reachable reports whether the analyzer should be treated as usable.
// An unknown state counts as reachable: the probe failing to connect is not
// proof the service is down.
func (m *Monitor) Reachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state != StateUnhealthy
}
