package worker

// connectivity.go
// Background goroutine that probes the remote API's /health endpoint on a
// fixed interval. It is the sole writer of the queue's online flag and
// triggers a replay pass on every confirmed transition into Online.

import (
	"context"
	"sync"
	"time"

	"dutyfreepos/internal/dto"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	defaultProbeInterval = 5 * time.Second
	defaultProbeTimeout  = 3 * time.Second
)

// Prober checks reachability of the remote API (implemented by infra.APIClient).
type Prober interface {
	Health(ctx context.Context) error
}

// Replayer is the part of the offline queue the monitor drives.
type Replayer interface {
	SetOnline(online bool) bool
	IsOnline() bool
	Replay(ctx context.Context) (dto.ReplayReport, error)
}

// ConnectivityConfig holds the probe cadence.
type ConnectivityConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clockwork.Clock
}

type ConnectivityMonitor struct {
	prober   Prober
	queue    Replayer
	interval time.Duration
	timeout  time.Duration
	clock    clockwork.Clock

	// probeMu keeps a hint-triggered probe and the ticker probe from
	// interleaving their SetOnline calls.
	probeMu sync.Mutex
	replays sync.WaitGroup

	// base outlives the request that triggered a probe; replays run on it.
	baseMu sync.Mutex
	base   context.Context
}

func NewConnectivityMonitor(prober Prober, queue Replayer, cfg ConnectivityConfig) *ConnectivityMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &ConnectivityMonitor{
		prober:   prober,
		queue:    queue,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		base:     context.Background(),
	}
}

// Run probes immediately, then on every tick, until ctx is cancelled.
// It waits for an in-flight replay before returning.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	m.baseMu.Lock()
	m.base = ctx
	m.baseMu.Unlock()

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.interval).Msg("connectivity: started")
	m.ProbeOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.replays.Wait()
			log.Info().Msg("connectivity: shutting down")
			return
		case <-ticker.Chan():
			m.ProbeOnce(ctx)
		}
	}
}

// Start launches Run in a goroutine, the way the other workers are started.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	go m.Run(ctx)
}

// ProbeOnce performs one bounded health request and records the outcome.
// A hung connection counts as offline once the probe timeout expires.
func (m *ConnectivityMonitor) ProbeOnce(ctx context.Context) bool {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Health(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return m.queue.IsOnline()
	}

	online := err == nil
	if !m.queue.SetOnline(online) {
		return online
	}

	if !online {
		log.Warn().Err(err).Msg("connectivity: remote API unreachable, going offline")
		return false
	}

	log.Info().Msg("connectivity: remote API reachable, replaying offline queue")
	m.baseMu.Lock()
	base := m.base
	m.baseMu.Unlock()
	m.replays.Add(1)
	go func() {
		defer m.replays.Done()
		if _, err := m.queue.Replay(base); err != nil {
			log.Error().Err(err).Msg("connectivity: replay failed")
		}
	}()
	return true
}

// Hint takes a network-interface signal from the dashboard. Going offline
// is applied at once; coming online is only believed after a probe succeeds.
func (m *ConnectivityMonitor) Hint(ctx context.Context, online bool) bool {
	if online {
		return m.ProbeOnce(ctx)
	}
	m.probeMu.Lock()
	defer m.probeMu.Unlock()
	if m.queue.SetOnline(false) {
		log.Warn().Msg("connectivity: offline hint received")
	}
	return false
}

// Wait blocks until replays started by the monitor have finished.
func (m *ConnectivityMonitor) Wait() { m.replays.Wait() }
