package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dutyfreepos/internal/dto"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	calls atomic.Int32
	mu    sync.Mutex
	err   error
	hang  bool
}

func (p *fakeProber) Health(ctx context.Context) error {
	p.calls.Add(1)
	p.mu.Lock()
	err, hang := p.err, p.hang
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *fakeProber) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type fakeReplayer struct {
	online  atomic.Bool
	replays atomic.Int32
}

func (r *fakeReplayer) SetOnline(online bool) bool { return r.online.Swap(online) != online }
func (r *fakeReplayer) IsOnline() bool             { return r.online.Load() }
func (r *fakeReplayer) Replay(context.Context) (dto.ReplayReport, error) {
	r.replays.Add(1)
	return dto.ReplayReport{}, nil
}

func TestProbeOnce_ReplaysOnlyOnTransitionToOnline(t *testing.T) {
	prober, queue := &fakeProber{}, &fakeReplayer{}
	m := NewConnectivityMonitor(prober, queue, ConnectivityConfig{})

	assert.True(t, m.ProbeOnce(context.Background()))
	assert.True(t, m.ProbeOnce(context.Background()))
	m.Wait()

	assert.True(t, queue.IsOnline())
	assert.Equal(t, int32(1), queue.replays.Load())
}

func TestProbeOnce_FailureGoesOffline(t *testing.T) {
	prober, queue := &fakeProber{}, &fakeReplayer{}
	queue.online.Store(true)
	prober.set(errors.New("connection refused"))
	m := NewConnectivityMonitor(prober, queue, ConnectivityConfig{})

	assert.False(t, m.ProbeOnce(context.Background()))
	m.Wait()
	assert.False(t, queue.IsOnline())
	assert.Equal(t, int32(0), queue.replays.Load())
}

func TestProbeOnce_RecoveryReplaysAgain(t *testing.T) {
	prober, queue := &fakeProber{}, &fakeReplayer{}
	m := NewConnectivityMonitor(prober, queue, ConnectivityConfig{})

	m.ProbeOnce(context.Background())
	prober.set(errors.New("down"))
	m.ProbeOnce(context.Background())
	prober.set(nil)
	m.ProbeOnce(context.Background())
	m.Wait()

	assert.Equal(t, int32(2), queue.replays.Load())
}

func TestProbeOnce_HungProbeCountsAsOffline(t *testing.T) {
	prober, queue := &fakeProber{hang: true}, &fakeReplayer{}
	queue.online.Store(true)
	m := NewConnectivityMonitor(prober, queue, ConnectivityConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	assert.False(t, m.ProbeOnce(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, queue.IsOnline())
}

func TestHint_OnlineIsVerifiedByProbe(t *testing.T) {
	prober, queue := &fakeProber{}, &fakeReplayer{}
	prober.set(errors.New("captive portal"))
	m := NewConnectivityMonitor(prober, queue, ConnectivityConfig{})

	assert.False(t, m.Hint(context.Background(), true))
	assert.False(t, queue.IsOnline())
	assert.Equal(t, int32(1), prober.calls.Load())
}

func TestHint_OfflineAppliesWithoutProbe(t *testing.T) {
	prober, queue := &fakeProber{}, &fakeReplayer{}
	queue.online.Store(true)
	m := NewConnectivityMonitor(prober, queue, ConnectivityConfig{})

	assert.False(t, m.Hint(context.Background(), false))
	assert.False(t, queue.IsOnline())
	assert.Equal(t, int32(0), prober.calls.Load())
}

func TestRun_ProbesOnEveryTick(t *testing.T) {
	prober, queue := &fakeProber{}, &fakeReplayer{}
	clock := clockwork.NewFakeClock()
	m := NewConnectivityMonitor(prober, queue, ConnectivityConfig{Interval: 5 * time.Second, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return prober.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return prober.calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, int32(1), queue.replays.Load())
}
