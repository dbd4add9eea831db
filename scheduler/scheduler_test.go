package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastHz = 500

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLoopTicksUntilStopped(t *testing.T) {
	var ticks atomic.Int64
	l := New("test", fastHz, func() { ticks.Add(1) })
	require.NoError(t, l.Start(context.Background()))

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, time.Millisecond)

	l.Stop()
	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no tick may run after Stop returns")
	assert.True(t, isClosed(l.Done()))
}

func TestStopIsIdempotent(t *testing.T) {
	l := New("test", fastHz, func() {})
	require.NoError(t, l.Start(context.Background()))

	l.Stop()
	l.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Stop()
		}()
	}
	wg.Wait()
}

func TestStopBeforeStart(t *testing.T) {
	l := New("test", fastHz, func() {})
	l.Stop()

	assert.True(t, isClosed(l.Done()))
	assert.ErrorIs(t, l.Start(context.Background()), ErrStopped)
	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
}

func TestStartTwice(t *testing.T) {
	l := New("test", fastHz, func() {})
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	assert.ErrorIs(t, l.Start(context.Background()), ErrAlreadyStarted)
}

func TestPostedEventsRunBeforeNextTick(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	l := New("test", fastHz, func() { record("tick") })
	require.NoError(t, l.Post(func() { record("event") }))
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 2
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "event", order[0])
}

func TestCallRunsOnLoop(t *testing.T) {
	var ticks int // only touched on the loop goroutine
	l := New("test", fastHz, func() { ticks++ })
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	var seen int
	require.NoError(t, l.Call(func() { seen = ticks }))
	assert.GreaterOrEqual(t, seen, 0)

	l.Stop()
	assert.ErrorIs(t, l.Call(func() {}), ErrStopped)
}

func TestContextCancelEndsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New("test", fastHz, func() {})
	require.NoError(t, l.Start(ctx))

	cancel()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
	l.Stop()
}

func TestRunStopsOnError(t *testing.T) {
	l := New("test", fastHz, func() {})
	boom := errors.New("boom")

	err := Run(context.Background(), l, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.True(t, isClosed(l.Done()))
}

func TestRunStopsOnPanic(t *testing.T) {
	l := New("test", fastHz, func() {})

	assert.Panics(t, func() {
		_ = Run(context.Background(), l, func(ctx context.Context) error {
			panic("view exploded")
		})
	})
	assert.True(t, isClosed(l.Done()))
}

func TestNewDefaultsRefreshRate(t *testing.T) {
	l := New("test", 0, func() {})
	assert.Equal(t, time.Second/DefaultRefreshHz, l.Interval())
}
