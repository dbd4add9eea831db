// Package scheduler drives a view's simulation at the display refresh
// cadence.
//
// # Description
//
// A Loop owns one goroutine. That goroutine runs the tick function once per
// refresh interval and executes every closure posted to the loop, so all of
// a view's state has exactly one writer and needs no locking. Posted
// closures that are pending when a tick fires are drained first, which
// keeps a pointer move ahead of the next physics read.
//
// # Lifetime
//
// Stop cancels the loop and waits for the goroutine to exit. It is safe to
// call any number of times. Run wraps a loop in a scoped lifetime that
// stops it on every exit path, including panics.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrStopped is returned when posting to a loop that is not running
	ErrStopped = errors.New("scheduler: loop stopped")

	// ErrAlreadyStarted is returned when starting a loop twice
	ErrAlreadyStarted = errors.New("scheduler: loop already started")
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topograph_scheduler_ticks_total",
		Help: "Total simulation ticks by view kind",
	}, []string{"view"})

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topograph_scheduler_tick_duration_seconds",
		Help:    "Tick duration in seconds, including posted events",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10µs to ~20ms
	}, []string{"view"})

	activeLoops = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "topograph_scheduler_active_loops",
		Help: "Number of running loops by view kind",
	}, []string{"view"})
)

// DefaultRefreshHz is the cadence used when none is configured
const DefaultRefreshHz = 60

// inboxSize bounds the number of pending posted closures
const inboxSize = 256

// Loop repeatedly invokes a tick function until stopped
type Loop struct {
	name     string
	interval time.Duration
	tick     func()

	inbox chan func()

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop that calls tick refreshHz times per second. The name
// labels the loop's metrics and should be a small fixed set such as the
// view kind.
func New(name string, refreshHz int, tick func()) *Loop {
	if refreshHz <= 0 {
		refreshHz = DefaultRefreshHz
	}
	return &Loop{
		name:     name,
		interval: time.Second / time.Duration(refreshHz),
		tick:     tick,
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
	}
}

// Interval returns the time between ticks
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Start launches the loop goroutine. The loop ends when ctx is canceled or
// Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true

	ctx, l.cancel = context.WithCancel(ctx)
	activeLoops.WithLabelValues(l.name).Inc()
	go l.run(ctx)
	return nil
}

// Stop cancels the loop and waits until its goroutine has exited. No tick
// or posted closure runs after Stop returns. Calling Stop on a stopped or
// never started loop is a no-op. Stop must not be called from the loop
// goroutine itself.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		l.stopped = true
		if !l.started {
			close(l.done)
			return
		}
		l.cancel()
	})
	<-l.done
}

// Done is closed once the loop has exited
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop goroutine before the next tick. It
// blocks while the inbox is full and fails once the loop has stopped.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.inbox <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Call runs fn on the loop goroutine and waits for it to finish
func (l *Loop) Call(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// the loop may have exited with fn still queued
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

func (l *Loop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer func() {
		ticker.Stop()
		activeLoops.WithLabelValues(l.name).Dec()
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.inbox:
			fn()
		case <-ticker.C:
			start := time.Now()
			l.drain(ctx)
			if ctx.Err() != nil {
				return
			}
			l.tick()
			ticksTotal.WithLabelValues(l.name).Inc()
			tickDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
		}
	}
}

// drain runs every closure queued so far
func (l *Loop) drain(ctx context.Context) {
	for {
		select {
		case fn := <-l.inbox:
			fn()
			if ctx.Err() != nil {
				return
			}
		default:
			return
		}
	}
}

// Run starts the loop, calls fn and stops the loop when fn returns or
// panics.
func Run(ctx context.Context, l *Loop, fn func(ctx context.Context) error) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer l.Stop()
	return fn(ctx)
}
