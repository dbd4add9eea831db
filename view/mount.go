package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/TFMV/topograph/interaction"
	"github.com/TFMV/topograph/models"
	"github.com/TFMV/topograph/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activeViews = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "topograph_active_views",
	Help: "Number of mounted views by kind",
}, []string{"view"})

// MountOption configures a mounted view
type MountOption func(*Mounted)

// WithLogger sets the logger for mount and unmount events
func WithLogger(logger *slog.Logger) MountOption {
	return func(m *Mounted) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Mounted is a view driven by its own scheduler loop. All of its methods
// may be called from any goroutine; they are posted to the loop and run
// before the next tick.
type Mounted struct {
	view   *View
	loop   *scheduler.Loop
	logger *slog.Logger

	onActivate func(interaction.Activation)

	unmountOnce sync.Once
}

// Mount builds a view and starts simulating it. onFrame receives a snapshot
// after every tick and onActivate receives click activations; both run on
// the loop goroutine and may be nil.
func Mount(ctx context.Context, tree *models.TreeNode, cfg Config, onFrame func(Frame), onActivate func(interaction.Activation), opts ...MountOption) (*Mounted, error) {
	v, err := New(tree, cfg)
	if err != nil {
		return nil, err
	}

	m := &Mounted{
		view:       v,
		logger:     slog.Default(),
		onActivate: onActivate,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.loop = scheduler.New(string(cfg.Kind), cfg.RefreshHz, func() {
		v.Tick()
		if onFrame != nil {
			onFrame(v.Frame())
		}
	})
	if err := m.loop.Start(ctx); err != nil {
		return nil, fmt.Errorf("start view loop: %w", err)
	}

	label := string(cfg.Kind)
	activeViews.WithLabelValues(label).Inc()
	go func() {
		<-m.loop.Done()
		activeViews.WithLabelValues(label).Dec()
	}()

	m.logger.Debug("view mounted",
		"kind", cfg.Kind,
		"scope", cfg.Scope,
		"nodes", len(v.graph.Nodes),
		"edges", len(v.graph.Edges))
	return m, nil
}

// PointerDown posts a pointer press
func (m *Mounted) PointerDown(x, y float64) error {
	return m.loop.Post(func() { m.view.PointerDown(x, y) })
}

// PointerMove posts a pointer move
func (m *Mounted) PointerMove(x, y float64) error {
	return m.loop.Post(func() { m.view.PointerMove(x, y) })
}

// PointerUp posts a pointer release. A click is reported to onActivate.
func (m *Mounted) PointerUp() error {
	return m.loop.Post(func() {
		act, ok := m.view.PointerUp()
		if ok && m.onActivate != nil {
			m.onActivate(act)
		}
	})
}

// PointerLeave posts the pointer leaving the surface
func (m *Mounted) PointerLeave() error {
	return m.loop.Post(m.view.PointerLeave)
}

// SetFocus posts a focal node change
func (m *Mounted) SetFocus(id string) error {
	return m.loop.Post(func() { m.view.SetFocus(id) })
}

// Snapshot returns the current frame, taken on the loop goroutine
func (m *Mounted) Snapshot() (Frame, error) {
	var f Frame
	err := m.loop.Call(func() { f = m.view.Frame() })
	return f, err
}

// Done is closed once the loop has exited
func (m *Mounted) Done() <-chan struct{} {
	return m.loop.Done()
}

// Unmount stops the loop and waits for it to exit. Further calls are
// no-ops and posted events fail with scheduler.ErrStopped.
func (m *Mounted) Unmount() {
	m.unmountOnce.Do(func() {
		m.loop.Stop()
		m.logger.Debug("view unmounted", "kind", m.view.cfg.Kind, "ticks", m.view.seq)
	})
}
