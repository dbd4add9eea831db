// Package view assembles one interactive graph view: a graph built from a
// hierarchy, its position store, the pointer controller and the current
// highlight. Every view owns its state exclusively, so a compact panel and
// an expanded panel over the same hierarchy never interfere.
package view

import (
	"errors"
	"fmt"
	"time"

	"github.com/TFMV/topograph/highlight"
	"github.com/TFMV/topograph/interaction"
	"github.com/TFMV/topograph/models"
	"github.com/TFMV/topograph/physics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrScopeNotFound is returned when the scoped node is not in the hierarchy
	ErrScopeNotFound = errors.New("view: scope node not found")

	// ErrInvalidConfig is returned for non-positive bounds
	ErrInvalidConfig = errors.New("view: invalid config")
)

var stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "topograph_physics_step_duration_seconds",
	Help:    "Physics step duration in seconds by view kind",
	Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
}, []string{"view"})

// Kind names a view variant
type Kind string

const (
	KindCompact  Kind = "compact"
	KindExpanded Kind = "expanded"
)

// Config selects the bounds, cadence and physics of a view
type Config struct {
	Kind       Kind           `json:"kind" yaml:"-" toml:"-"`
	Width      float64        `json:"width" yaml:"width" toml:"width" validate:"gt=0"`
	Height     float64        `json:"height" yaml:"height" toml:"height" validate:"gt=0"`
	RefreshHz  int            `json:"refresh_hz" yaml:"refresh_hz" toml:"refresh_hz" validate:"gte=1,lte=240"`
	SeedRadius float64        `json:"seed_radius" yaml:"seed_radius" toml:"seed_radius" validate:"gt=0"`
	Scope      string         `json:"scope,omitempty" yaml:"-" toml:"-"` // node id of a sub-hierarchy, empty for all
	Physics    physics.Params `json:"physics" yaml:"physics" toml:"physics"`
}

// Compact returns the preset for the miniature panel
func Compact() Config {
	return Config{
		Kind:       KindCompact,
		Width:      300,
		Height:     300,
		RefreshHz:  60,
		SeedRadius: 60,
		Physics:    physics.CompactParams(),
	}
}

// Expanded returns the preset for the full panel
func Expanded() Config {
	return Config{
		Kind:       KindExpanded,
		Width:      800,
		Height:     600,
		RefreshHz:  60,
		SeedRadius: 120,
		Physics:    physics.DefaultParams(),
	}
}

// Preset returns the preset for a kind name
func Preset(kind string) (Config, bool) {
	switch Kind(kind) {
	case KindCompact:
		return Compact(), true
	case KindExpanded, "":
		return Expanded(), true
	default:
		return Config{}, false
	}
}

// Bounds returns the layout rectangle of the config
func (c Config) Bounds() physics.Bounds {
	return physics.Bounds{Width: c.Width, Height: c.Height}
}

// FrameNode is the render state of one node
type FrameNode struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Level       int     `json:"level"`
	URL         string  `json:"url,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"radius"`
	Pinned      bool    `json:"pinned,omitempty"`
	Highlighted bool    `json:"highlighted,omitempty"`
	Focal       bool    `json:"focal,omitempty"`
}

// FrameEdge is the render state of one edge
type FrameEdge struct {
	Index       int    `json:"index"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// Frame is a snapshot of everything a renderer needs for one frame. It
// carries semantic flags only; mapping them to colors is up to the renderer.
type Frame struct {
	Seq    uint64      `json:"seq"`
	Kind   Kind        `json:"kind"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Focus  string      `json:"focus,omitempty"`
	Nodes  []FrameNode `json:"nodes"`
	Edges  []FrameEdge `json:"edges"`
}

// Index maps node ids to their frame entries
func (f Frame) Index() map[string]FrameNode {
	idx := make(map[string]FrameNode, len(f.Nodes))
	for _, n := range f.Nodes {
		idx[n.ID] = n
	}
	return idx
}

// Dimmed reports whether a node recedes behind the current highlight
func (f Frame) Dimmed(n FrameNode) bool {
	return f.Focus != "" && !n.Highlighted
}

// View is one independent instance of the layout engine. It is not safe for
// concurrent use; Mount drives it from a single goroutine.
type View struct {
	cfg    Config
	bounds physics.Bounds
	graph  *models.Graph
	store  *physics.Store
	ctrl   *interaction.Controller

	focus string
	set   highlight.Set
	seq   uint64
}

// New builds a view over the hierarchy, or over the subtree rooted at
// cfg.Scope when it is set.
func New(tree *models.TreeNode, cfg Config) (*View, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: bounds %gx%g", ErrInvalidConfig, cfg.Width, cfg.Height)
	}
	if cfg.Scope != "" {
		sub, ok := models.Subtree(tree, cfg.Scope)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrScopeNotFound, cfg.Scope)
		}
		tree = sub
	}

	g := models.BuildGraph(tree)
	b := cfg.Bounds()
	store := physics.NewStore(g, physics.Seed(g, b, cfg.SeedRadius))

	return &View{
		cfg:    cfg,
		bounds: b,
		graph:  g,
		store:  store,
		ctrl:   interaction.New(g, store, b),
		set:    highlight.Empty(),
	}, nil
}

// Config returns the view configuration
func (v *View) Config() Config { return v.cfg }

// Graph returns the graph of the view
func (v *View) Graph() *models.Graph { return v.graph }

// Store returns the position store of the view
func (v *View) Store() *physics.Store { return v.store }

// Focus returns the current focal node id
func (v *View) Focus() string { return v.focus }

// Highlight returns the current highlight set
func (v *View) Highlight() highlight.Set { return v.set }

// Tick advances the simulation by one step
func (v *View) Tick() {
	start := time.Now()
	v.store.Replace(physics.Step(v.graph, v.store.State(), v.cfg.Physics, v.bounds))
	v.seq++
	stepDuration.WithLabelValues(string(v.cfg.Kind)).Observe(time.Since(start).Seconds())
}

// Settle runs ticks until the mean speed drops below threshold or maxIter
// ticks have run. It returns the ticks run and the final energy.
func (v *View) Settle(maxIter int, threshold float64) (int, float64) {
	energy := physics.Energy(v.store.State())
	for i := 0; i < maxIter; i++ {
		v.Tick()
		energy = physics.Energy(v.store.State())
		if energy < threshold {
			return i + 1, energy
		}
	}
	return maxIter, energy
}

// PointerDown starts a drag on the node under the point
func (v *View) PointerDown(x, y float64) (string, bool) {
	return v.ctrl.PointerDown(x, y)
}

// PointerMove moves the dragged node
func (v *View) PointerMove(x, y float64) {
	v.ctrl.PointerMove(x, y)
}

// PointerUp ends the gesture and reports a click activation
func (v *View) PointerUp() (interaction.Activation, bool) {
	return v.ctrl.PointerUp()
}

// PointerLeave ends the gesture without activation
func (v *View) PointerLeave() {
	v.ctrl.PointerLeave()
}

// SetFocus changes the focal node and recomputes the highlight. An empty id
// clears the focus.
func (v *View) SetFocus(id string) {
	v.focus = id
	v.set = highlight.Compute(v.graph, id)
}

// Frame snapshots positions and highlight flags in graph order
func (v *View) Frame() Frame {
	f := Frame{
		Seq:    v.seq,
		Kind:   v.cfg.Kind,
		Width:  v.cfg.Width,
		Height: v.cfg.Height,
		Focus:  v.focus,
		Nodes:  make([]FrameNode, 0, len(v.graph.Order)),
		Edges:  make([]FrameEdge, 0, len(v.graph.Edges)),
	}

	v.store.ForEach(func(id string, k physics.Kinematics) {
		n := v.graph.Nodes[id]
		f.Nodes = append(f.Nodes, FrameNode{
			ID:          id,
			Label:       n.Label,
			Level:       n.Level,
			URL:         n.URL,
			X:           k.X,
			Y:           k.Y,
			Radius:      n.Radius,
			Pinned:      k.Pinned,
			Highlighted: v.set.HasNode(id),
			Focal:       v.focus != "" && id == v.focus,
		})
	})

	for i, e := range v.graph.Edges {
		f.Edges = append(f.Edges, FrameEdge{
			Index:       i,
			Source:      e.Source,
			Target:      e.Target,
			Highlighted: v.set.HasEdge(i),
		})
	}
	return f
}
