// Package interaction turns pointer gestures into position overrides. A
// node under an active drag is pinned: physics stops moving it and the
// pointer owns its position until release.
package interaction

import (
	"math"

	"github.com/TFMV/topograph/models"
	"github.com/TFMV/topograph/physics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pointerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topograph_pointer_events_total",
	Help: "Total pointer events by type and outcome",
}, []string{"type", "outcome"})

// NodeState is the gesture state of a node
type NodeState int

const (
	// Free nodes are moved by physics
	Free NodeState = iota
	// Dragging nodes follow the pointer
	Dragging
)

// String returns the string representation of the state
func (s NodeState) String() string {
	switch s {
	case Free:
		return "free"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Activation is emitted when a gesture on a node is classified as a click
type Activation struct {
	NodeID string `json:"id"`
	URL    string `json:"url,omitempty"`
}

type drag struct {
	id               string
	offsetX, offsetY float64
	moved            bool
}

// Controller tracks one pointer over one view. It is not safe for
// concurrent use; calls must come from the goroutine that steps physics.
type Controller struct {
	graph  *models.Graph
	store  *physics.Store
	bounds physics.Bounds
	active *drag
}

// New creates a controller writing into the given store
func New(g *models.Graph, store *physics.Store, bounds physics.Bounds) *Controller {
	return &Controller{graph: g, store: store, bounds: bounds}
}

// HitTest returns the topmost node whose disc contains the point. Later
// nodes in graph order are drawn above earlier ones.
func (c *Controller) HitTest(x, y float64) (string, bool) {
	for i := len(c.graph.Order) - 1; i >= 0; i-- {
		id := c.graph.Order[i]
		k, ok := c.store.Get(id)
		if !ok {
			continue
		}
		if math.Hypot(x-k.X, y-k.Y) <= c.graph.Nodes[id].Radius {
			return id, true
		}
	}
	return "", false
}

// PointerDown starts a drag on the node under the pointer, pinning it. The
// offset between pointer and node center is kept so the node does not jump.
func (c *Controller) PointerDown(x, y float64) (string, bool) {
	if c.active != nil {
		// the matching release was lost, e.g. the pointer left mid-drag
		c.release()
	}

	id, ok := c.HitTest(x, y)
	if !ok {
		pointerEvents.WithLabelValues("down", "miss").Inc()
		return "", false
	}

	k, _ := c.store.Get(id)
	c.active = &drag{id: id, offsetX: k.X - x, offsetY: k.Y - y}
	c.store.Update(id, func(k *physics.Kinematics) {
		k.Pinned = true
		k.VX, k.VY = 0, 0
	})
	pointerEvents.WithLabelValues("down", "hit").Inc()
	return id, true
}

// PointerMove moves the dragged node with the pointer. Moves without an
// active drag are ignored.
func (c *Controller) PointerMove(x, y float64) {
	if c.active == nil {
		pointerEvents.WithLabelValues("move", "ignored").Inc()
		return
	}
	d := c.active
	d.moved = true

	r := c.graph.Nodes[d.id].Radius
	nx, ny := c.bounds.Clamp(x+d.offsetX, y+d.offsetY, r)
	c.store.Update(d.id, func(k *physics.Kinematics) {
		k.X, k.Y = nx, ny
		k.VX, k.VY = 0, 0
	})
	pointerEvents.WithLabelValues("move", "applied").Inc()
}

// PointerUp ends the gesture. A gesture without any move in between is a
// click and yields an activation for the node.
func (c *Controller) PointerUp() (Activation, bool) {
	if c.active == nil {
		pointerEvents.WithLabelValues("up", "ignored").Inc()
		return Activation{}, false
	}
	d := c.release()
	if d.moved {
		pointerEvents.WithLabelValues("up", "drag").Inc()
		return Activation{}, false
	}
	pointerEvents.WithLabelValues("up", "click").Inc()
	return Activation{NodeID: d.id, URL: c.graph.Nodes[d.id].URL}, true
}

// PointerLeave ends any drag without treating it as a click
func (c *Controller) PointerLeave() {
	if c.active == nil {
		return
	}
	c.release()
	pointerEvents.WithLabelValues("leave", "released").Inc()
}

// State returns the gesture state of a node
func (c *Controller) State(id string) NodeState {
	if c.active != nil && c.active.id == id {
		return Dragging
	}
	return Free
}

// Dragging returns the id of the node being dragged, if any
func (c *Controller) Dragging() (string, bool) {
	if c.active == nil {
		return "", false
	}
	return c.active.id, true
}

func (c *Controller) release() *drag {
	d := c.active
	c.active = nil
	c.store.Update(d.id, func(k *physics.Kinematics) {
		k.Pinned = false
		k.VX, k.VY = 0, 0
	})
	return d
}
