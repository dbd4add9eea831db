package physics

import (
	"math"

	"github.com/TFMV/topograph/models"
)

// Kinematics is the per-node simulation state
type Kinematics struct {
	X, Y   float64 // position
	VX, VY float64 // velocity
	Pinned bool    // position is owned by a pointer gesture, not by physics
}

// State maps node ids to their kinematic state
type State map[string]Kinematics

// Clone returns a copy of the state
func (s State) Clone() State {
	out := make(State, len(s))
	for id, k := range s {
		out[id] = k
	}
	return out
}

// Bounds is the rectangular layout area, origin at the top-left corner
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the geometric center of the bounds
func (b Bounds) Center() (float64, float64) {
	return b.Width / 2, b.Height / 2
}

// Clamp keeps a circle of radius r centered at (x, y) inside the bounds.
// An axis too small for the circle collapses to its center.
func (b Bounds) Clamp(x, y, r float64) (float64, float64) {
	return clampAxis(x, r, b.Width), clampAxis(y, r, b.Height)
}

func clampAxis(v, r, size float64) float64 {
	lo, hi := r, size-r
	if hi < lo {
		return size / 2
	}
	return math.Max(lo, math.Min(hi, v))
}

// Store owns the kinematic state of every node of one graph. Every node of
// the graph has exactly one entry for the lifetime of the store.
//
// A Store is not safe for concurrent use; a view mutates it from a single
// goroutine.
type Store struct {
	order   []string
	entries map[string]Kinematics
}

// NewStore creates a store for the graph, taking initial positions from the
// given state. Nodes missing from the state start at the origin.
func NewStore(g *models.Graph, initial State) *Store {
	s := &Store{
		order:   g.NodeIDs(),
		entries: make(map[string]Kinematics, len(g.Nodes)),
	}
	for _, id := range s.order {
		s.entries[id] = initial[id]
	}
	return s
}

// Len returns the number of entries
func (s *Store) Len() int {
	return len(s.entries)
}

// Get returns the state of a node
func (s *Store) Get(id string) (Kinematics, bool) {
	k, ok := s.entries[id]
	return k, ok
}

// Set replaces the state of a known node
func (s *Store) Set(id string, k Kinematics) bool {
	if _, ok := s.entries[id]; !ok {
		return false
	}
	s.entries[id] = k
	return true
}

// Update applies a partial update to the state of a known node
func (s *Store) Update(id string, fn func(k *Kinematics)) bool {
	k, ok := s.entries[id]
	if !ok {
		return false
	}
	fn(&k)
	s.entries[id] = k
	return true
}

// ForEach calls fn for every node in graph order
func (s *Store) ForEach(fn func(id string, k Kinematics)) {
	for _, id := range s.order {
		fn(id, s.entries[id])
	}
}

// State returns a snapshot of all entries
func (s *Store) State() State {
	return State(s.entries).Clone()
}

// Replace overwrites entries from the given state. Ids unknown to the store
// are ignored and no entry is ever removed.
func (s *Store) Replace(state State) {
	for id, k := range state {
		if _, ok := s.entries[id]; ok {
			s.entries[id] = k
		}
	}
}

// Seed computes the initial layout: the root sits at the center of the
// bounds and the children of every node are spread evenly on a circle of
// the given radius around their parent.
func Seed(g *models.Graph, b Bounds, radius float64) State {
	state := make(State, len(g.Nodes))
	cx, cy := b.Center()

	var place func(id string, x, y float64)
	place = func(id string, x, y float64) {
		if _, done := state[id]; done {
			return
		}
		x, y = b.Clamp(x, y, g.Nodes[id].Radius)
		state[id] = Kinematics{X: x, Y: y}

		children := g.Children(id)
		for i, child := range children {
			angle := 2 * math.Pi * float64(i) / float64(len(children))
			place(child, x+radius*math.Cos(angle), y+radius*math.Sin(angle))
		}
	}
	if g.RootID != "" {
		place(g.RootID, cx, cy)
	}

	// Hand-built graphs may hold nodes the root cannot reach
	for _, id := range g.Order {
		if _, ok := state[id]; !ok {
			state[id] = Kinematics{X: cx, Y: cy}
		}
	}

	return state
}
