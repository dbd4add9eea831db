package physics

import (
	"math"

	"github.com/TFMV/topograph/models"
)

// Params holds the simulation constants of one view. The defaults are hand
// tuned per view size and carry no physical meaning.
type Params struct {
	Repulsion  float64 `json:"repulsion" yaml:"repulsion" toml:"repulsion" validate:"gt=0,lt=4"`       // share of overlap removed per tick
	Padding    float64 `json:"padding" yaml:"padding" toml:"padding" validate:"gte=0"`                 // gap kept between node rims
	Spring     float64 `json:"spring" yaml:"spring" toml:"spring" validate:"gt=0,lt=4"`                // spring stiffness
	RestLength float64 `json:"rest_length" yaml:"rest_length" toml:"rest_length" validate:"gt=0"`      // spring target distance
	Damping    float64 `json:"damping" yaml:"damping" toml:"damping" validate:"gt=0,lt=1"`             // velocity decay per tick
}

// DefaultParams returns the constants used by the expanded view
func DefaultParams() Params {
	return Params{
		Repulsion:  0.3,
		Padding:    12,
		Spring:     0.02,
		RestLength: 100,
		Damping:    0.85,
	}
}

// CompactParams returns the constants used by the compact view
func CompactParams() Params {
	return Params{
		Repulsion:  0.3,
		Padding:    6,
		Spring:     0.03,
		RestLength: 50,
		Damping:    0.8,
	}
}

// MinSeparation is the smallest center distance two nodes may keep
func (p Params) MinSeparation(a, b *models.Node) float64 {
	return a.Radius + b.Radius + p.Padding
}

// body is the working copy of one node during a step
type body struct {
	k      Kinematics
	radius float64
	ok     bool
}

func (b *body) push(ix, iy float64) {
	if b.k.Pinned {
		return
	}
	b.k.VX += ix
	b.k.VY += iy
}

// Step advances the simulation by one tick and returns the new state. The
// input state is not modified.
//
// Pinned nodes are never moved, but they still take part in repulsion and
// springs as the fixed end of the forces acting on their neighbors.
func Step(g *models.Graph, state State, p Params, b Bounds) State {
	n := len(g.Order)
	bodies := make([]body, n)
	index := make(map[string]int, n)
	for i, id := range g.Order {
		index[id] = i
		k, ok := state[id]
		bodies[i] = body{k: sanitize(k, b), radius: g.Nodes[id].Radius, ok: ok}
	}

	// Repulsion between overlapping pairs
	for i := 0; i < n; i++ {
		a := &bodies[i]
		if !a.ok {
			continue
		}
		for j := i + 1; j < n; j++ {
			c := &bodies[j]
			if !c.ok || (a.k.Pinned && c.k.Pinned) {
				continue
			}

			dx := a.k.X - c.k.X
			dy := a.k.Y - c.k.Y
			dist := math.Hypot(dx, dy)
			minSep := a.radius + c.radius + p.Padding
			if dist >= minSep {
				continue
			}

			ux, uy := direction(dx, dy, dist, i, j)
			impulse := p.Repulsion * (minSep - math.Max(dist, 1)) / 2
			a.push(ux*impulse, uy*impulse)
			c.push(-ux*impulse, -uy*impulse)
		}
	}

	// Springs along edges
	for _, e := range g.Edges {
		si, ok1 := index[e.Source]
		ti, ok2 := index[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		s, t := &bodies[si], &bodies[ti]
		if !s.ok || !t.ok || (s.k.Pinned && t.k.Pinned) {
			continue
		}

		dx := t.k.X - s.k.X
		dy := t.k.Y - s.k.Y
		dist := math.Hypot(dx, dy)
		ux, uy := direction(dx, dy, dist, si, ti)

		// positive when stretched, pulling the endpoints together
		impulse := p.Spring * (math.Max(dist, 1) - p.RestLength) / 2
		s.push(ux*impulse, uy*impulse)
		t.push(-ux*impulse, -uy*impulse)
	}

	// Damping, integration and boundary clamp
	for i := range bodies {
		bd := &bodies[i]
		if !bd.ok || bd.k.Pinned {
			continue
		}
		bd.k.VX *= p.Damping
		bd.k.VY *= p.Damping
		bd.k.X += bd.k.VX
		bd.k.Y += bd.k.VY
		clampBody(bd, b)
	}

	next := state.Clone()
	for i, id := range g.Order {
		if bodies[i].ok {
			next[id] = bodies[i].k
		}
	}
	return next
}

// Energy returns the mean speed of the free nodes
func Energy(state State) float64 {
	total, count := 0.0, 0
	for _, k := range state {
		if k.Pinned {
			continue
		}
		total += math.Hypot(k.VX, k.VY)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// direction returns the unit vector of (dx, dy). Coincident nodes have no
// connecting line, so pairs closer than a hair get a fixed pseudo-random one.
func direction(dx, dy, dist float64, i, j int) (float64, float64) {
	if dist > 1e-9 {
		return dx / dist, dy / dist
	}
	angle := pairAngle(i, j)
	return math.Cos(angle), math.Sin(angle)
}

// sanitize replaces non-finite values so a corrupted entry cannot poison
// its neighbors
func sanitize(k Kinematics, b Bounds) Kinematics {
	if !finite(k.X) || !finite(k.Y) {
		k.X, k.Y = b.Center()
		k.VX, k.VY = 0, 0
	}
	if !finite(k.VX) || !finite(k.VY) {
		k.VX, k.VY = 0, 0
	}
	return k
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampBody(bd *body, b Bounds) {
	x, y := b.Clamp(bd.k.X, bd.k.Y, bd.radius)
	if x != bd.k.X {
		if (x > bd.k.X && bd.k.VX < 0) || (x < bd.k.X && bd.k.VX > 0) {
			bd.k.VX = 0
		}
		bd.k.X = x
	}
	if y != bd.k.Y {
		if (y > bd.k.Y && bd.k.VY < 0) || (y < bd.k.Y && bd.k.VY > 0) {
			bd.k.VY = 0
		}
		bd.k.Y = y
	}
}
