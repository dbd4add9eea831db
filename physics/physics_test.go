package physics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/TFMV/topograph/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBounds = Bounds{Width: 800, Height: 600}

func chainTree() *models.TreeNode {
	return &models.TreeNode{ID: "root", Level: 0, Children: []*models.TreeNode{
		{ID: "a", Level: 1, Children: []*models.TreeNode{{ID: "b", Level: 2}}},
	}}
}

func wideTree() *models.TreeNode {
	return &models.TreeNode{ID: "root", Level: 0, Children: []*models.TreeNode{
		{ID: "c1", Level: 1, Children: []*models.TreeNode{
			{ID: "g1", Level: 2},
			{ID: "g2", Level: 2},
		}},
		{ID: "c2", Level: 1},
		{ID: "c3", Level: 1},
		{ID: "c4", Level: 1},
	}}
}

func distance(a, b Kinematics) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestSeedPlacesRootAndChildren(t *testing.T) {
	g := models.BuildGraph(wideTree())
	state := Seed(g, testBounds, 100)

	require.Len(t, state, len(g.Nodes))
	root := state["root"]
	assert.Equal(t, 400.0, root.X)
	assert.Equal(t, 300.0, root.Y)

	// four children on a circle at 0, 90, 180 and 270 degrees
	assert.InDelta(t, 500.0, state["c1"].X, 1e-9)
	assert.InDelta(t, 300.0, state["c1"].Y, 1e-9)
	assert.InDelta(t, 400.0, state["c2"].X, 1e-9)
	assert.InDelta(t, 400.0, state["c2"].Y, 1e-9)
	assert.InDelta(t, 300.0, state["c3"].X, 1e-9)
	assert.InDelta(t, 200.0, state["c4"].Y, 1e-9)

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		assert.InDelta(t, 100.0, distance(root, state[id]), 1e-9, id)
	}
	// grandchildren circle their own parent
	assert.InDelta(t, 100.0, distance(state["c1"], state["g1"]), 1e-9)
	assert.InDelta(t, 100.0, distance(state["c1"], state["g2"]), 1e-9)
}

func TestSeedClampsIntoBounds(t *testing.T) {
	g := models.BuildGraph(chainTree())
	small := Bounds{Width: 100, Height: 100}
	state := Seed(g, small, 400)

	for id, k := range state {
		r := g.Nodes[id].Radius
		assert.GreaterOrEqual(t, k.X, r, id)
		assert.LessOrEqual(t, k.X, small.Width-r, id)
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	g := models.BuildGraph(wideTree())
	state := Seed(g, testBounds, 10)
	before := state.Clone()

	next := Step(g, state, DefaultParams(), testBounds)

	assert.Equal(t, before, state)
	assert.NotEqual(t, state, next)
}

func TestStepPinnedInvariance(t *testing.T) {
	g := models.BuildGraph(chainTree())
	state := State{
		"root": {X: 400, Y: 300},
		"a":    {X: 405, Y: 302, Pinned: true},
		"b":    {X: 700, Y: 550},
	}

	for i := 0; i < 200; i++ {
		state = Step(g, state, DefaultParams(), testBounds)
		a := state["a"]
		require.Equal(t, 405.0, a.X)
		require.Equal(t, 302.0, a.Y)
	}

	// the anchored neighbors moved away from the overlap and toward the spring
	assert.Greater(t, distance(state["root"], state["a"]), 30.0)
}

func TestStepBoundaryContainment(t *testing.T) {
	g := models.BuildGraph(wideTree())
	rng := rand.New(rand.NewPCG(7, 11))

	state := State{}
	for _, id := range g.Order {
		state[id] = Kinematics{
			X:  rng.Float64()*1200 - 200,
			Y:  rng.Float64()*1000 - 200,
			VX: rng.Float64()*80 - 40,
			VY: rng.Float64()*80 - 40,
		}
	}

	for i := 0; i < 300; i++ {
		state = Step(g, state, DefaultParams(), testBounds)
		for id, k := range state {
			r := g.Nodes[id].Radius
			require.GreaterOrEqual(t, k.X, r-1e-9, id)
			require.LessOrEqual(t, k.X, testBounds.Width-r+1e-9, id)
			require.GreaterOrEqual(t, k.Y, r-1e-9, id)
			require.LessOrEqual(t, k.Y, testBounds.Height-r+1e-9, id)
		}
	}
}

func TestStepMinimumSeparationConvergence(t *testing.T) {
	g := models.BuildGraph(wideTree())
	params := DefaultParams()

	// start from a tight overlapping cluster
	state := State{}
	for i, id := range g.Order {
		state[id] = Kinematics{X: 390 + 6*float64(i%3), Y: 295 + 6*float64(i/3)}
	}

	for i := 0; i < 500; i++ {
		state = Step(g, state, params, testBounds)
	}

	connected := map[[2]string]bool{}
	for _, e := range g.Edges {
		connected[[2]string{e.Source, e.Target}] = true
		connected[[2]string{e.Target, e.Source}] = true
	}

	const tolerance = 1.0
	for i, a := range g.Order {
		for _, b := range g.Order[i+1:] {
			if connected[[2]string{a, b}] {
				continue
			}
			minSep := params.MinSeparation(g.Nodes[a], g.Nodes[b])
			assert.GreaterOrEqual(t, distance(state[a], state[b]), minSep-tolerance, "%s-%s", a, b)
		}
	}
}

func TestStepSeparatesCoincidentNodes(t *testing.T) {
	g := models.NewGraph()
	g.AddNode(models.NewNode("x", "X", 2, ""))
	g.AddNode(models.NewNode("y", "Y", 2, ""))
	state := State{"x": {X: 400, Y: 300}, "y": {X: 400, Y: 300}}

	for i := 0; i < 50; i++ {
		state = Step(g, state, DefaultParams(), testBounds)
	}

	assert.Greater(t, distance(state["x"], state["y"]), 20.0)
}

func TestStepSpringPullsStretchedEdge(t *testing.T) {
	g := models.NewGraph()
	g.AddNode(models.NewNode("p", "P", 0, ""))
	g.AddNode(models.NewNode("c", "C", 1, ""))
	g.AddEdge(models.Edge{Source: "p", Target: "c"})
	state := State{"p": {X: 100, Y: 300}, "c": {X: 700, Y: 300}}

	next := Step(g, state, DefaultParams(), testBounds)

	assert.Greater(t, next["p"].VX, 0.0)
	assert.Less(t, next["c"].VX, 0.0)
	assert.InDelta(t, -next["p"].VX, next["c"].VX, 1e-9)
}

func TestStepSanitizesNonFiniteValues(t *testing.T) {
	g := models.BuildGraph(chainTree())
	state := State{
		"root": {X: math.NaN(), Y: 10},
		"a":    {X: 100, Y: 100, VX: math.Inf(1)},
		"b":    {X: 600, Y: 400},
	}

	next := Step(g, state, DefaultParams(), testBounds)

	for id, k := range next {
		assert.True(t, finite(k.X) && finite(k.Y), id)
		assert.True(t, finite(k.VX) && finite(k.VY), id)
	}
}

func TestEnergy(t *testing.T) {
	assert.Equal(t, 0.0, Energy(State{}))
	state := State{
		"a": {VX: 3, VY: 4},
		"b": {VX: 0, VY: 0},
		"c": {VX: 100, Pinned: true},
	}
	assert.InDelta(t, 2.5, Energy(state), 1e-9)
}

func TestStoreInvariants(t *testing.T) {
	g := models.BuildGraph(chainTree())
	s := NewStore(g, State{"root": {X: 1, Y: 2}, "ghost": {X: 9}})

	assert.Equal(t, 3, s.Len())
	k, ok := s.Get("root")
	require.True(t, ok)
	assert.Equal(t, 1.0, k.X)
	_, ok = s.Get("ghost")
	assert.False(t, ok)

	assert.False(t, s.Set("ghost", Kinematics{}))
	assert.True(t, s.Update("a", func(k *Kinematics) { k.Pinned = true }))
	k, _ = s.Get("a")
	assert.True(t, k.Pinned)

	s.Replace(State{"b": {X: 5}, "ghost": {X: 1}})
	assert.Equal(t, 3, s.Len())
	k, _ = s.Get("b")
	assert.Equal(t, 5.0, k.X)

	var visited []string
	s.ForEach(func(id string, _ Kinematics) { visited = append(visited, id) })
	assert.Equal(t, []string{"root", "a", "b"}, visited)
}

func TestBoundsClamp(t *testing.T) {
	b := Bounds{Width: 100, Height: 50}
	x, y := b.Clamp(-10, 70, 5)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 45.0, y)

	// too narrow for the circle
	x, _ = Bounds{Width: 4, Height: 50}.Clamp(3, 10, 5)
	assert.Equal(t, 2.0, x)
}
