package interaction

import (
	"math"
	"testing"

	"github.com/TFMV/topograph/models"
	"github.com/TFMV/topograph/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bounds = physics.Bounds{Width: 800, Height: 600}

// newFixture lays out root -> A -> B with A at (500,300) and B at (600,300)
func newFixture(t *testing.T) (*models.Graph, *physics.Store, *Controller) {
	t.Helper()
	g := models.BuildGraph(&models.TreeNode{ID: "root", Level: 0, Children: []*models.TreeNode{
		{ID: "A", Level: 1, URL: "/wiki/a", Children: []*models.TreeNode{
			{ID: "B", Level: 2, URL: "/wiki/a/b"},
		}},
	}})
	store := physics.NewStore(g, physics.Seed(g, bounds, 100))
	return g, store, New(g, store, bounds)
}

func position(t *testing.T, s *physics.Store, id string) physics.Kinematics {
	t.Helper()
	k, ok := s.Get(id)
	require.True(t, ok, id)
	return k
}

func TestDragHoldsNodeWhileNeighborFollows(t *testing.T) {
	g, store, c := newFixture(t)

	id, ok := c.PointerDown(500, 300)
	require.True(t, ok)
	require.Equal(t, "A", id)
	c.PointerMove(100, 100)

	a := position(t, store, "A")
	before := math.Hypot(position(t, store, "B").X-a.X, position(t, store, "B").Y-a.Y)

	for i := 0; i < 10; i++ {
		store.Replace(physics.Step(g, store.State(), physics.DefaultParams(), bounds))
	}

	a = position(t, store, "A")
	assert.Equal(t, 100.0, a.X)
	assert.Equal(t, 100.0, a.Y)
	assert.True(t, a.Pinned)

	b := position(t, store, "B")
	after := math.Hypot(b.X-a.X, b.Y-a.Y)
	assert.Less(t, after, before-10)
}

func TestDragKeepsPointerOffset(t *testing.T) {
	_, store, c := newFixture(t)

	_, ok := c.PointerDown(505, 303)
	require.True(t, ok)

	// the press alone does not move the node
	a := position(t, store, "A")
	assert.Equal(t, 500.0, a.X)
	assert.InDelta(t, 300.0, a.Y, 1e-9)

	c.PointerMove(200, 200)
	a = position(t, store, "A")
	assert.InDelta(t, 195.0, a.X, 1e-9)
	assert.InDelta(t, 197.0, a.Y, 1e-9)
	assert.Zero(t, a.VX)
	assert.Zero(t, a.VY)
}

func TestDragClampsToBounds(t *testing.T) {
	_, store, c := newFixture(t)

	c.PointerDown(500, 300)
	c.PointerMove(-50, 900)

	a := position(t, store, "A")
	assert.Equal(t, models.BranchRadius, a.X)
	assert.Equal(t, bounds.Height-models.BranchRadius, a.Y)
}

func TestReleaseUnpinsAndClearsVelocity(t *testing.T) {
	_, store, c := newFixture(t)

	c.PointerDown(500, 300)
	c.PointerMove(300, 150)
	assert.Equal(t, Dragging, c.State("A"))

	act, ok := c.PointerUp()
	assert.False(t, ok)
	assert.Empty(t, act.NodeID)

	a := position(t, store, "A")
	assert.False(t, a.Pinned)
	assert.Zero(t, a.VX)
	assert.Equal(t, Free, c.State("A"))
}

func TestClickActivatesNode(t *testing.T) {
	_, store, c := newFixture(t)

	id, ok := c.PointerDown(600, 300)
	require.True(t, ok)
	require.Equal(t, "B", id)

	act, ok := c.PointerUp()
	require.True(t, ok)
	assert.Equal(t, Activation{NodeID: "B", URL: "/wiki/a/b"}, act)
	assert.False(t, position(t, store, "B").Pinned)
}

func TestPointerWithoutDownIsNoop(t *testing.T) {
	_, store, c := newFixture(t)
	before := store.State()

	c.PointerMove(10, 10)
	act, ok := c.PointerUp()
	c.PointerLeave()

	assert.False(t, ok)
	assert.Equal(t, Activation{}, act)
	assert.Equal(t, before, store.State())
}

func TestPointerDownMiss(t *testing.T) {
	_, _, c := newFixture(t)

	_, ok := c.PointerDown(20, 20)
	assert.False(t, ok)
	_, dragging := c.Dragging()
	assert.False(t, dragging)
}

func TestLeaveReleasesWithoutClick(t *testing.T) {
	_, store, c := newFixture(t)

	c.PointerDown(500, 300)
	c.PointerLeave()

	assert.False(t, position(t, store, "A").Pinned)
	_, ok := c.PointerUp()
	assert.False(t, ok)
}

func TestDownDuringDragReleasesPrevious(t *testing.T) {
	_, store, c := newFixture(t)

	c.PointerDown(500, 300)
	id, ok := c.PointerDown(400, 300)
	require.True(t, ok)
	assert.Equal(t, "root", id)

	assert.False(t, position(t, store, "A").Pinned)
	assert.True(t, position(t, store, "root").Pinned)
	current, _ := c.Dragging()
	assert.Equal(t, "root", current)
}

func TestHitTestPrefersTopmost(t *testing.T) {
	g, store, c := newFixture(t)
	store.Update("B", func(k *physics.Kinematics) { k.X, k.Y = 502, 300 })

	id, ok := c.HitTest(501, 300)
	require.True(t, ok)
	assert.Equal(t, g.Order[len(g.Order)-1], id)
}

func TestNodeStateString(t *testing.T) {
	assert.Equal(t, "free", Free.String())
	assert.Equal(t, "dragging", Dragging.String())
	assert.Equal(t, "unknown", NodeState(9).String())
}
