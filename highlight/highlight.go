// Package highlight computes which nodes and edges to emphasize for a focal
// node: the node itself, everything it reaches and everything reaching it.
package highlight

import (
	"sort"
	"time"

	"github.com/TFMV/topograph/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// computeDuration tracks highlight computation latency
	computeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "topograph_highlight_duration_seconds",
		Help:    "Highlight set computation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~260ms
	})

	// computeTotal counts computations by focal kind
	computeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topograph_highlight_total",
		Help: "Total highlight computations by focal kind",
	}, []string{"focal"}) // "none", "root", "node", "unknown"
)

// Set is the group of nodes and edges emphasized for one focal node. It is
// recomputed on every focal change and never stored.
type Set struct {
	NodeIDs     map[string]struct{}
	EdgeIndices map[int]struct{}
}

// Empty returns a set with nothing emphasized
func Empty() Set {
	return Set{
		NodeIDs:     map[string]struct{}{},
		EdgeIndices: map[int]struct{}{},
	}
}

// HasNode reports whether the node is emphasized
func (s Set) HasNode(id string) bool {
	_, ok := s.NodeIDs[id]
	return ok
}

// HasEdge reports whether the edge at index i is emphasized
func (s Set) HasEdge(i int) bool {
	_, ok := s.EdgeIndices[i]
	return ok
}

// IsEmpty reports whether nothing is emphasized
func (s Set) IsEmpty() bool {
	return len(s.NodeIDs) == 0 && len(s.EdgeIndices) == 0
}

// NodeList returns the emphasized node ids in sorted order
func (s Set) NodeList() []string {
	out := make([]string, 0, len(s.NodeIDs))
	for id := range s.NodeIDs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EdgeList returns the emphasized edge indices in ascending order
func (s Set) EdgeList() []int {
	out := make([]int, 0, len(s.EdgeIndices))
	for i := range s.EdgeIndices {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Compute returns the highlight set of a focal node. An empty focal id
// emphasizes nothing and the root emphasizes the whole graph. For any other
// node the set holds its descendants, its ancestors and itself, plus every
// edge with both endpoints in that group. Unknown ids emphasize nothing.
func Compute(g *models.Graph, focal string) Set {
	start := time.Now()
	defer func() {
		computeDuration.Observe(time.Since(start).Seconds())
	}()

	set := Empty()
	switch {
	case focal == "":
		computeTotal.WithLabelValues("none").Inc()
		return set
	case focal == g.RootID:
		computeTotal.WithLabelValues("root").Inc()
		for id := range g.Nodes {
			set.NodeIDs[id] = struct{}{}
		}
		for i := range g.Edges {
			set.EdgeIndices[i] = struct{}{}
		}
		return set
	}
	if _, ok := g.Nodes[focal]; !ok {
		computeTotal.WithLabelValues("unknown").Inc()
		return set
	}
	computeTotal.WithLabelValues("node").Inc()

	forward := make(map[string][]string)
	reverse := make(map[string][]string)
	for _, e := range g.Edges {
		forward[e.Source] = append(forward[e.Source], e.Target)
		reverse[e.Target] = append(reverse[e.Target], e.Source)
	}

	set.NodeIDs[focal] = struct{}{}
	collect(forward, focal, set.NodeIDs, map[string]bool{})
	collect(reverse, focal, set.NodeIDs, map[string]bool{})

	for i, e := range g.Edges {
		if set.HasNode(e.Source) && set.HasNode(e.Target) {
			set.EdgeIndices[i] = struct{}{}
		}
	}
	return set
}

// collect adds every node reachable from id through adj. Nodes are marked
// visited before their neighbors are expanded, so cycles terminate.
func collect(adj map[string][]string, id string, out map[string]struct{}, visited map[string]bool) {
	visited[id] = true
	for _, next := range adj[id] {
		if visited[next] {
			continue
		}
		out[next] = struct{}{}
		collect(adj, next, out, visited)
	}
}

// AncestorPath returns the parent chain from id up to the root, id first.
// On a tree this equals the ancestor half of Compute.
func AncestorPath(g *models.Graph, id string) []string {
	if _, ok := g.Nodes[id]; !ok {
		return nil
	}
	parent := make(map[string]string, len(g.Edges))
	for _, e := range g.Edges {
		if _, seen := parent[e.Target]; !seen {
			parent[e.Target] = e.Source
		}
	}

	path := []string{id}
	seen := map[string]bool{id: true}
	for {
		p, ok := parent[path[len(path)-1]]
		if !ok || seen[p] {
			return path
		}
		seen[p] = true
		path = append(path, p)
	}
}
