package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TFMV/topograph/models"
	"github.com/google/uuid"
)

// ErrTreeNotFound is returned for unknown hierarchy ids
var ErrTreeNotFound = errors.New("server: tree not found")

const (
	// DefaultTreeID names the hierarchy loaded from the data file
	DefaultTreeID = "default"
	// SampleTreeID names the built-in demo hierarchy
	SampleTreeID = "sample"
)

// Entry is one stored hierarchy. Trees are never mutated after they are
// stored; a reload replaces the entry, so views mounted earlier keep the
// tree they were built from.
type Entry struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Nodes   int              `json:"nodes"`
	Updated time.Time        `json:"updated"`
	Tree    *models.TreeNode `json:"tree,omitempty"`
}

// Registry holds hierarchies by id
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Put stores a tree under id, replacing any previous entry
func (r *Registry) Put(id, name string, tree *models.TreeNode) error {
	if id == "" {
		return fmt.Errorf("empty tree id")
	}
	if tree == nil {
		return fmt.Errorf("nil tree for %s", id)
	}
	if name == "" {
		name = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &Entry{
		ID:      id,
		Name:    name,
		Nodes:   tree.Size(),
		Updated: time.Now(),
		Tree:    tree,
	}
	return nil
}

// Add stores a tree under a fresh id and returns the id
func (r *Registry) Add(name string, tree *models.TreeNode) (string, error) {
	id := uuid.New().String()
	if err := r.Put(id, name, tree); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the entry for id
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrTreeNotFound, id)
	}
	return *e, nil
}

// Has reports whether id is stored
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// List returns all entries without their trees, sorted by id
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		summary := *e
		summary.Tree = nil
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of stored trees
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
