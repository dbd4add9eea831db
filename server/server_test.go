package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TFMV/topograph/config"
	"github.com/TFMV/topograph/logging"
	"github.com/TFMV/topograph/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()
	registry := NewRegistry()
	return New(config.Default(), registry, logging.Discard()), registry
}

func do(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","trees":1}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSampleTreeIsOptional(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Sample = false
	registry := NewRegistry()
	New(cfg, registry, logging.Discard())
	assert.Equal(t, 0, registry.Len())
}

func TestUploadAndGet(t *testing.T) {
	s, registry := newTestServer(t)

	body := `{"id":"root","label":"Root","children":[{"id":"a","url":"/a"},{"id":"b"}]}`
	w := do(t, s, http.MethodPost, "/api/trees?name=mine", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID    string `json:"id"`
		Nodes int    `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 3, created.Nodes)
	assert.True(t, registry.Has(created.ID))

	w = do(t, s, http.MethodGet, "/api/trees/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var entry Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "mine", entry.Name)
	require.NotNil(t, entry.Tree)
	assert.Equal(t, "root", entry.Tree.ID)
	assert.Len(t, entry.Tree.Children, 2)

	w = do(t, s, http.MethodGet, "/api/trees", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Trees []Entry `json:"trees"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Trees, 2)
	for _, e := range list.Trees {
		assert.Nil(t, e.Tree)
	}
}

func TestUploadCSV(t *testing.T) {
	s, _ := newTestServer(t)

	body := "id,parent,label\nroot,,Root\na,root,A\n"
	w := do(t, s, http.MethodPost, "/api/trees?format=csv", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"nodes":2`)
}

func TestUploadErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"empty body", "/api/trees", ""},
		{"unknown format", "/api/trees?format=xml", "<a/>"},
		{"invalid json", "/api/trees", "{"},
		{"missing root id", "/api/trees", `{"label":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestLayout(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/trees/sample/layout?format=svg&focus=guide&iterations=50", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, 11, strings.Count(w.Body.String(), "<circle"))

	w = do(t, s, http.MethodGet, "/api/trees/sample/layout?view=compact&scope=guide", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Nodes []struct {
			ID string  `json:"id"`
			X  float64 `json:"x"`
			Y  float64 `json:"y"`
		} `json:"nodes"`
		Metadata map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Nodes, 4)
	assert.Equal(t, "guide", out.Nodes[0].ID)
	for _, n := range out.Nodes {
		assert.True(t, n.X >= 0 && n.X <= 300, n.ID)
		assert.True(t, n.Y >= 0 && n.Y <= 300, n.ID)
	}
}

func TestLayoutErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown tree", "/api/trees/nope/layout", http.StatusNotFound},
		{"unknown scope", "/api/trees/sample/layout?scope=nope", http.StatusNotFound},
		{"unknown format", "/api/trees/sample/layout?format=png", http.StatusBadRequest},
		{"unknown theme", "/api/trees/sample/layout?theme=neon", http.StatusBadRequest},
		{"unknown view", "/api/trees/sample/layout?view=huge", http.StatusBadRequest},
		{"bad iterations", "/api/trees/sample/layout?iterations=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHighlight(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/trees/sample/highlight?focus=install", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Focus string   `json:"focus"`
		Nodes []string `json:"nodes"`
		Edges []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"edges"`
		Path []string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "install", out.Focus)
	assert.ElementsMatch(t, []string{"home", "guide", "install"}, out.Nodes)
	require.Len(t, out.Edges, 2)
	for _, e := range out.Edges {
		assert.Contains(t, out.Nodes, e.Source)
		assert.Contains(t, out.Nodes, e.Target)
	}
	assert.Equal(t, []string{"install", "guide", "home"}, out.Path)

	w = do(t, s, http.MethodGet, "/api/trees/sample/highlight?focus=guide&scope=reference", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"nodes":[]`)

	w = do(t, s, http.MethodGet, "/api/trees/sample/highlight?scope=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndexPage(t *testing.T) {
	s, registry := newTestServer(t)

	w := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<canvas")
	assert.Contains(t, w.Body.String(), "/api/trees/sample/live?view=expanded")

	require.NoError(t, registry.Put(DefaultTreeID, "site.json", SampleTree()))
	w = do(t, s, http.MethodGet, "/?view=compact&theme=dark", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/trees/default/live?view=compact")

	w = do(t, s, http.MethodGet, "/?tree=nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// staticTree settles immediately: the children sit at the spring rest
// length from the root and far enough apart not to repel.
func staticTree() *models.TreeNode {
	return &models.TreeNode{ID: "root", Label: "Root", Children: []*models.TreeNode{
		{ID: "a", Label: "A", Level: 1, URL: "/a"},
		{ID: "b", Label: "B", Level: 1},
	}}
}

func dialLive(t *testing.T) (*websocket.Conn, func()) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.MaxFPS = 240
	cfg.Views.Expanded.SeedRadius = cfg.Views.Expanded.Physics.RestLength

	registry := NewRegistry()
	require.NoError(t, registry.Put("static", "static", staticTree()))
	s := New(cfg, registry, logging.Discard())

	ts := httptest.NewServer(s.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/trees/static/live?view=expanded"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

// readUntil reads messages until match accepts one
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerMessage) bool) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestLiveSession(t *testing.T) {
	conn, closeAll := dialLive(t)
	defer closeAll()

	var first ServerMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "session", first.Type)
	assert.NotEmpty(t, first.Session)

	msg := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "frame" })
	require.NotNil(t, msg.Frame)
	require.Len(t, msg.Frame.Nodes, 3)
	a := msg.Frame.Index()["a"]
	assert.InDelta(t, 500.0, a.X, 1)
	assert.InDelta(t, 300.0, a.Y, 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "focus", ID: "a"}))
	msg = readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "frame" && m.Frame.Focus == "a" })
	idx := msg.Frame.Index()
	assert.True(t, idx["a"].Focal)
	assert.True(t, idx["root"].Highlighted)
	assert.False(t, idx["b"].Highlighted)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "down", X: a.X, Y: a.Y}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "up"}))
	msg = readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "activate" })
	require.NotNil(t, msg.Activation)
	assert.Equal(t, "a", msg.Activation.NodeID)
	assert.Equal(t, "/a", msg.Activation.URL)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "zoom"}))
	msg = readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "error" })
	assert.Contains(t, msg.Error, "zoom")
}

func TestLiveUnknownTree(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/trees/nope/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Put("", "x", SampleTree()))
	assert.Error(t, r.Put("x", "x", nil))

	_, err := r.Get("x")
	assert.ErrorIs(t, err, ErrTreeNotFound)

	require.NoError(t, r.Put("x", "", SampleTree()))
	e, err := r.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "x", e.Name)
	assert.Equal(t, 11, e.Nodes)

	id, err := r.Add("other", staticTree())
	require.NoError(t, err)
	assert.NotEqual(t, id, "x")
	assert.Equal(t, 2, r.Len())
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.json")
	writeFile(t, path, `{"id":"root","children":[{"id":"a"}]}`)

	registry := NewRegistry()
	w := NewWatcher(path, DefaultTreeID, registry, 20*time.Millisecond, logging.Discard())
	require.NoError(t, w.Reload(context.Background()))

	e, err := registry.Get(DefaultTreeID)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Nodes)
	assert.Equal(t, "site.json", e.Name)

	// a broken file keeps the previous tree
	writeFile(t, path, `{`)
	assert.Error(t, w.Reload(context.Background()))
	e, err = registry.Get(DefaultTreeID)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Nodes)
}

func TestWatcherPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.json")
	writeFile(t, path, `{"id":"root"}`)

	registry := NewRegistry()
	w := NewWatcher(path, DefaultTreeID, registry, 20*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// rewrite on every attempt since the watch is added asynchronously
	updated := `{"id":"root","children":[{"id":"a"},{"id":"b"}]}`
	assert.Eventually(t, func() bool {
		writeFile(t, path, updated)
		e, err := registry.Get(DefaultTreeID)
		return err == nil && e.Nodes == 3
	}, 5*time.Second, 100*time.Millisecond)

	// unrelated files in the directory are ignored
	writeFile(t, filepath.Join(dir, "other.json"), `{"id":"x"}`)
	time.Sleep(100 * time.Millisecond)
	e, err := registry.Get(DefaultTreeID)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Nodes)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
