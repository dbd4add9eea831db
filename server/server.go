// Package server exposes hierarchies over HTTP: static layouts in every
// render format, highlight queries and live websocket sessions that drive a
// mounted view from the browser.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TFMV/topograph/config"
	"github.com/TFMV/topograph/highlight"
	"github.com/TFMV/topograph/ingest"
	"github.com/TFMV/topograph/models"
	"github.com/TFMV/topograph/render"
	"github.com/TFMV/topograph/view"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxUploadBytes bounds hierarchy uploads
const maxUploadBytes = 8 << 20

// Server serves the registry's hierarchies
type Server struct {
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger
	engine   *gin.Engine
}

// New creates a server and registers its routes
func New(cfg *config.Config, registry *Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Server.Sample && !registry.Has(SampleTreeID) {
		_ = registry.Put(SampleTreeID, "Sample site", SampleTree())
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/trees")
	api.GET("", s.handleListTrees)
	api.POST("", s.handleUpload)
	api.GET("/:id", s.handleGetTree)
	api.GET("/:id/layout", s.handleLayout)
	api.GET("/:id/highlight", s.handleHighlight)
	api.GET("/:id/live", s.handleLive)
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", attrs...)
			return
		}
		s.logger.Debug("request", attrs...)
	}
}

// fail writes an error response with a status derived from err
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrTreeNotFound), errors.Is(err, view.ErrScopeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, config.ErrUnknownView),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrNoRoot),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "trees": s.registry.Len()})
}

func (s *Server) handleListTrees(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trees": s.registry.List()})
}

// handleUpload stores a hierarchy posted in the body. The format comes from
// the format query parameter or is detected for JSON.
func (s *Server) handleUpload(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil {
		s.fail(c, badRequest("read body: %v", err))
		return
	}
	if len(data) == 0 {
		s.fail(c, badRequest("empty body"))
		return
	}

	tree, err := ingest.Parse(c.Query("format"), data)
	if err != nil {
		if !errors.Is(err, ingest.ErrUnsupportedFormat) && !errors.Is(err, ingest.ErrNoRoot) {
			err = badRequest("%v", err)
		}
		s.fail(c, err)
		return
	}

	id, err := s.registry.Add(c.Query("name"), tree)
	if err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	s.logger.Info("tree uploaded", "id", id, "nodes", tree.Size())
	c.JSON(http.StatusCreated, gin.H{"id": id, "nodes": tree.Size()})
}

func (s *Server) handleGetTree(c *gin.Context) {
	entry, err := s.registry.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// newView builds a view for the request's tree, view kind and scope
func (s *Server) newView(c *gin.Context, treeID string) (*view.View, error) {
	entry, err := s.registry.Get(treeID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.cfg.View(c.Query("view"))
	if err != nil {
		return nil, err
	}
	cfg.Scope = c.Query("scope")
	return view.New(entry.Tree, cfg)
}

func (s *Server) theme(c *gin.Context) (render.Theme, error) {
	name := c.Query("theme")
	if name == "" {
		name = s.cfg.Layout.Theme
	}
	theme, err := render.ThemeByName(name)
	if err != nil {
		return render.Theme{}, badRequest("%v", err)
	}
	return theme, nil
}

// handleLayout settles a view offline and renders it
func (s *Server) handleLayout(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	renderer, err := render.GetRenderer(format)
	if err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	theme, err := s.theme(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	iterations := s.cfg.Layout.MaxIterations
	if raw := c.Query("iterations"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 10*s.cfg.Layout.MaxIterations {
			s.fail(c, badRequest("invalid iterations: %q", raw))
			return
		}
		iterations = n
	}

	v, err := s.newView(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	v.Settle(iterations, s.cfg.Layout.StableThreshold)
	v.SetFocus(c.Query("focus"))

	opts := render.NewDefaultOptions(format)
	opts.Theme = theme
	out, err := renderer.Render(v.Frame(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType(format), out)
}

func contentType(format string) string {
	switch format {
	case "svg":
		return "image/svg+xml"
	case "json":
		return "application/json; charset=utf-8"
	case "html":
		return "text/html; charset=utf-8"
	case "dot":
		return "text/vnd.graphviz; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

type highlightEdge struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// handleHighlight returns the highlight set of a focal node
func (s *Server) handleHighlight(c *gin.Context) {
	entry, err := s.registry.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	tree := entry.Tree
	if scope := c.Query("scope"); scope != "" {
		sub, ok := models.Subtree(tree, scope)
		if !ok {
			s.fail(c, fmt.Errorf("%w: %s", view.ErrScopeNotFound, scope))
			return
		}
		tree = sub
	}

	g := models.BuildGraph(tree)
	focus := c.Query("focus")
	set := highlight.Compute(g, focus)

	edges := make([]highlightEdge, 0, len(set.EdgeIndices))
	for _, i := range set.EdgeList() {
		edges = append(edges, highlightEdge{Index: i, Source: g.Edges[i].Source, Target: g.Edges[i].Target})
	}
	c.JSON(http.StatusOK, gin.H{
		"focus": focus,
		"nodes": set.NodeList(),
		"edges": edges,
		"path":  highlight.AncestorPath(g, focus),
	})
}

// handleIndex serves the live page for a tree
func (s *Server) handleIndex(c *gin.Context) {
	treeID := c.Query("tree")
	if treeID == "" {
		treeID = SampleTreeID
		if s.registry.Has(DefaultTreeID) {
			treeID = DefaultTreeID
		}
	}

	theme, err := s.theme(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	v, err := s.newView(c, treeID)
	if err != nil {
		s.fail(c, err)
		return
	}

	q := url.Values{}
	q.Set("view", string(v.Config().Kind))
	if scope := c.Query("scope"); scope != "" {
		q.Set("scope", scope)
	}

	opts := render.NewDefaultOptions("html")
	opts.Theme = theme
	opts.Title = "Topograph: " + treeID
	opts.LiveURL = "/api/trees/" + url.PathEscape(treeID) + "/live?" + q.Encode()

	out, err := (&render.HTMLRenderer{}).Render(v.Frame(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType("html"), out)
}
