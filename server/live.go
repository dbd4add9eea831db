package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TFMV/topograph/interaction"
	"github.com/TFMV/topograph/view"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topograph_live_sessions",
		Help: "Number of open live websocket sessions",
	})

	liveFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topograph_live_frames_total",
		Help: "Frames produced for live sessions by outcome",
	}, []string{"outcome"}) // "sent", "dropped"
)

const (
	maxMessageBytes = 4 << 10
	writeTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 << 10,
	WriteBufferSize: 64 << 10,
}

// ClientMessage is a pointer or focus event sent by the page
type ClientMessage struct {
	Type string  `json:"type"` // "down", "move", "up", "leave", "focus"
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	ID   string  `json:"id,omitempty"`
}

// ServerMessage is a frame, an activation or an error sent to the page
type ServerMessage struct {
	Type       string                  `json:"type"` // "session", "frame", "activate", "error"
	Session    string                  `json:"session,omitempty"`
	Frame      *view.Frame             `json:"frame,omitempty"`
	Activation *interaction.Activation `json:"activation,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// handleLive mounts a view for the connection and keeps it running until
// the client goes away. The view is unmounted on every exit path.
func (s *Server) handleLive(c *gin.Context) {
	entry, err := s.registry.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	cfg, err := s.cfg.View(c.Query("view"))
	if err != nil {
		s.fail(c, err)
		return
	}
	cfg.Scope = c.Query("scope")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageBytes)
	// the request read timeout must not end an idle session
	_ = ws.SetReadDeadline(time.Time{})

	sessionID := uuid.New().String()
	logger := s.logger.With("session", sessionID, "tree", entry.ID, "view", cfg.Kind)

	liveSessions.Inc()
	defer liveSessions.Dec()

	sess := newLiveSession(ws, rate.Limit(s.cfg.Server.MaxFPS))
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	m, err := view.Mount(ctx, entry.Tree, cfg, sess.offerFrame, sess.offerActivation, view.WithLogger(logger))
	if err != nil {
		logger.Warn("mount failed", "error", err)
		_ = ws.WriteJSON(ServerMessage{Type: "error", Error: err.Error()})
		return
	}
	defer m.Unmount()

	logger.Info("live session started")
	if err := ws.WriteJSON(ServerMessage{Type: "session", Session: sessionID}); err != nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// a failed write ends the session; closing unblocks the reader
		defer ws.Close()
		return sess.writeLoop(gctx)
	})
	g.Go(func() error {
		return sess.readLoop(gctx, m)
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled), websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		logger.Info("live session ended")
	default:
		logger.Info("live session ended", "reason", err)
	}
}

// liveSession couples one websocket with one mounted view. Frames and
// activations are produced on the view's loop goroutine and consumed by the
// single writer goroutine.
type liveSession struct {
	ws      *websocket.Conn
	limiter *rate.Limiter

	frames      chan view.Frame // holds at most the latest frame
	activations chan interaction.Activation
	replies     chan ServerMessage
}

func newLiveSession(ws *websocket.Conn, fps rate.Limit) *liveSession {
	return &liveSession{
		ws:          ws,
		limiter:     rate.NewLimiter(fps, 1),
		frames:      make(chan view.Frame, 1),
		activations: make(chan interaction.Activation, 16),
		replies:     make(chan ServerMessage, 16),
	}
}

// offerFrame replaces any unsent frame with f. It never blocks the loop.
func (l *liveSession) offerFrame(f view.Frame) {
	select {
	case l.frames <- f:
		return
	default:
	}
	select {
	case <-l.frames:
		liveFrames.WithLabelValues("dropped").Inc()
	default:
	}
	select {
	case l.frames <- f:
	default:
	}
}

func (l *liveSession) offerActivation(a interaction.Activation) {
	select {
	case l.activations <- a:
	default:
	}
}

func (l *liveSession) reply(msg ServerMessage) {
	select {
	case l.replies <- msg:
	default:
	}
}

func (l *liveSession) write(msg ServerMessage) error {
	if err := l.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return l.ws.WriteJSON(msg)
}

// writeLoop is the only goroutine writing to the connection
func (l *liveSession) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = l.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()

		case f := <-l.frames:
			if !l.limiter.Allow() {
				liveFrames.WithLabelValues("dropped").Inc()
				continue
			}
			if err := l.write(ServerMessage{Type: "frame", Frame: &f}); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			liveFrames.WithLabelValues("sent").Inc()

		case a := <-l.activations:
			if err := l.write(ServerMessage{Type: "activate", Activation: &a}); err != nil {
				return fmt.Errorf("write activation: %w", err)
			}

		case msg := <-l.replies:
			if err := l.write(msg); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}
}

// readLoop applies client events to the mounted view
func (l *liveSession) readLoop(ctx context.Context, m *view.Mounted) error {
	for {
		var msg ClientMessage
		if err := l.ws.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var err error
		switch msg.Type {
		case "down":
			err = m.PointerDown(msg.X, msg.Y)
		case "move":
			err = m.PointerMove(msg.X, msg.Y)
		case "up":
			err = m.PointerUp()
		case "leave":
			err = m.PointerLeave()
		case "focus":
			err = m.SetFocus(msg.ID)
		default:
			l.reply(ServerMessage{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)})
			continue
		}
		if err != nil {
			return err
		}
	}
}
