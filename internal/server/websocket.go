package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	astar "github.com/pdrpinto/gridastar"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsRequest is a command sent by the browser.
type wsRequest struct {
	Action string `json:"action"` // run, cancel, toggle, snapshot
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
}

// wsMessage is everything the host pushes. Frame carries a snapshot for
// "session_created", "frame", "snapshot" and "finished".
type wsMessage struct {
	Action    string        `json:"action"`
	SessionID string        `json:"sessionId,omitempty"`
	Frame     *snapshotView `json:"frame,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(message wsMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(message)
}

func (s *Server) frame() *snapshotView {
	view := newSnapshotView(s.session.Snapshot(), s.session.DriverConfig())
	return &view
}

// handleWebSocket streams one frame per engine step while an animated run
// is in progress. Closing the socket stops the animation but leaves the
// run itself for the REST endpoints.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	sessionID := uuid.New().String()
	logger := s.logger.With("sessionID", sessionID)
	logger.Info("websocket client connected")

	if err := ws.send(wsMessage{Action: "session_created", SessionID: sessionID, Frame: s.frame()}); err != nil {
		logger.Warn("failed to write websocket message", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	var animations sync.WaitGroup
	defer func() {
		cancel()
		animations.Wait()
	}()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			logger.Info("websocket client disconnected", "error", err.Error())
			return
		}

		switch req.Action {
		case "run":
			animations.Add(1)
			go func() {
				defer animations.Done()
				s.animate(ctx, ws, logger)
			}()
		case "cancel":
			if err := s.session.Cancel(); err != nil && !errors.Is(err, astar.ErrNoOp) {
				_ = ws.send(wsMessage{Action: "error", Error: err.Error()})
			}
		case "toggle":
			if !s.session.ToggleObstacle(req.X, req.Y) {
				_ = ws.send(wsMessage{Action: "rejected", Error: "toggle rejected"})
				continue
			}
			_ = ws.send(wsMessage{Action: "snapshot", Frame: s.frame()})
		case "snapshot":
			_ = ws.send(wsMessage{Action: "snapshot", Frame: s.frame()})
		default:
			_ = ws.send(wsMessage{Action: "error", Error: "unknown action " + req.Action})
		}
	}
}

func (s *Server) animate(ctx context.Context, ws *wsConn, logger *slog.Logger) {
	_, err := s.session.Animate(ctx, func(snapshot astar.Snapshot) {
		view := newSnapshotView(snapshot, s.session.DriverConfig())
		if err := ws.send(wsMessage{Action: "frame", Frame: &view}); err != nil {
			logger.Warn("failed to write websocket frame", "error", err)
		}
	})
	if err != nil {
		if ctx.Err() == nil {
			_ = ws.send(wsMessage{Action: "error", Error: err.Error()})
		}
		return
	}
	_ = ws.send(wsMessage{Action: "finished", Frame: s.frame()})
}
