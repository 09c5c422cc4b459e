package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rohitshetty84/multiagent/pkg/api"
	"github.com/rohitshetty84/multiagent/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsRequest is one turn request over the socket.
type wsRequest struct {
	Content    string   `json:"content"`
	ImagePaths []string `json:"image_paths,omitempty"`
}

// sessionWebSocket streams turns over a WebSocket. The agents file is
// picked with the "agent" query parameter; each received message runs
// one turn, and every runtime event goes back as a JSON frame.
func (s *Server) sessionWebSocket(c echo.Context) error {
	ctx := c.Request().Context()

	sess, err := s.sessionManager.GetSession(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, api.Error{Error: "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
	}

	agentKey := c.QueryParam("agent")
	if agentKey == "" {
		return c.JSON(http.StatusBadRequest, api.Error{Error: "agent query parameter is required"})
	}
	rt, err := s.runtimeFor(ctx, agentKey)
	if err != nil {
		return c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket closed unexpectedly", "session_id", sess.ID, "error", err)
			}
			return nil
		}

		sess.AddMessage(userMessage(api.Message{
			Content:    req.Content,
			ImagePaths: req.ImagePaths,
		}))
		s.sessionManager.EnsureTitle(sess)

		for event := range rt.RunStream(ctx, sess) {
			payload, err := json.Marshal(encodeEvent(event))
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return nil
			}
		}

		if err := s.sessionManager.SaveSession(ctx, sess); err != nil {
			slog.Error("Failed to persist session", "session_id", sess.ID, "error", err)
		}
	}
}
