// Package server exposes the agent teams over HTTP: agents listing,
// session management, streamed turns over SSE and WebSocket, and
// Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rohitshetty84/multiagent/pkg/api"
	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/metrics"
	"github.com/rohitshetty84/multiagent/pkg/runtime"
	"github.com/rohitshetty84/multiagent/pkg/session"
	"github.com/rohitshetty84/multiagent/pkg/teamloader"
)

type Server struct {
	echo           *echo.Echo
	sessionManager *SessionManager
	runConfig      *config.RuntimeConfig
	sources        config.Sources
	recorder       metrics.Recorder

	teamsMu sync.RWMutex
	teams   map[string]*teamloader.Result
}

type Opt func(*Server)

// WithRecorder overrides the metrics recorder; the default is a no-op.
func WithRecorder(recorder metrics.Recorder) Opt {
	return func(s *Server) {
		s.recorder = recorder
	}
}

func New(store session.Store, runConfig *config.RuntimeConfig, sources config.Sources, opts ...Opt) (*Server, error) {
	s := &Server{
		sessionManager: NewSessionManager(store),
		runConfig:      runConfig,
		sources:        sources,
		recorder:       metrics.NopRecorder{},
		teams:          make(map[string]*teamloader.Result),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	e.GET("/api/agents", s.listAgents)
	e.GET("/api/sessions", s.listSessions)
	e.POST("/api/sessions", s.createSession)
	e.GET("/api/sessions/:id", s.getSession)
	e.DELETE("/api/sessions/:id", s.deleteSession)
	e.POST("/api/sessions/:id/agent/*", s.runAgent)
	e.GET("/api/sessions/:id/ws", s.sessionWebSocket)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo = e
	return s, nil
}

// Serve runs the HTTP server on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// InvalidateTeams drops the team cache, e.g. after the agents directory
// changed on disk.
func (s *Server) InvalidateTeams(ctx context.Context) {
	s.teamsMu.Lock()
	teams := s.teams
	s.teams = make(map[string]*teamloader.Result)
	s.teamsMu.Unlock()

	for key, result := range teams {
		if err := result.Team.StopToolSets(ctx); err != nil {
			slog.Warn("Failed to stop toolsets", "agent", key, "error", err)
		}
	}
	slog.Info("Reloaded agent teams", "count", len(teams))
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("HTTP request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	})
}

func (s *Server) listAgents(c echo.Context) error {
	ctx := c.Request().Context()

	agents := []api.Agent{}
	for _, key := range s.sources.Keys() {
		source, _ := s.sources.Lookup(key)
		data, err := source.Read(ctx)
		if err != nil {
			slog.Warn("Failed to read agents file", "key", key, "error", err)
			continue
		}
		cfg, err := config.Parse(data)
		if err != nil {
			slog.Warn("Skipping invalid agents file", "key", key, "error", err)
			continue
		}

		agents = append(agents, api.Agent{
			Name:        key,
			Description: cfg.RootDescription(),
			Multi:       cfg.Multi(),
		})
	}

	return c.JSON(http.StatusOK, agents)
}

func (s *Server) listSessions(c echo.Context) error {
	sessions, err := s.sessionManager.ListSessions(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
	}

	out := []api.SessionsResponse{}
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return c.JSON(http.StatusOK, out)
}

func (s *Server) createSession(c echo.Context) error {
	var req api.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
	}

	sess, err := s.sessionManager.CreateSession(c.Request().Context(), &req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, sess)
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.sessionManager.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, api.Error{Error: "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) deleteSession(c echo.Context) error {
	err := s.sessionManager.DeleteSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, api.Error{Error: "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// runAgent runs one turn against the agents file named by the wildcard
// path and streams the events back as SSE.
func (s *Server) runAgent(c echo.Context) error {
	ctx := c.Request().Context()

	sess, err := s.sessionManager.GetSession(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, api.Error{Error: "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
	}

	var messages []api.Message
	if err := c.Bind(&messages); err != nil {
		return c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
	}
	if len(messages) == 0 {
		return c.JSON(http.StatusBadRequest, api.Error{Error: "at least one message is required"})
	}

	rt, err := s.runtimeFor(ctx, c.Param("*"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
	}

	for _, msg := range messages {
		sess.AddMessage(userMessage(msg))
	}
	s.sessionManager.EnsureTitle(sess)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)

	for event := range rt.RunStream(ctx, sess) {
		payload, err := json.Marshal(encodeEvent(event))
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
			break
		}
		resp.Flush()
	}

	if err := s.sessionManager.SaveSession(ctx, sess); err != nil {
		slog.Error("Failed to persist session", "session_id", sess.ID, "error", err)
	}
	return nil
}

// runtimeFor builds a runtime for one agents file, loading and caching
// its team on first use.
func (s *Server) runtimeFor(ctx context.Context, sourceKey string) (runtime.Runtime, error) {
	key := strings.TrimPrefix(sourceKey, "/")

	s.teamsMu.RLock()
	result, ok := s.teams[key]
	s.teamsMu.RUnlock()

	if !ok {
		source, found := s.sources.Lookup(key)
		if !found {
			return nil, fmt.Errorf("unknown agent %q", key)
		}
		data, err := source.Read(ctx)
		if err != nil {
			return nil, err
		}
		cfg, err := config.Parse(data)
		if err != nil {
			return nil, err
		}
		result, err = teamloader.Load(ctx, cfg, s.runConfig)
		if err != nil {
			return nil, err
		}
		if err := result.Team.StartToolSets(ctx); err != nil {
			return nil, err
		}

		s.teamsMu.Lock()
		s.teams[key] = result
		s.teamsMu.Unlock()
	}

	opts := []runtime.Opt{runtime.WithRecorder(s.recorder)}
	if result.AgentService != nil {
		opts = append(opts, runtime.WithThreadStore(result.AgentService))
	}
	return runtime.New(result.Team, opts...)
}

// userMessage builds the history entry for one API message. Uploaded
// image paths are folded into the content the way the account agent
// expects them, and mirrored as image parts for vision-capable models.
func userMessage(msg api.Message) *session.Message {
	content := msg.Content
	var parts []chat.MessagePart
	if len(msg.ImagePaths) > 0 {
		for _, path := range msg.ImagePaths {
			content += "\n[uploaded image] " + path
		}
		parts = append(parts, chat.MessagePart{Type: chat.MessagePartTypeText, Text: content})
		for _, path := range msg.ImagePaths {
			parts = append(parts, chat.MessagePart{
				Type:     chat.MessagePartTypeImageURL,
				ImageURL: &chat.ImageURL{URL: path},
			})
		}
	}
	return session.UserMessage(content, parts...)
}

func toSessionResponse(sess *session.Session) api.SessionsResponse {
	return api.SessionsResponse{
		ID:           sess.ID,
		Title:        sess.Title,
		CurrentAgent: sess.AgentName(),
		NumMessages:  len(sess.Messages),
		InputTokens:  sess.InputTokens,
		OutputTokens: sess.OutputTokens,
		CreatedAt:    sess.CreatedAt,
	}
}

// encodeEvent flattens a runtime event into a typed JSON envelope.
func encodeEvent(event runtime.Event) map[string]any {
	switch e := event.(type) {
	case runtime.StreamStartedEvent:
		return map[string]any{"type": "stream_started", "session_id": e.SessionID}
	case runtime.AgentSwitchEvent:
		return map[string]any{"type": "agent_switch", "agent": e.AgentName}
	case runtime.AgentChoiceEvent:
		return map[string]any{"type": "agent_choice", "agent": e.AgentName, "content": e.Content}
	case runtime.PartialToolCallEvent:
		return map[string]any{"type": "partial_tool_call", "agent": e.AgentName, "tool_call": e.ToolCall}
	case runtime.ToolCallEvent:
		return map[string]any{"type": "tool_call", "agent": e.AgentName, "tool_call": e.ToolCall}
	case runtime.ToolCallResponseEvent:
		return map[string]any{"type": "tool_call_response", "agent": e.AgentName, "response": e.Response, "is_error": e.IsError}
	case runtime.AgentHandoffEvent:
		return map[string]any{"type": "agent_handoff", "from_agent": e.FromAgent, "to_agent": e.ToAgent}
	case runtime.UsageEvent:
		return map[string]any{"type": "usage", "agent": e.AgentName, "input_tokens": e.InputTokens, "output_tokens": e.OutputTokens}
	case runtime.ErrorEvent:
		// Clients show the apology, never the raw error.
		return map[string]any{"type": "error", "error": e.Error, "message": chat.ErrorApology}
	case runtime.StreamStoppedEvent:
		return map[string]any{"type": "stream_stopped", "session_id": e.SessionID}
	default:
		return map[string]any{"type": "unknown"}
	}
}
