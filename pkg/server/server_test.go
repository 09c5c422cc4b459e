package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohitshetty84/multiagent/pkg/api"
	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/environment"
	"github.com/rohitshetty84/multiagent/pkg/session"
)

func TestServer_ListAgents(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServer(t, ctx, prepareAgentsDir(t, "assistant.yaml", "customer_support.yaml"))

	buf := httpGET(t, ctx, lnPath, "/api/agents")

	var agents []api.Agent
	unmarshal(t, buf, &agents)

	require.Len(t, agents, 2)

	assert.Equal(t, "assistant.yaml", agents[0].Name)
	assert.Equal(t, "General assistant", agents[0].Description)
	assert.False(t, agents[0].Multi)

	assert.Equal(t, "customer_support.yaml", agents[1].Name)
	assert.Equal(t, "Customer support triage", agents[1].Description)
	assert.True(t, agents[1].Multi)
}

func TestServer_EmptyAgentList(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServer(t, ctx, prepareAgentsDir(t))

	buf := httpGET(t, ctx, lnPath, "/api/agents")
	assert.Equal(t, "[]\n", string(buf)) // an empty array, not null
}

func TestServer_SessionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServer(t, ctx, prepareAgentsDir(t, "assistant.yaml"))

	buf := httpGET(t, ctx, lnPath, "/api/sessions")
	var sessions []api.SessionsResponse
	unmarshal(t, buf, &sessions)
	assert.Empty(t, sessions)

	buf = httpDo(t, ctx, http.MethodPost, lnPath, "/api/sessions", api.CreateSessionRequest{MaxIterations: 5})
	var created session.Session
	unmarshal(t, buf, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 5, created.MaxIterations)

	buf = httpGET(t, ctx, lnPath, "/api/sessions")
	unmarshal(t, buf, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, created.ID, sessions[0].ID)
	assert.Equal(t, "root", sessions[0].CurrentAgent)

	buf = httpGET(t, ctx, lnPath, "/api/sessions/"+created.ID)
	var got session.Session
	unmarshal(t, buf, &got)
	assert.Equal(t, created.ID, got.ID)

	httpDo(t, ctx, http.MethodDelete, lnPath, "/api/sessions/"+created.ID, nil)

	buf = httpGET(t, ctx, lnPath, "/api/sessions")
	unmarshal(t, buf, &sessions)
	assert.Empty(t, sessions)
}

func TestServer_RunAgent_StreamsEvents(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServerWithFakeModel(t, ctx)

	buf := httpDo(t, ctx, http.MethodPost, lnPath, "/api/sessions", api.CreateSessionRequest{})
	var sess session.Session
	unmarshal(t, buf, &sess)

	body := httpDo(t, ctx, http.MethodPost, lnPath,
		"/api/sessions/"+sess.ID+"/agent/assistant.yaml",
		[]api.Message{{Content: "say something"}})

	assert.Contains(t, string(body), `"type":"stream_started"`)
	assert.Contains(t, string(body), `"content":"Ahoy!"`)
	assert.Contains(t, string(body), `"type":"stream_stopped"`)

	// The turn is persisted: history and title survive.
	buf = httpGET(t, ctx, lnPath, "/api/sessions/"+sess.ID)
	var updated session.Session
	unmarshal(t, buf, &updated)
	assert.Equal(t, "say something", updated.Title)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, "Ahoy!", updated.Messages[1].Message.Content)
}

func TestServer_WebSocket_StreamsEvents(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServerWithFakeModel(t, ctx)

	buf := httpDo(t, ctx, http.MethodPost, lnPath, "/api/sessions", api.CreateSessionRequest{})
	var sess session.Session
	unmarshal(t, buf, &sess)

	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", strings.TrimPrefix(lnPath, "unix://"))
		},
	}
	conn, resp, err := dialer.DialContext(ctx, "ws://_/api/sessions/"+sess.ID+"/ws?agent=assistant.yaml", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	defer resp.Body.Close()

	require.NoError(t, conn.WriteJSON(wsRequest{Content: "say something"}))

	var types []string
	var content strings.Builder
	for {
		var frame map[string]any
		require.NoError(t, conn.ReadJSON(&frame))

		eventType, _ := frame["type"].(string)
		types = append(types, eventType)
		if eventType == "agent_choice" {
			text, _ := frame["content"].(string)
			content.WriteString(text)
		}
		if eventType == "stream_stopped" {
			break
		}
	}

	assert.Equal(t, "stream_started", types[0])
	assert.Equal(t, "Ahoy!", content.String())

	// The session is persisted right after the last frame.
	assert.Eventually(t, func() bool {
		buf := httpGET(t, ctx, lnPath, "/api/sessions/"+sess.ID)
		var updated session.Session
		unmarshal(t, buf, &updated)
		return updated.Title == "say something" && len(updated.Messages) == 2
	}, 2*time.Second, 50*time.Millisecond)
}

func TestServer_WebSocket_RequiresAgent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServerWithFakeModel(t, ctx)

	buf := httpDo(t, ctx, http.MethodPost, lnPath, "/api/sessions", api.CreateSessionRequest{})
	var sess session.Session
	unmarshal(t, buf, &sess)

	resp := httpDoRaw(t, ctx, http.MethodGet, lnPath, "/api/sessions/"+sess.ID+"/ws", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RunAgent_UnknownAgent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServer(t, ctx, prepareAgentsDir(t, "assistant.yaml"))

	buf := httpDo(t, ctx, http.MethodPost, lnPath, "/api/sessions", api.CreateSessionRequest{})
	var sess session.Session
	unmarshal(t, buf, &sess)

	resp := httpDoRaw(t, ctx, http.MethodPost, lnPath,
		"/api/sessions/"+sess.ID+"/agent/ghost.yaml",
		[]api.Message{{Content: "hi"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	lnPath := startServer(t, ctx, prepareAgentsDir(t))

	buf := httpGET(t, ctx, lnPath, "/metrics")
	assert.Contains(t, string(buf), "go_goroutines")
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	plain := userMessage(api.Message{Content: "hello"})
	assert.Equal(t, "hello", plain.Content)
	assert.Empty(t, plain.MultiContent)

	withImage := userMessage(api.Message{
		Content:    "here is my ID",
		ImagePaths: []string{"/tmp/id.png"},
	})
	assert.Equal(t, "here is my ID\n[uploaded image] /tmp/id.png", withImage.Content)
	require.Len(t, withImage.MultiContent, 2)
	assert.Equal(t, chat.MessagePartTypeText, withImage.MultiContent[0].Type)
	assert.Equal(t, withImage.Content, withImage.MultiContent[0].Text)
	assert.Equal(t, chat.MessagePartTypeImageURL, withImage.MultiContent[1].Type)
	assert.Equal(t, "/tmp/id.png", withImage.MultiContent[1].ImageURL.URL)
}

func prepareAgentsDir(t *testing.T, testFiles ...string) string {
	t.Helper()

	agentsDir := filepath.Join(t.TempDir(), "agents")
	require.NoError(t, os.MkdirAll(agentsDir, 0o700))

	for _, file := range testFiles {
		buf, err := os.ReadFile(filepath.Join("testdata", file))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(agentsDir, filepath.Base(file)), buf, 0o600))
	}

	return agentsDir
}

func startServer(t *testing.T, ctx context.Context, agentsDir string) string {
	t.Helper()

	sources, err := config.ResolveSources(agentsDir)
	require.NoError(t, err)
	return startServerWithSources(t, ctx, sources)
}

// startServerWithFakeModel serves one agents file whose model is a fake
// OpenAI-compatible endpoint streaming "Ahoy!".
func startServerWithFakeModel(t *testing.T, ctx context.Context) string {
	t.Helper()

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"Ahoy!"}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":2}}`+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(model.Close)

	agentsFile := fmt.Sprintf(`
agents:
  root:
    instruction: You are a helpful assistant.
    model: test

models:
  test:
    provider: openai
    model: gpt-4o
    base_url: %s
`, model.URL)

	sources := config.Sources{
		"assistant.yaml": config.NewBytesSource("assistant.yaml", []byte(agentsFile)),
	}
	return startServerWithSources(t, ctx, sources)
}

func startServerWithSources(t *testing.T, ctx context.Context, sources config.Sources) string {
	t.Helper()

	store := session.NewInMemorySessionStore()
	runConfig := &config.RuntimeConfig{
		DefaultEnvProvider: environment.NewMapProvider(map[string]string{
			"OPENAI_API_KEY": "dummy",
		}),
	}

	srv, err := New(store, runConfig, sources)
	require.NoError(t, err)

	socketPath := "unix://" + filepath.Join(t.TempDir(), "sock")
	ln, err := Listen(ctx, socketPath)
	require.NoError(t, err)
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		_ = srv.Serve(ctx, ln)
	}()

	return socketPath
}

func httpGET(t *testing.T, ctx context.Context, socketPath, path string) []byte {
	t.Helper()
	return httpDo(t, ctx, http.MethodGet, socketPath, path, nil)
}

func httpDo(t *testing.T, ctx context.Context, method, socketPath, path string, payload any) []byte {
	t.Helper()

	resp := httpDoRaw(t, ctx, method, socketPath, path, payload)
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Less(t, resp.StatusCode, 400, string(buf))
	return buf
}

func httpDoRaw(t *testing.T, ctx context.Context, method, socketPath, path string, payload any) *http.Response {
	t.Helper()

	var (
		body        io.Reader
		contentType string
	)
	switch v := payload.(type) {
	case nil:
		body = http.NoBody
	case []byte:
		body = bytes.NewReader(v)
	case string:
		body = strings.NewReader(v)
	default:
		buf, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://_"+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", strings.TrimPrefix(socketPath, "unix://"))
			},
		},
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func unmarshal(t *testing.T, buf []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(buf, v))
}
