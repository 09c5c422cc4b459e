// Package foundry is a minimal client for the Azure AI Agent Service:
// hosted agents, their threads and streamed runs.
package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

const (
	defaultAPIVersion = "2025-05-01"
	tokenScope        = "https://ai.azure.com/.default"
)

type Client struct {
	endpoint   string
	apiVersion string
	apiKey     string
	credential azcore.TokenCredential
	httpClient *http.Client
}

type Option func(*Client)

// WithTokenCredential authenticates with Azure Entra ID, e.g. a
// DefaultAzureCredential.
func WithTokenCredential(credential azcore.TokenCredential) Option {
	return func(c *Client) {
		c.credential = credential
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = version
	}
}

func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("agent service endpoint is required")
	}

	c := &Client{
		endpoint:   endpoint,
		apiVersion: defaultAPIVersion,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.credential == nil && c.apiKey == "" {
		return nil, fmt.Errorf("either a token credential or an API key is required")
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	url := c.endpoint + path + "?api-version=" + c.apiVersion
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.credential != nil {
		token, err := c.credential.GetToken(ctx, policy.TokenRequestOptions{
			Scopes: []string{tokenScope},
		})
		if err != nil {
			return nil, fmt.Errorf("get azure token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token.Token)
	} else {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}
	return resp, nil
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = string(body)
	}
	return &ServiceError{
		StatusCode: resp.StatusCode,
		Code:       apiErr.Error.Code,
		Message:    msg,
	}
}

// ServiceError is a non-2xx response from the agent service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("agent service error (status %d): %s", e.StatusCode, e.Message)
}

// CreateThread opens a new conversation thread on the service.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	resp, err := c.do(ctx, http.MethodPost, "/threads", struct{}{})
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	defer resp.Body.Close()

	var thread Thread
	if err := json.NewDecoder(resp.Body).Decode(&thread); err != nil {
		return nil, fmt.Errorf("parsing thread: %w", err)
	}

	slog.Debug("Created hosted thread", "thread_id", thread.ID)
	return &thread, nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/threads/"+threadID, nil)
	if err != nil {
		return fmt.Errorf("deleting thread %s: %w", threadID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.Debug("Deleted hosted thread", "thread_id", threadID)
	return nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (*ThreadMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", map[string]string{
		"role":    role,
		"content": content,
	})
	if err != nil {
		return nil, fmt.Errorf("creating message on thread %s: %w", threadID, err)
	}
	defer resp.Body.Close()

	var msg ThreadMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	return &msg, nil
}

// ListMessages returns the messages on a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) (*MessageList, error) {
	resp, err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("listing messages on thread %s: %w", threadID, err)
	}
	defer resp.Body.Close()

	var list MessageList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("parsing messages: %w", err)
	}
	return &list, nil
}

// StreamRun starts a run of a hosted agent on a thread and streams its
// events. The caller must Close the returned stream.
func (c *Client) StreamRun(ctx context.Context, threadID, agentID string) (*RunStream, error) {
	resp, err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", map[string]any{
		"assistant_id": agentID,
		"stream":       true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting run on thread %s: %w", threadID, err)
	}
	return NewRunStream(resp.Body), nil
}
