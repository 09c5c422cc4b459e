package foundry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Run event types emitted by the agent service.
const (
	EventMessageDelta = "thread.message.delta"
	EventRunCompleted = "thread.run.completed"
	EventRunFailed    = "thread.run.failed"
	EventError        = "error"
	EventDone         = "done"
)

// RunEvent is one server-sent event from a streamed run.
type RunEvent struct {
	Type string
	Data json.RawMessage
}

// DeltaText extracts the text chunk from a message delta event.
func (e *RunEvent) DeltaText() string {
	if e.Type != EventMessageDelta {
		return ""
	}
	var delta struct {
		Delta struct {
			Content []ContentBlock `json:"content"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(e.Data, &delta); err != nil {
		return ""
	}
	var out string
	for _, block := range delta.Delta.Content {
		if block.Type == "text" && block.Text != nil {
			out += block.Text.Value
		}
	}
	return out
}

// FailureError turns a run failure event into an error.
func (e *RunEvent) FailureError() error {
	var run struct {
		LastError *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"last_error"`
	}
	if err := json.Unmarshal(e.Data, &run); err == nil && run.LastError != nil {
		return fmt.Errorf("run failed: %s: %s", run.LastError.Code, run.LastError.Message)
	}
	return fmt.Errorf("run failed")
}

// RunStream reads run events off the wire. Events arrive as SSE
// "event:"/"data:" line pairs separated by blank lines.
type RunStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// NewRunStream wraps an SSE response body. Exposed so fakes can feed
// canned streams to consumers.
func NewRunStream(body io.ReadCloser) *RunStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &RunStream{body: body, scanner: scanner}
}

// Recv returns the next event. It returns io.EOF after the terminal
// "done" event or when the connection closes.
func (s *RunStream) Recv() (*RunEvent, error) {
	var event RunEvent

	for s.scanner.Scan() {
		line := s.scanner.Text()

		switch {
		case strings.HasPrefix(line, "event:"):
			event.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != nil {
				// Multi-line data payloads are concatenated.
				event.Data = append(event.Data, '\n')
			}
			event.Data = append(event.Data, data...)

		case line == "":
			if event.Type == "" && event.Data == nil {
				continue
			}
			if event.Type == EventDone || string(event.Data) == "[DONE]" {
				return nil, io.EOF
			}
			return &event, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	if event.Type != "" || event.Data != nil {
		if event.Type == EventDone || string(event.Data) == "[DONE]" {
			return nil, io.EOF
		}
		return &event, nil
	}
	return nil, io.EOF
}

func (s *RunStream) Close() error {
	return s.body.Close()
}
