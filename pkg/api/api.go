// Package api defines the wire types of the HTTP API.
package api

import "time"

// Agent describes one loadable agents file.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Multi       bool   `json:"multi"`
}

// SessionsResponse is a session summary for listings.
type SessionsResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CurrentAgent string    `json:"current_agent"`
	NumMessages  int       `json:"num_messages"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateSessionRequest customizes a new session.
type CreateSessionRequest struct {
	Title         string `json:"title,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// Message is one user input in a turn request.
type Message struct {
	Content string `json:"content"`
	// ImagePaths are appended to the content as uploaded attachments.
	ImagePaths []string `json:"image_paths,omitempty"`
}

// Error is the JSON error envelope.
type Error struct {
	Error string `json:"error"`
}
