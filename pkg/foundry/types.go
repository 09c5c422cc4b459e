package foundry

// Thread is a conversation thread held on the agent service.
type Thread struct {
	ID        string `json:"id"`
	Object    string `json:"object,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// ThreadMessage is one message on a thread. Content comes back as a
// list of typed blocks; text blocks carry the actual value.
type ThreadMessage struct {
	ID      string         `json:"id"`
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type string     `json:"type"`
	Text *TextBlock `json:"text,omitempty"`
}

type TextBlock struct {
	Value string `json:"value"`
}

// Text concatenates the message's text blocks.
func (m *ThreadMessage) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Type == "text" && block.Text != nil {
			out += block.Text.Value
		}
	}
	return out
}

// MessageList is a page of thread messages, newest first.
type MessageList struct {
	Data []ThreadMessage `json:"data"`
}

// LastTextByRole returns the text of the most recent message with the
// given role, or "" when there is none.
func (l *MessageList) LastTextByRole(role string) string {
	for i := range l.Data {
		if l.Data[i].Role == role {
			return l.Data[i].Text()
		}
	}
	return ""
}
