package chat

import "time"

// Turn is one message of a conversation as sent by the client.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a retrieved passage offered to the model as grounding.
type Source struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Text   string `json:"text,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Context carries optional grounding for a reply.
type Context struct {
	Sources []Source `json:"sources,omitempty"`
	Lesson  string   `json:"lesson,omitempty"`
}

// Request asks for the next assistant turn.
type Request struct {
	SessionID string  `json:"session_id,omitempty"`
	Messages  []Turn  `json:"messages"`
	Context   Context `json:"context"`
}

// Reply is the assistant's answer.
type Reply struct {
	Answer     string `json:"answer"`
	HTML       string `json:"html,omitempty"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokensUsed"`
	SessionID  string `json:"session_id,omitempty"`
}

// Session is a persisted conversation.
type Session struct {
	ID        string    `json:"id"`
	Lesson    string    `json:"lesson"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is one persisted turn of a session.
type StoredMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
