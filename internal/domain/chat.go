package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the local conversation history. Messages are
// never modified after they are appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the inbound gateway payload.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatReply is the gateway success payload.
type ChatReply struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Success   bool   `json:"success"`
}

// ErrorReply is the gateway failure payload.
type ErrorReply struct {
	Error string `json:"error"`
}
