package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn. It is never mutated once appended.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// Label returns the display name used in exports and transcripts.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "AI Assistant"
	default:
		return string(r)
	}
}

// ChatRequest is the payload of POST /chat.
type ChatRequest struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversation_id,omitempty"`
	UserID         string   `json:"user_id,omitempty"`
	Model          string   `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	RiskTolerance  string   `json:"risk_tolerance,omitempty"`
}

// ChatReply is the body returned by POST /chat.
type ChatReply struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// HistoryReply is the body returned by GET /v1/chat/history/{id}.
type HistoryReply struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// SearchReply is the body returned by GET /v1/chat/search.
type SearchReply struct {
	Query         string         `json:"query"`
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
