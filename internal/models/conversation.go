package models

import "time"

// Category classifies a conversation. The set is open: unknown values are
// carried through and rendered with the general style.
type Category string

const (
	CategoryInvestment Category = "investment"
	CategoryRisk       Category = "risk"
	CategoryStrategy   Category = "strategy"
	CategoryGeneral    Category = "general"
	CategoryAnalysis   Category = "analysis"
)

// Categories lists the known categories in display order.
func Categories() []Category {
	return []Category{
		CategoryInvestment,
		CategoryRisk,
		CategoryStrategy,
		CategoryGeneral,
		CategoryAnalysis,
	}
}

type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    Category  `json:"type"`
	IsPinned    bool      `json:"is_pinned"`
	LastMessage string    `json:"last_message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// LastActivity is UpdatedAt, or CreatedAt when the conversation was never updated.
func (c Conversation) LastActivity() time.Time {
	if c.UpdatedAt.IsZero() {
		return c.CreatedAt
	}
	return c.UpdatedAt
}

// CreateConversationRequest is the payload of POST /v1/chat/conversation.
type CreateConversationRequest struct {
	UserID string   `json:"user_id,omitempty"`
	Title  string   `json:"title,omitempty"`
	Type   Category `json:"type,omitempty"`
}

// ConversationList is the body returned by GET /v1/chat/conversations.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
