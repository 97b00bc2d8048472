package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dyike/QuantPilot/internal/models"
)

const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 20
)

type ChatAPI struct{ c *Client }

// Send posts a message to the assistant. It runs under the client-wide
// timeout, which is sized for model latency.
func (a *ChatAPI) Send(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &ValidationError{Field: "message", Message: "message is required"}
	}
	if req.UserID == "" {
		req.UserID = a.c.UserID()
	}
	var out models.ChatReply
	if err := a.c.do(ctx, call{method: http.MethodPost, path: "/chat", body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *ChatAPI) CreateConversation(ctx context.Context, title string, category models.Category) (*models.Conversation, error) {
	req := models.CreateConversationRequest{
		UserID: a.c.UserID(),
		Title:  title,
		Type:   category,
	}
	var out models.Conversation
	err := a.c.do(ctx, call{method: http.MethodPost, path: "/v1/chat/conversation", body: req, out: &out})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type ListOptions struct {
	UserID string
	Limit  int
	Offset int
}

func (a *ChatAPI) ListConversations(ctx context.Context, opts ListOptions) (*models.ConversationList, error) {
	var out models.ConversationList
	if err := a.c.get(ctx, "/v1/chat/conversations", a.listQuery(opts), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *ChatAPI) History(ctx context.Context, conversationID string) (*models.HistoryReply, error) {
	var out models.HistoryReply
	err := a.c.do(ctx, call{
		method: http.MethodGet,
		path:   "/v1/chat/history/{id}",
		params: map[string]string{"id": conversationID},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *ChatAPI) DeleteConversation(ctx context.Context, conversationID string) error {
	return a.c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/v1/chat/conversation/{id}",
		params: map[string]string{"id": conversationID},
	})
}

func (a *ChatAPI) Search(ctx context.Context, query string, limit int) (*models.SearchReply, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	var out models.SearchReply
	err := a.c.get(ctx, "/v1/chat/search", map[string]string{
		"query":   query,
		"user_id": a.c.UserID(),
		"limit":   strconv.Itoa(limit),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *ChatAPI) listQuery(opts ListOptions) map[string]string {
	if opts.UserID == "" {
		opts.UserID = a.c.UserID()
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	q := map[string]string{
		"user_id": opts.UserID,
		"limit":   strconv.Itoa(opts.Limit),
	}
	if opts.Offset > 0 {
		q["offset"] = strconv.Itoa(opts.Offset)
	}
	return q
}
