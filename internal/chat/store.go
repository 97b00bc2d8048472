// Package chat holds the assistant conversation state: the conversation
// list, the active conversation and its messages, and the in-flight flag.
//
// Network calls run without the lock held. Every change of the active
// conversation bumps a sequence number, and a reply is applied only if the
// sequence and conversation it was issued under are still current.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/internal/api"
	"github.com/dyike/QuantPilot/internal/conversation"
	"github.com/dyike/QuantPilot/internal/markdown"
	"github.com/dyike/QuantPilot/internal/models"
	"github.com/dyike/QuantPilot/internal/settings"
)

var (
	ErrBusy                 = errors.New("a message is already being sent")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrNotFound             = errors.New("conversation not found")
	ErrEmptyTitle           = errors.New("title is empty")
	// ErrDiscarded is returned when a reply arrives after the user moved to
	// another conversation. The exchange is still recorded.
	ErrDiscarded = errors.New("reply discarded, conversation changed")
)

// PreviewLength bounds the last-message preview shown in the list.
const PreviewLength = 50

// Backend is the conversation half of the API client.
type Backend interface {
	Send(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error)
	CreateConversation(ctx context.Context, title string, category models.Category) (*models.Conversation, error)
	ListConversations(ctx context.Context, opts api.ListOptions) (*models.ConversationList, error)
	History(ctx context.Context, conversationID string) (*models.HistoryReply, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	Search(ctx context.Context, query string, limit int) (*models.SearchReply, error)
}

// Recorder receives every local change. storage.Mirror and the sqlite
// store implement it.
type Recorder interface {
	SaveConversation(ctx context.Context, conv models.Conversation) error
	SaveMessage(ctx context.Context, msg models.Message) error
	SetPinned(ctx context.Context, conversationID string, pinned bool) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

type Renderer interface {
	Render(text string) string
	Preview(text string, maxRunes int) string
}

type Copier interface {
	Copy(text string) bool
}

type Store struct {
	backend   Backend
	favorites FavoritesBackend
	recorder  Recorder
	settings  *settings.Editor
	renderer  Renderer
	clip      Copier
	exportDir string
	logger    *zap.Logger
	now       func() time.Time

	mu            sync.Mutex
	conversations []models.Conversation
	activeID      string
	messages      []models.Message
	loading       bool
	seq           uint64
	listSeq       uint64
	// Pins and renames have no backend endpoint; they are kept here and
	// re-applied whenever the list is reloaded.
	pins   map[string]bool
	titles map[string]string
	// Conversations deleted this session; late replies for them are not
	// recorded.
	deleted map[string]bool
}

type Option func(*Store)

func WithFavorites(f FavoritesBackend) Option { return func(s *Store) { s.favorites = f } }
func WithRecorder(r Recorder) Option          { return func(s *Store) { s.recorder = r } }
func WithSettings(e *settings.Editor) Option  { return func(s *Store) { s.settings = e } }
func WithRenderer(r Renderer) Option          { return func(s *Store) { s.renderer = r } }
func WithClipboard(c Copier) Option           { return func(s *Store) { s.clip = c } }
func WithExportDir(dir string) Option         { return func(s *Store) { s.exportDir = dir } }
func WithClock(now func() time.Time) Option   { return func(s *Store) { s.now = now } }

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  zap.NewNop(),
		now:     time.Now,
		pins:    make(map[string]bool),
		titles:  make(map[string]string),
		deleted: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.settings == nil {
		s.settings, _ = settings.NewEditor(nil)
	}
	if s.renderer == nil {
		s.renderer = markdown.NewRenderer()
	}
	return s
}

func (s *Store) Settings() *settings.Editor { return s.settings }

func (s *Store) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Conversation(nil), s.conversations...)
}

// Active returns the active conversation, if any.
func (s *Store) Active() (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(s.activeID); i >= 0 {
		return s.conversations[i], true
	}
	return models.Conversation{}, false
}

func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Filtered applies the list filter to the current conversations.
func (s *Store) Filtered(query string, kind conversation.FilterKind) []models.Conversation {
	return conversation.Filter(s.Conversations(), query, kind, s.now())
}

// LoadConversations replaces the list with the backend's copy. A load
// overtaken by a newer one is dropped.
func (s *Store) LoadConversations(ctx context.Context) error {
	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	list, err := s.backend.ListConversations(ctx, api.ListOptions{})
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	s.mu.Lock()
	if seq != s.listSeq {
		s.mu.Unlock()
		return nil
	}
	convs := make([]models.Conversation, 0, len(list.Conversations))
	for _, c := range list.Conversations {
		convs = append(convs, s.applyLocal(c))
	}
	s.conversations = convs
	s.mu.Unlock()

	for _, c := range convs {
		s.record(func(r Recorder) error { return r.SaveConversation(ctx, c) })
	}
	return nil
}

// NewConversation creates a conversation and makes it active.
func (s *Store) NewConversation(ctx context.Context, category models.Category) (models.Conversation, error) {
	if category == "" {
		category = models.CategoryGeneral
	}
	created, err := s.backend.CreateConversation(ctx, conversation.FallbackTitle, category)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	conv := *created
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Title == "" {
		conv.Title = conversation.FallbackTitle
	}
	if conv.Category == "" {
		conv.Category = category
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.conversations = append([]models.Conversation{conv}, s.conversations...)
	s.switchTo(conv.ID)
	s.mu.Unlock()

	s.record(func(r Recorder) error { return r.SaveConversation(ctx, conv) })
	return conv, nil
}

// Select makes id active and loads its history.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.switchTo(id)
	seq := s.seq
	s.mu.Unlock()

	hist, err := s.backend.History(ctx, id)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq || id != s.activeID {
		return ErrDiscarded
	}
	msgs := make([]models.Message, 0, len(hist.Messages))
	for _, m := range hist.Messages {
		if m.ConversationID == "" {
			m.ConversationID = id
		}
		msgs = append(msgs, m)
	}
	s.messages = msgs
	return nil
}

// Send posts content to the active conversation and returns the assistant
// reply.
func (s *Store) Send(ctx context.Context, content string) (*models.Message, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if strings.TrimSpace(content) == "" {
		s.mu.Unlock()
		return nil, ErrEmptyMessage
	}
	idx := s.indexOf(s.activeID)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNoActiveConversation
	}

	convID := s.activeID
	userMsg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           models.RoleUser,
		Content:        content,
		Timestamp:      s.now(),
	}
	firstMessage := len(s.messages) == 0
	s.messages = append(s.messages, userMsg)

	conv := &s.conversations[idx]
	if firstMessage && conv.Title == conversation.FallbackTitle {
		conv.Title = conversation.ExtractTitle(content, conversation.DefaultTitleLength)
	}
	conv.LastMessage = s.renderer.Preview(content, PreviewLength)
	conv.UpdatedAt = userMsg.Timestamp
	snapshot := *conv

	s.loading = true
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.record(func(r Recorder) error { return r.SaveConversation(ctx, snapshot) })
	s.record(func(r Recorder) error { return r.SaveMessage(ctx, userMsg) })

	ai := s.settings.Current()
	temp := ai.Temperature
	reply, err := s.backend.Send(ctx, models.ChatRequest{
		Message:        content,
		ConversationID: convID,
		Model:          ai.Model,
		Temperature:    &temp,
		RiskTolerance:  string(ai.RiskTolerance),
	})

	s.mu.Lock()
	current := seq == s.seq && convID == s.activeID
	if current {
		s.loading = false
	}
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("send message: %w", err)
	}

	assistant := models.Message{
		ID:             reply.MessageID,
		ConversationID: convID,
		Role:           models.RoleAssistant,
		Content:        reply.Response,
		Timestamp:      reply.Timestamp,
	}
	if assistant.ID == "" {
		assistant.ID = uuid.NewString()
	}
	if assistant.Timestamp.IsZero() {
		assistant.Timestamp = s.now()
	}

	if !current {
		deleted := s.deleted[convID]
		s.mu.Unlock()
		s.logger.Debug("discarding stale reply", zap.String("conversation", convID), zap.Bool("deleted", deleted))
		if !deleted {
			s.record(func(r Recorder) error { return r.SaveMessage(ctx, assistant) })
		}
		return nil, ErrDiscarded
	}

	s.messages = append(s.messages, assistant)
	if i := s.indexOf(convID); i >= 0 {
		s.conversations[i].LastMessage = s.renderer.Preview(reply.Response, PreviewLength)
		s.conversations[i].UpdatedAt = assistant.Timestamp
		snapshot = s.conversations[i]
	}
	s.mu.Unlock()

	s.record(func(r Recorder) error { return r.SaveMessage(ctx, assistant) })
	s.record(func(r Recorder) error { return r.SaveConversation(ctx, snapshot) })
	return &assistant, nil
}

// Delete removes the conversation on the backend and then locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.conversations = append(s.conversations[:i:i], s.conversations[i+1:]...)
	}
	if s.activeID == id {
		s.switchTo("")
	}
	delete(s.pins, id)
	delete(s.titles, id)
	s.deleted[id] = true
	s.mu.Unlock()

	s.record(func(r Recorder) error { return r.DeleteConversation(ctx, id) })
	return nil
}

// TogglePin flips the pinned flag and returns the new value.
func (s *Store) TogglePin(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	pinned := !s.conversations[i].IsPinned
	s.conversations[i].IsPinned = pinned
	s.pins[id] = pinned
	s.mu.Unlock()

	s.record(func(r Recorder) error { return r.SetPinned(ctx, id, pinned) })
	return pinned, nil
}

func (s *Store) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.conversations[i].Title = title
	s.titles[id] = title
	conv := s.conversations[i]
	s.mu.Unlock()

	s.record(func(r Recorder) error { return r.SaveConversation(ctx, conv) })
	return nil
}

// Search asks the backend for conversations matching query. A blank query
// returns the local list.
func (s *Store) Search(ctx context.Context, query string) ([]models.Conversation, error) {
	if strings.TrimSpace(query) == "" {
		return s.Conversations(), nil
	}
	res, err := s.backend.Search(ctx, query, api.DefaultSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Conversation, 0, len(res.Conversations))
	for _, c := range res.Conversations {
		out = append(out, s.applyLocal(c))
	}
	return out, nil
}

// Export writes the conversation to the export directory. The active
// conversation is exported from memory, others are fetched first.
func (s *Store) Export(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return "", ErrNotFound
	}
	conv := s.conversations[i]
	var msgs []models.Message
	active := id == s.activeID
	if active {
		msgs = append(msgs, s.messages...)
	}
	s.mu.Unlock()

	if !active {
		hist, err := s.backend.History(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load history: %w", err)
		}
		msgs = hist.Messages
	}

	path, err := conversation.Export(conv, msgs, conversation.ExportOptions{Dir: s.exportDir, Now: s.now})
	if err != nil {
		return "", err
	}
	s.logger.Info("conversation exported", zap.String("path", path))
	return path, nil
}

// CopyMessage puts a message from the active conversation on the
// clipboard. It reports false when the message is unknown or the system
// clipboard could not be used.
func (s *Store) CopyMessage(messageID string) bool {
	msg, ok := s.message(messageID)
	if !ok || s.clip == nil {
		return false
	}
	return s.clip.Copy(msg.Content)
}

// RenderMessage returns display HTML for assistant messages; user text is
// returned as typed.
func (s *Store) RenderMessage(msg models.Message) string {
	if !msg.IsAssistant() {
		return msg.Content
	}
	return s.renderer.Render(msg.Content)
}

func (s *Store) message(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

// switchTo must be called with s.mu held.
func (s *Store) switchTo(id string) {
	s.seq++
	s.activeID = id
	s.messages = nil
	s.loading = false
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) applyLocal(c models.Conversation) models.Conversation {
	if pinned, ok := s.pins[c.ID]; ok {
		c.IsPinned = pinned
	}
	if title, ok := s.titles[c.ID]; ok {
		c.Title = title
	}
	if c.Category == "" {
		c.Category = models.CategoryGeneral
	}
	return c
}

func (s *Store) record(fn func(Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(s.recorder); err != nil {
		s.logger.Warn("record conversation change", zap.Error(err))
	}
}
