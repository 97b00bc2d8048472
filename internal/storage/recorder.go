package storage

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/internal/models"
)

// Backend is the synchronous store a Mirror writes through to.
type Backend interface {
	SaveConversation(ctx context.Context, conv models.Conversation) error
	SaveMessage(ctx context.Context, msg models.Message) error
	SetPinned(ctx context.Context, conversationID string, pinned bool) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

type recordKind int

const (
	recordConversation recordKind = iota + 1
	recordMessage
	recordPinned
	recordDelete
)

type recordEvent struct {
	kind   recordKind
	conv   models.Conversation
	msg    models.Message
	id     string
	pinned bool
}

// Mirror applies conversation changes to a Backend on a single background
// goroutine so callers never wait on disk. Events are applied in the order
// they were recorded; failures are logged and dropped.
type Mirror struct {
	store  Backend
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	events chan recordEvent
	wg     sync.WaitGroup
}

func NewMirror(store Backend, logger *zap.Logger) (*Mirror, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mirror{
		store:  store,
		logger: logger,
		events: make(chan recordEvent, 512),
	}
	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func (m *Mirror) loop() {
	defer m.wg.Done()
	ctx := context.Background()
	for ev := range m.events {
		var err error
		switch ev.kind {
		case recordConversation:
			err = m.store.SaveConversation(ctx, ev.conv)
		case recordMessage:
			err = m.store.SaveMessage(ctx, ev.msg)
		case recordPinned:
			err = m.store.SetPinned(ctx, ev.id, ev.pinned)
		case recordDelete:
			err = m.store.DeleteConversation(ctx, ev.id)
		}
		if err != nil {
			m.logger.Warn("mirror write failed", zap.Int("kind", int(ev.kind)), zap.Error(err))
		}
	}
}

func (m *Mirror) enqueue(ev recordEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	m.events <- ev
}

func (m *Mirror) SaveConversation(_ context.Context, conv models.Conversation) error {
	m.enqueue(recordEvent{kind: recordConversation, conv: conv})
	return nil
}

func (m *Mirror) SaveMessage(_ context.Context, msg models.Message) error {
	m.enqueue(recordEvent{kind: recordMessage, msg: msg})
	return nil
}

func (m *Mirror) SetPinned(_ context.Context, conversationID string, pinned bool) error {
	m.enqueue(recordEvent{kind: recordPinned, id: conversationID, pinned: pinned})
	return nil
}

func (m *Mirror) DeleteConversation(_ context.Context, conversationID string) error {
	m.enqueue(recordEvent{kind: recordDelete, id: conversationID})
	return nil
}

// Close stops accepting events and waits until queued ones are written.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.events)
	m.mu.Unlock()
	m.wg.Wait()
}
