package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/QuantPilot/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ErrConversationNotFound is returned when a write targets a conversation
// that has no row.
var ErrConversationNotFound = errors.New("conversation not found")

// Store mirrors conversations and their messages into a local sqlite file
// so history stays readable without the backend.
type Store struct {
	db *sql.DB
}

// ConversationRecord is a stored conversation plus its rowid, which callers
// pass back as the paging cursor.
type ConversationRecord struct {
	models.Conversation
	RowID        int64
	MessageCount int
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT 'general',
    is_pinned INTEGER NOT NULL DEFAULT 0,
    last_message TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE(conversation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_seq ON messages(conversation_id, seq);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveConversation inserts conv or overwrites the stored copy.
func (s *Store) SaveConversation(ctx context.Context, conv models.Conversation) error {
	if strings.TrimSpace(conv.ID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if conv.Category == "" {
		conv.Category = models.CategoryGeneral
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = s.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conversations (id, title, category, is_pinned, last_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title=excluded.title,
    category=excluded.category,
    is_pinned=excluded.is_pinned,
    last_message=excluded.last_message,
    updated_at=excluded.updated_at
`, conv.ID, conv.Title, string(conv.Category), conv.IsPinned, conv.LastMessage,
		formatTime(conv.CreatedAt), formatTime(conv.LastActivity()))
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// SaveMessage appends msg to its conversation. A message id seen before is
// ignored. The conversation must already exist, so a late write cannot
// bring back a deleted one.
func (s *Store) SaveMessage(ctx context.Context, msg models.Message) error {
	if strings.TrimSpace(msg.ID) == "" {
		return fmt.Errorf("message id is required")
	}
	if strings.TrimSpace(msg.ConversationID) == "" {
		return fmt.Errorf("message conversation id is required")
	}
	if strings.TrimSpace(string(msg.Role)) == "" {
		return fmt.Errorf("message role is required")
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = s.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, msg.ConversationID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("save message %s: %w", msg.ID, ErrConversationNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, role, content, seq, created_at)
VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?), ?)
ON CONFLICT(id) DO NOTHING
`, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.ConversationID, formatTime(ts))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func (s *Store) SetPinned(ctx context.Context, conversationID string, pinned bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE conversations SET is_pinned = ? WHERE id = ?
`, pinned, conversationID)
	if err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("set pinned %s: %w", conversationID, ErrConversationNotFound)
	}
	return nil
}

// DeleteConversation removes the conversation; its messages go with it.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

// ListConversations pages backwards by rowid. Pass 0 for the newest page and
// the last RowID seen for the next.
func (s *Store) ListConversations(ctx context.Context, cursor int64, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT c.rowid, c.id, c.title, c.category, c.is_pinned, c.last_message, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
FROM conversations c
WHERE (? = 0 OR c.rowid < ?)
ORDER BY c.rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []ConversationRecord
	for rows.Next() {
		rec, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations rows: %w", err)
	}
	return convs, nil
}

// GetConversation returns nil when no conversation has the id.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*ConversationRecord, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT c.rowid, c.id, c.title, c.category, c.is_pinned, c.last_message, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
FROM conversations c
WHERE c.id = ?
LIMIT 1
`, conversationID)

	rec, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = ?
ORDER BY seq ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var (
			msg     models.Message
			role    string
			created string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msg.Timestamp = parseTime(created)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages rows: %w", err)
	}
	return msgs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (ConversationRecord, error) {
	var (
		rec      ConversationRecord
		category string
		created  string
		updated  string
	)
	err := row.Scan(&rec.RowID, &rec.ID, &rec.Title, &category, &rec.IsPinned, &rec.LastMessage,
		&created, &updated, &rec.MessageCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan conversation: %w", err)
	}
	rec.Category = models.Category(category)
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
