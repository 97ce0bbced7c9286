// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations to a local SQLite database so
// sessions survive restarts and can be listed, searched, and resumed.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/morganforge/tiller/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrConversationNotFound = errors.New("conversation not found")
)

// =============================================================================
// TYPES
// =============================================================================

// Conversation is a persisted session.
type Conversation struct {
	ID        string
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []model.ChatMessage
}

// Meta is the listing view of a conversation, cheap enough to build
// without loading every message body.
type Meta struct {
	ID           string
	Title        string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Preview      string
}

// Store wraps the SQLite database holding conversations.
type Store struct {
	db   *sql.DB
	path string
}

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL, -- unix nanoseconds
	updated_at INTEGER NOT NULL  -- unix nanoseconds
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	tool_call_id    TEXT NOT NULL DEFAULT '',
	tool_calls      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, seq);
`

// =============================================================================
// STORE LIFECYCLE
// =============================================================================

// Open creates or opens the conversation database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer; keep the pool at a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// DefaultPath returns the conversation database location under the
// user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tiller", "conversations.db"), nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE
// =============================================================================

// Save persists a conversation, replacing any prior message rows, and
// returns its ID. Missing IDs and titles are generated.
func (s *Store) Save(ctx context.Context, conv *Conversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Title == "" {
		conv.Title = deriveTitle(conv.Messages)
	}
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		conv.ID, conv.Title, conv.Model, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano())
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return "", err
	}

	for i, msg := range conv.Messages {
		toolCalls := ""
		if len(msg.ToolCalls) > 0 {
			encoded, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return "", fmt.Errorf("encoding tool calls: %w", err)
			}
			toolCalls = string(encoded)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, seq, role, content, tool_call_id, tool_calls)
			VALUES (?, ?, ?, ?, ?, ?)`,
			conv.ID, i, msg.Role.String(), msg.Content, msg.ToolCallID, toolCalls)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return conv.ID, nil
}

// deriveTitle builds a title from the first user message.
func deriveTitle(messages []model.ChatMessage) string {
	for _, msg := range messages {
		if msg.Role == model.RoleUser && msg.Content != "" {
			title := strings.ReplaceAll(msg.Content, "\n", " ")
			runes := []rune(title)
			if len(runes) > 50 {
				title = string(runes[:47]) + "..."
			}
			return title
		}
	}
	return "New conversation"
}

// =============================================================================
// LOAD
// =============================================================================

// Load retrieves a conversation with all its messages.
func (s *Store) Load(ctx context.Context, id string) (*Conversation, error) {
	conv := &Conversation{ID: id}
	var created, updated int64

	err := s.db.QueryRowContext(ctx, `
		SELECT title, model, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&conv.Title, &conv.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedAt = time.Unix(0, created)
	conv.UpdatedAt = time.Unix(0, updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_call_id, tool_calls
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var role, content, toolCallID, toolCalls string
		if err := rows.Scan(&role, &content, &toolCallID, &toolCalls); err != nil {
			return nil, err
		}
		msg := model.ChatMessage{
			Role:       model.Role(role),
			Content:    content,
			ToolCallID: toolCallID,
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

// LoadLatest returns the most recently updated conversation.
func (s *Store) LoadLatest(ctx context.Context) (*Conversation, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations ORDER BY updated_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, id)
}

// =============================================================================
// LIST AND SEARCH
// =============================================================================

// List returns all conversations, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
			COUNT(m.id),
			COALESCE((SELECT content FROM messages
				WHERE conversation_id = c.id AND role = 'user'
				ORDER BY seq LIMIT 1), '')
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var meta Meta
		var created, updated int64
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Model,
			&created, &updated, &meta.MessageCount, &meta.Preview); err != nil {
			return nil, err
		}
		meta.CreatedAt = time.Unix(0, created)
		meta.UpdatedAt = time.Unix(0, updated)
		meta.Preview = previewString(meta.Preview, 80)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Search returns conversations whose title or message content matches
// the query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string) ([]Meta, error) {
	if query == "" {
		return s.List(ctx)
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	pattern := "%" + strings.ToLower(query) + "%"
	var results []Meta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), strings.ToLower(query)) {
			results = append(results, meta)
			continue
		}
		var n int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = ? AND LOWER(content) LIKE ?`,
			meta.ID, pattern).Scan(&n)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			results = append(results, meta)
		}
	}
	return results, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a conversation and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Clear removes every stored conversation.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations`)
	return err
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders the conversation for sharing.
func (c *Conversation) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + c.Title + "\n\n")
	sb.WriteString("Created: " + c.CreatedAt.Format(time.RFC3339) + "\n\n---\n\n")

	for _, msg := range c.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "**:\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// previewString truncates for listing display, rune-safe.
func previewString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
