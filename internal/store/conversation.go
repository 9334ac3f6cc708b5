// Package store persists conversation history in SQLite. It replaces the
// browser-storage collaborator of the original product with the same narrow
// save/load contract.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation groups the messages of one chat or agent surface.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Surface   string    `json:"surface"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationStore provides CRUD operations on the conversations table.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a new ConversationStore.
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// DB returns the underlying database connection.
func (s *ConversationStore) DB() *sql.DB {
	return s.db
}

// Create inserts a new conversation.
func (s *ConversationStore) Create(ctx context.Context, title, surface string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		Surface:   surface,
		UpdatedAt: now,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, surface, updated_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Surface,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// GetByID retrieves a conversation by its ID.
func (s *ConversationStore) GetByID(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, surface, updated_at, created_at FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// List retrieves all conversations, most recently updated first.
func (s *ConversationStore) List(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, surface, updated_at, created_at FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// Touch bumps a conversation's updated_at timestamp.
func (s *ConversationStore) Touch(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// Delete removes a conversation and, via the foreign key cascade, its
// messages.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var updatedAt, createdAt string
	if err := row.Scan(&c.ID, &c.Title, &c.Surface, &updatedAt, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}
