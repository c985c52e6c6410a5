package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/internal/conversation"
)

// MessageStore persists transcript turns.
type MessageStore struct {
	pool PgxPool
}

func NewMessageStore(pool PgxPool) *MessageStore {
	if pool == nil {
		panic("store: pool cannot be nil")
	}
	return &MessageStore{pool: pool}
}

// AppendInbound inserts a user turn. The provider message id carries a
// partial unique index, so a redelivered message becomes a no-op insert and
// the caller sees inserted=false. The conflict target must repeat the
// index predicate or Postgres refuses to use the partial index as arbiter.
func (s *MessageStore) AppendInbound(ctx context.Context, conversationID uuid.UUID, providerMessageID, text string, at time.Time) (bool, error) {
	query := `
		INSERT INTO messages (id, conversation_id, role, content, provider_message_id, created_at)
		VALUES ($1, $2, 'user', $3, NULLIF($4, ''), $5)
		ON CONFLICT (provider_message_id) WHERE provider_message_id IS NOT NULL DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query, uuid.New(), conversationID, text, providerMessageID, at)
	if err != nil {
		return false, fmt.Errorf("store: append inbound message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *MessageStore) AppendOutbound(ctx context.Context, conversationID uuid.UUID, text string, at time.Time) error {
	query := `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, 'assistant', $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, uuid.New(), conversationID, text, at); err != nil {
		return fmt.Errorf("store: append outbound message: %w", err)
	}
	return nil
}

// ListRecent returns the newest turns in chronological order.
func (s *MessageStore) ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT role, content FROM (
			SELECT role, content, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recent messages: %w", err)
	}
	defer rows.Close()

	var messages []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	return messages, nil
}

var _ conversation.MessageRepository = (*MessageStore)(nil)
