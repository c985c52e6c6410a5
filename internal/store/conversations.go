package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/internal/conversation"
)

// ConversationStore persists conversation threads, including the JSONB
// context the interceptor and dispatcher share.
type ConversationStore struct {
	pool PgxPool
}

func NewConversationStore(pool PgxPool) *ConversationStore {
	if pool == nil {
		panic("store: pool cannot be nil")
	}
	return &ConversationStore{pool: pool}
}

func (s *ConversationStore) GetOrCreate(ctx context.Context, establishmentID, clientID uuid.UUID) (*conversation.Conversation, error) {
	query := `
		INSERT INTO conversations (id, establishment_id, client_id, mode, context)
		VALUES ($1, $2, $3, 'auto', '{}'::jsonb)
		ON CONFLICT (establishment_id, client_id)
		DO UPDATE SET updated_at = now()
		RETURNING id, mode, agent_id, context, created_at, updated_at
	`

	conv := conversation.Conversation{
		EstablishmentID: establishmentID,
		ClientID:        clientID,
	}
	var (
		mode    string
		rawCtx  []byte
		agentID *uuid.UUID
	)
	err := s.pool.QueryRow(ctx, query, uuid.New(), establishmentID, clientID).
		Scan(&conv.ID, &mode, &agentID, &rawCtx, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get or create conversation: %w", err)
	}

	conv.Mode = conversation.ParseMode(mode)
	conv.AgentID = agentID
	if len(rawCtx) > 0 {
		if err := json.Unmarshal(rawCtx, &conv.Context); err != nil {
			return nil, fmt.Errorf("store: decode conversation context: %w", err)
		}
	}
	return &conv, nil
}

func (s *ConversationStore) UpdateMode(ctx context.Context, id uuid.UUID, mode conversation.Mode, agentID *uuid.UUID) error {
	query := `
		UPDATE conversations
		SET mode = $2, agent_id = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, string(mode), agentID)
	if err != nil {
		return fmt.Errorf("store: update conversation mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: conversation %s not found", id)
	}
	return nil
}

func (s *ConversationStore) UpdateContext(ctx context.Context, id uuid.UUID, c conversation.Context) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("store: encode conversation context: %w", err)
	}

	query := `
		UPDATE conversations
		SET context = $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, raw)
	if err != nil {
		return fmt.Errorf("store: update conversation context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: conversation %s not found", id)
	}
	return nil
}

var _ conversation.ConversationRepository = (*ConversationStore)(nil)
