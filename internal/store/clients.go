package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/internal/conversation"
)

// ClientStore persists end clients keyed by establishment and phone.
type ClientStore struct {
	pool PgxPool
}

func NewClientStore(pool PgxPool) *ClientStore {
	if pool == nil {
		panic("store: pool cannot be nil")
	}
	return &ClientStore{pool: pool}
}

func (s *ClientStore) GetOrCreateByPhone(ctx context.Context, establishmentID uuid.UUID, phone string) (uuid.UUID, error) {
	var clientID uuid.UUID
	query := `
		INSERT INTO clients (id, establishment_id, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (establishment_id, phone)
		DO UPDATE SET updated_at = now()
		RETURNING id
	`
	if err := s.pool.QueryRow(ctx, query, uuid.New(), establishmentID, phone).Scan(&clientID); err != nil {
		return uuid.Nil, fmt.Errorf("store: get or create client: %w", err)
	}
	return clientID, nil
}

var _ conversation.ClientRepository = (*ClientStore)(nil)
