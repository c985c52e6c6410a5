package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/internal/conversation"
)

// ReservationStore commits confirmed reservations.
type ReservationStore struct {
	pool PgxPool
}

func NewReservationStore(pool PgxPool) *ReservationStore {
	if pool == nil {
		panic("store: pool cannot be nil")
	}
	return &ReservationStore{pool: pool}
}

// ConfirmPending inserts a confirmed reservation keyed by the pending action
// id. A replayed confirmation hits the unique constraint and reports
// created=false instead of double-booking.
func (s *ReservationStore) ConfirmPending(ctx context.Context, conversationID uuid.UUID, pendingActionID string, details map[string]any) (bool, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return false, fmt.Errorf("store: encode reservation details: %w", err)
	}

	query := `
		INSERT INTO reservations (id, conversation_id, pending_action_id, details, status)
		VALUES ($1, $2, $3, $4, 'confirmed')
		ON CONFLICT (pending_action_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query, uuid.New(), conversationID, pendingActionID, raw)
	if err != nil {
		return false, fmt.Errorf("store: confirm reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ conversation.ReservationRepository = (*ReservationStore)(nil)
