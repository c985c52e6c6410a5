package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/internal/notify"
)

// EstablishmentStore maps provider routing ids (WhatsApp instance ids) to
// establishments.
type EstablishmentStore struct {
	pool PgxPool
}

func NewEstablishmentStore(pool PgxPool) *EstablishmentStore {
	if pool == nil {
		panic("store: pool cannot be nil")
	}
	return &EstablishmentStore{pool: pool}
}

func (s *EstablishmentStore) ResolveByRoutingID(ctx context.Context, routingID string) (uuid.UUID, error) {
	var establishmentID uuid.UUID
	query := `
		SELECT establishment_id
		FROM whatsapp_instances
		WHERE instance_id = $1 AND active
		LIMIT 1
	`
	if err := s.pool.QueryRow(ctx, query, routingID).Scan(&establishmentID); err != nil {
		return uuid.Nil, fmt.Errorf("store: resolve establishment by routing id: %w", err)
	}
	return establishmentID, nil
}

// GetAlertContacts returns the operator alert endpoints for an establishment.
func (s *EstablishmentStore) GetAlertContacts(ctx context.Context, establishmentID uuid.UUID) (notify.Contacts, error) {
	var contacts notify.Contacts
	query := `
		SELECT name, alert_phone, alert_email
		FROM establishments
		WHERE id = $1
	`
	err := s.pool.QueryRow(ctx, query, establishmentID).
		Scan(&contacts.Name, &contacts.Phone, &contacts.Email)
	if err != nil {
		return notify.Contacts{}, fmt.Errorf("store: get alert contacts: %w", err)
	}
	return contacts, nil
}

var (
	_ conversation.EstablishmentResolver = (*EstablishmentStore)(nil)
	_ notify.ContactStore                = (*EstablishmentStore)(nil)
)
