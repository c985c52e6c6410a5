package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

// Contacts are the operator alert endpoints for one establishment.
type Contacts struct {
	Name  string
	Phone string
	Email string
}

// ContactStore resolves operator alert contacts.
type ContactStore interface {
	GetAlertContacts(ctx context.Context, establishmentID uuid.UUID) (Contacts, error)
}

// Service pushes handover alerts to establishment operators, over WhatsApp
// and optionally email. Delivery is best effort per channel.
type Service struct {
	contacts  ContactStore
	messenger conversation.Messenger
	email     EmailSender
	logger    *logging.Logger
}

// NewService creates a notification service. The email sender is optional.
func NewService(contacts ContactStore, messenger conversation.Messenger, email EmailSender, logger *logging.Logger) *Service {
	if contacts == nil {
		panic("notify: contact store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		contacts:  contacts,
		messenger: messenger,
		email:     email,
		logger:    logger,
	}
}

// SendHandoverAlert notifies the establishment's operator about a
// conversation that needs attention.
func (s *Service) SendHandoverAlert(ctx context.Context, alert conversation.HandoverAlert) error {
	contacts, err := s.contacts.GetAlertContacts(ctx, alert.EstablishmentID)
	if err != nil {
		return fmt.Errorf("notify: resolve alert contacts: %w", err)
	}

	body := formatAlertBody(alert)
	delivered := false

	if contacts.Phone != "" && s.messenger != nil {
		if err := s.messenger.SendText(ctx, contacts.Phone, body); err != nil {
			s.logger.Error("failed to send whatsapp alert", "error", err, "establishment_id", alert.EstablishmentID)
		} else {
			delivered = true
		}
	}

	if contacts.Email != "" && s.email != nil {
		msg := EmailMessage{
			To:      contacts.Email,
			ToName:  contacts.Name,
			Subject: "ZapMesa: conversa precisa de atenção",
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("failed to send email alert", "error", err, "establishment_id", alert.EstablishmentID)
		} else {
			delivered = true
		}
	}

	if !delivered {
		return errors.New("notify: no alert channel delivered")
	}
	return nil
}

func formatAlertBody(alert conversation.HandoverAlert) string {
	b := strings.Builder{}
	b.WriteString(alert.Prompt)
	if alert.ClientPhone != "" {
		b.WriteString("\nCliente: ")
		b.WriteString(alert.ClientPhone)
	}
	b.WriteString("\nConversa: ")
	b.WriteString(alert.ConversationID.String())
	return b.String()
}

var _ conversation.AlertSender = (*Service)(nil)
