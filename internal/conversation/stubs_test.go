package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type stubEstablishments struct {
	id  uuid.UUID
	err error
}

func (s *stubEstablishments) ResolveByRoutingID(_ context.Context, _ string) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return s.id, nil
}

type stubClients struct {
	id  uuid.UUID
	err error
}

func (s *stubClients) GetOrCreateByPhone(_ context.Context, _ uuid.UUID, _ string) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return s.id, nil
}

type stubConversations struct {
	mu sync.Mutex

	conv       *Conversation
	getErr     error
	updateErr  error
	modeCalls  []Mode
	agentCalls []*uuid.UUID
	contexts   []Context
}

func (s *stubConversations) GetOrCreate(_ context.Context, _, _ uuid.UUID) (*Conversation, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.conv, nil
}

func (s *stubConversations) UpdateMode(_ context.Context, _ uuid.UUID, mode Mode, agentID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modeCalls = append(s.modeCalls, mode)
	s.agentCalls = append(s.agentCalls, agentID)
	return s.updateErr
}

func (s *stubConversations) UpdateContext(_ context.Context, _ uuid.UUID, c Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = append(s.contexts, c)
	return s.updateErr
}

func (s *stubConversations) lastContext() (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.contexts) == 0 {
		return Context{}, false
	}
	return s.contexts[len(s.contexts)-1], true
}

type appendedMessage struct {
	conversationID uuid.UUID
	role           string
	text           string
}

type stubMessages struct {
	mu sync.Mutex

	inserted    bool
	appendErr   error
	outboundErr error
	history     []Message
	listErr     error
	appended    []appendedMessage
}

func (s *stubMessages) AppendInbound(_ context.Context, conversationID uuid.UUID, _ string, text string, _ time.Time) (bool, error) {
	if s.appendErr != nil {
		return false, s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, appendedMessage{conversationID: conversationID, role: RoleUser, text: text})
	return s.inserted, nil
}

func (s *stubMessages) AppendOutbound(_ context.Context, conversationID uuid.UUID, text string, _ time.Time) error {
	if s.outboundErr != nil {
		return s.outboundErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, appendedMessage{conversationID: conversationID, role: RoleAssistant, text: text})
	return nil
}

func (s *stubMessages) ListRecent(_ context.Context, _ uuid.UUID, _ int) ([]Message, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.history, nil
}

type confirmCall struct {
	conversationID  uuid.UUID
	pendingActionID string
	details         map[string]any
}

type stubReservations struct {
	mu sync.Mutex

	created bool
	err     error
	calls   []confirmCall
}

func (s *stubReservations) ConfirmPending(_ context.Context, conversationID uuid.UUID, pendingActionID string, details map[string]any) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, confirmCall{
		conversationID:  conversationID,
		pendingActionID: pendingActionID,
		details:         details,
	})
	return s.created, nil
}

type sentText struct {
	to   string
	text string
}

type stubMessenger struct {
	mu sync.Mutex

	err   error
	sends []sentText
}

func (s *stubMessenger) SendText(_ context.Context, to, text string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sentText{to: to, text: text})
	return nil
}

type stubAlerts struct {
	mu sync.Mutex

	err    error
	alerts []HandoverAlert
}

func (s *stubAlerts) SendHandoverAlert(_ context.Context, alert HandoverAlert) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

var (
	_ EstablishmentResolver  = (*stubEstablishments)(nil)
	_ ClientRepository       = (*stubClients)(nil)
	_ ConversationRepository = (*stubConversations)(nil)
	_ MessageRepository      = (*stubMessages)(nil)
	_ ReservationRepository  = (*stubReservations)(nil)
	_ Messenger              = (*stubMessenger)(nil)
	_ AlertSender            = (*stubAlerts)(nil)
)
