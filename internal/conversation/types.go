package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode identifies who is driving a conversation.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeHuman  Mode = "human"
	ModePaused Mode = "paused"
)

// ParseMode maps arbitrary stored values onto the closed mode set.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeHuman:
		return ModeHuman
	case ModePaused:
		return ModePaused
	default:
		return ModeAuto
	}
}

// Message is a single turn in a conversation transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StateAwaitingConfirmation marks a conversation that is mid-way through a
// multi-turn confirmation flow. Any other state value (including empty) means
// no pending action.
const StateAwaitingConfirmation = "awaiting_confirmation"

// Context is the per-conversation scratch state shared between the
// interceptor and the dispatcher. Stored as JSONB on the conversation row.
type Context struct {
	State             string         `json:"state,omitempty"`
	Data              map[string]any `json:"data,omitempty"`
	ExpiresAt         *time.Time     `json:"expires_at,omitempty"`
	PendingActionID   string         `json:"pending_action_id,omitempty"`
	PendingActionKind string         `json:"pending_action_kind,omitempty"`
}

// HasPendingAction reports whether a pending action is set. The id and kind
// are either both present or both absent; a half-set pair counts as absent.
func (c Context) HasPendingAction() bool {
	return c.PendingActionID != "" && c.PendingActionKind != ""
}

// ExpiredAt reports whether the context's state should be treated as expired.
func (c Context) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// SetPendingAction records a pending action with an expiration window.
func (c *Context) SetPendingAction(id, kind string, expiresAt time.Time) {
	c.State = StateAwaitingConfirmation
	c.PendingActionID = id
	c.PendingActionKind = kind
	c.ExpiresAt = &expiresAt
}

// ClearPendingAction resets the confirmation flow state.
func (c *Context) ClearPendingAction() {
	c.State = ""
	c.PendingActionID = ""
	c.PendingActionKind = ""
	c.ExpiresAt = nil
}

// Conversation is one client/establishment thread.
type Conversation struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	ClientID        uuid.UUID
	Mode            Mode
	AgentID         *uuid.UUID
	Context         Context
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InboundMessage is the immutable envelope produced by the webhook boundary.
type InboundMessage struct {
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	From              string    `json:"from"`
	Text              string    `json:"text"`
	Timestamp         time.Time `json:"timestamp"`
	RoutingID         string    `json:"routing_id"`
}

// Envelope is the unit of work carried through the processing queue.
type Envelope struct {
	ID         string         `json:"id"`
	Message    InboundMessage `json:"message"`
	ReceivedAt time.Time      `json:"received_at"`
}

// EstablishmentResolver maps a provider routing id (the business WhatsApp
// number / instance) to the owning establishment.
type EstablishmentResolver interface {
	ResolveByRoutingID(ctx context.Context, routingID string) (uuid.UUID, error)
}

// ClientRepository resolves or creates clients by phone within an establishment.
type ClientRepository interface {
	GetOrCreateByPhone(ctx context.Context, establishmentID uuid.UUID, phone string) (uuid.UUID, error)
}

// ConversationRepository persists conversation threads and their context.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, establishmentID, clientID uuid.UUID) (*Conversation, error)
	UpdateMode(ctx context.Context, id uuid.UUID, mode Mode, agentID *uuid.UUID) error
	UpdateContext(ctx context.Context, id uuid.UUID, c Context) error
}

// MessageRepository persists transcript turns. AppendInbound is idempotent on
// the provider message id and reports whether the row was actually inserted.
type MessageRepository interface {
	AppendInbound(ctx context.Context, conversationID uuid.UUID, providerMessageID, text string, at time.Time) (bool, error)
	AppendOutbound(ctx context.Context, conversationID uuid.UUID, text string, at time.Time) error
	ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
}

// ReservationRepository commits confirmed reservations. ConfirmPending is
// idempotent on the pending action id and reports whether a new reservation
// row was created.
type ReservationRepository interface {
	ConfirmPending(ctx context.Context, conversationID uuid.UUID, pendingActionID string, details map[string]any) (bool, error)
}

// Messenger delivers reply text to the end user's channel.
type Messenger interface {
	SendText(ctx context.Context, to, text string) error
}

// HandoverAlert notifies a human operator that a conversation needs attention.
type HandoverAlert struct {
	EstablishmentID uuid.UUID
	ConversationID  uuid.UUID
	ClientPhone     string
	Prompt          string
}

// AlertSender notifies a human operator channel on handover.
type AlertSender interface {
	SendHandoverAlert(ctx context.Context, alert HandoverAlert) error
}
