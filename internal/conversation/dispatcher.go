package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/pkg/logging"
)

// DefaultPendingActionTTL bounds how long a confirmation question stays
// answerable before the conversation falls back to the normal flow.
const DefaultPendingActionTTL = 10 * time.Minute

// Dispatcher applies a decision's side effects and delivers the reply. It is
// the only component besides the interceptor that mutates conversation
// context, and the only one that commits reservations.
type Dispatcher struct {
	conversations ConversationRepository
	reservations  ReservationRepository
	messages      MessageRepository
	messenger     Messenger
	alerts        AlertSender
	pendingTTL    time.Duration
	logger        *logging.Logger
	now           func() time.Time
}

// NewDispatcher wires a dispatcher. The alert sender is optional; everything
// else is required.
func NewDispatcher(
	conversations ConversationRepository,
	reservations ReservationRepository,
	messages MessageRepository,
	messenger Messenger,
	alerts AlertSender,
	pendingTTL time.Duration,
	logger *logging.Logger,
) *Dispatcher {
	if conversations == nil || reservations == nil || messages == nil || messenger == nil {
		panic("conversation: dispatcher collaborators cannot be nil")
	}
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingActionTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		conversations: conversations,
		reservations:  reservations,
		messages:      messages,
		messenger:     messenger,
		alerts:        alerts,
		pendingTTL:    pendingTTL,
		logger:        logger,
		now:           time.Now,
	}
}

// Dispatch persists the decision's effects and then delivers the reply.
// Side effects run first so the user is never told about state that failed
// to commit.
func (d *Dispatcher) Dispatch(ctx context.Context, conv *Conversation, clientPhone string, decision Decision) error {
	switch decision.Handover {
	case HandoverConfirm:
		if err := d.confirm(ctx, conv, clientPhone, decision); err != nil {
			return err
		}
	case HandoverAsk:
		if isTransfer(decision) {
			if err := d.transfer(ctx, conv, clientPhone, decision); err != nil {
				return err
			}
		} else if err := d.holdForConfirmation(ctx, conv, decision); err != nil {
			return err
		}
	}

	d.deliverReply(ctx, conv, clientPhone, decision.Reply)
	return nil
}

func (d *Dispatcher) confirm(ctx context.Context, conv *Conversation, clientPhone string, decision Decision) error {
	pendingID := conv.Context.PendingActionID
	if pendingID == "" {
		pendingID = uuid.NewString()
	}
	details := decision.Details
	if len(details) == 0 {
		details = conv.Context.Data
	}

	created, err := d.reservations.ConfirmPending(ctx, conv.ID, pendingID, details)
	if err != nil {
		return fmt.Errorf("conversation: failed to confirm reservation: %w", err)
	}
	if !created {
		d.logger.Info("reservation already committed, skipping",
			"conversation_id", conv.ID,
			"pending_action_id", pendingID,
		)
	}

	if conv.Context.HasPendingAction() {
		c := conv.Context
		c.ClearPendingAction()
		if err := d.conversations.UpdateContext(ctx, conv.ID, c); err != nil {
			return fmt.Errorf("conversation: failed to clear pending action: %w", err)
		}
		conv.Context = c
	}

	if created {
		d.alert(ctx, conv, clientPhone, decision.AgentPrompt)
	}
	return nil
}

func (d *Dispatcher) holdForConfirmation(ctx context.Context, conv *Conversation, decision Decision) error {
	c := conv.Context
	c.SetPendingAction(uuid.NewString(), PendingKindReservation, d.now().Add(d.pendingTTL))
	c.Data = decision.Details
	if err := d.conversations.UpdateContext(ctx, conv.ID, c); err != nil {
		return fmt.Errorf("conversation: failed to store pending action: %w", err)
	}
	conv.Context = c
	return nil
}

func (d *Dispatcher) transfer(ctx context.Context, conv *Conversation, clientPhone string, decision Decision) error {
	if err := d.conversations.UpdateMode(ctx, conv.ID, ModeHuman, nil); err != nil {
		return fmt.Errorf("conversation: failed to hand conversation to human: %w", err)
	}
	conv.Mode = ModeHuman
	d.alert(ctx, conv, clientPhone, decision.AgentPrompt)
	return nil
}

func (d *Dispatcher) alert(ctx context.Context, conv *Conversation, clientPhone, prompt string) {
	if d.alerts == nil {
		return
	}
	if prompt == "" {
		prompt = genericReservationSummary
	}
	err := d.alerts.SendHandoverAlert(ctx, HandoverAlert{
		EstablishmentID: conv.EstablishmentID,
		ConversationID:  conv.ID,
		ClientPhone:     clientPhone,
		Prompt:          prompt,
	})
	if err != nil {
		d.logger.Warn("failed to send handover alert", "error", err, "conversation_id", conv.ID)
	}
}

func (d *Dispatcher) deliverReply(ctx context.Context, conv *Conversation, clientPhone, reply string) {
	if reply == "" {
		return
	}
	if err := d.messenger.SendText(ctx, clientPhone, reply); err != nil {
		d.logger.Error("failed to deliver reply", "error", err, "conversation_id", conv.ID)
		return
	}
	if err := d.messages.AppendOutbound(ctx, conv.ID, reply, d.now().UTC()); err != nil {
		d.logger.Warn("failed to record outbound message", "error", err, "conversation_id", conv.ID)
	}
}

func isTransfer(decision Decision) bool {
	v, ok := decision.Details["transfer"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
