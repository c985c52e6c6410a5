package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/zapmesa/zapmesa/pkg/logging"
)

// Pending action kinds the interceptor understands.
const (
	PendingKindReservation = "reservation_confirmation"
)

const (
	interceptConfirmReply = "Perfeito, reserva confirmada! Até breve."
	interceptCancelReply  = "Sem problemas, cancelei a solicitação. Posso ajudar com algo mais?"
	interceptRepeatReply  = "Desculpe, não entendi. Pode responder com \"sim\" para confirmar ou \"não\" para cancelar?"
)

var affirmativeAnswers = []string{
	"sim", "s", "pode", "pode sim", "confirmo", "confirmar", "confirma",
	"isso", "isso mesmo", "ok", "okay", "claro", "com certeza", "yes", "quero",
}

var negativeAnswers = []string{
	"não", "nao", "n", "cancela", "cancelar", "não quero", "nao quero",
	"deixa", "deixa pra lá", "desisti", "no",
}

// Interceptor short-circuits the assistant when the conversation already
// holds a pending, expiring confirmation. Only the interceptor and the
// dispatcher mutate conversation context.
type Interceptor struct {
	conversations ConversationRepository
	logger        *logging.Logger
	now           func() time.Time
}

// NewInterceptor creates an interceptor over the conversation repository.
func NewInterceptor(conversations ConversationRepository, logger *logging.Logger) *Interceptor {
	if conversations == nil {
		panic("conversation: conversation repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Interceptor{conversations: conversations, logger: logger, now: time.Now}
}

// Intercept inspects the conversation context. If a live pending action is
// awaiting confirmation, the user's message is interpreted as a direct
// answer and a decision is synthesized locally; the assistant never runs.
// Returns (decision, true) when intercepted.
func (i *Interceptor) Intercept(ctx context.Context, conv *Conversation, text string) (Decision, bool) {
	c := conv.Context
	if c.State != StateAwaitingConfirmation || !c.HasPendingAction() {
		return Decision{}, false
	}

	now := i.now()
	if c.ExpiredAt(now) {
		// Expire silently and let the normal assistant flow handle the turn.
		c.ClearPendingAction()
		if err := i.conversations.UpdateContext(ctx, conv.ID, c); err != nil {
			i.logger.Warn("failed to clear expired pending action", "error", err, "conversation_id", conv.ID)
		}
		conv.Context = c
		return Decision{}, false
	}

	switch classifyAnswer(text) {
	case answerYes:
		i.logger.Info("intercepted confirmation answer",
			"conversation_id", conv.ID,
			"pending_action_id", c.PendingActionID,
		)
		return Decision{
			Reply:                interceptConfirmReply,
			Handover:             HandoverConfirm,
			ReservationConfirmed: c.PendingActionKind == PendingKindReservation,
			Details:              c.Data,
		}, true
	case answerNo:
		c.ClearPendingAction()
		if err := i.conversations.UpdateContext(ctx, conv.ID, c); err != nil {
			i.logger.Warn("failed to clear cancelled pending action", "error", err, "conversation_id", conv.ID)
		}
		conv.Context = c
		return Decision{
			Reply:    interceptCancelReply,
			Handover: HandoverNone,
		}, true
	default:
		// Ambiguous answer: keep the pending action alive and re-ask.
		return Decision{
			Reply:    interceptRepeatReply,
			Handover: HandoverNone,
		}, true
	}
}

type answerKind int

const (
	answerUnknown answerKind = iota
	answerYes
	answerNo
)

func classifyAnswer(text string) answerKind {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Map(func(r rune) rune {
		switch r {
		case '.', '!', '?', ',', ':', ';':
			return ' '
		}
		return r
	}, normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	for _, no := range negativeAnswers {
		if normalized == no || strings.HasPrefix(normalized, no+" ") {
			return answerNo
		}
	}
	for _, yes := range affirmativeAnswers {
		if normalized == yes || strings.HasPrefix(normalized, yes+" ") {
			return answerYes
		}
	}
	return answerUnknown
}
