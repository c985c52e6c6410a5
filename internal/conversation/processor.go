package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zapmesa/zapmesa/pkg/logging"
)

const defaultHistoryLimit = 20

// Result is what the processor hands the rest of the pipeline for one
// envelope. When Ignore is set the remaining fields are meaningless and the
// envelope is dropped.
type Result struct {
	Ignore       bool
	IgnoreReason string

	Conversation *Conversation
	ClientPhone  string
	RoutingID    string
	Text         string
	History      []Message
}

func ignored(reason string) Result {
	return Result{Ignore: true, IgnoreReason: reason}
}

// Processor normalizes an inbound envelope into a processing input: it
// resolves the establishment from the routing id, gets or creates the client
// and conversation, appends the inbound turn idempotently, and loads recent
// history for the assistant.
type Processor struct {
	establishments EstablishmentResolver
	clients        ClientRepository
	conversations  ConversationRepository
	messages       MessageRepository
	historyLimit   int
	logger         *logging.Logger
}

// NewProcessor wires a processor over the data-access collaborators.
func NewProcessor(
	establishments EstablishmentResolver,
	clients ClientRepository,
	conversations ConversationRepository,
	messages MessageRepository,
	historyLimit int,
	logger *logging.Logger,
) *Processor {
	if establishments == nil || clients == nil || conversations == nil || messages == nil {
		panic("conversation: processor collaborators cannot be nil")
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		establishments: establishments,
		clients:        clients,
		conversations:  conversations,
		messages:       messages,
		historyLimit:   historyLimit,
		logger:         logger,
	}
}

// Process validates and resolves one envelope. Resolution failures yield an
// ignore result, never an error: a message the pipeline cannot route is
// dropped with a log, not retried.
func (p *Processor) Process(ctx context.Context, env Envelope) (Result, error) {
	msg := env.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return ignored("empty message text"), nil
	}
	if strings.TrimSpace(msg.From) == "" {
		return ignored("missing sender phone"), nil
	}

	establishmentID, err := p.establishments.ResolveByRoutingID(ctx, msg.RoutingID)
	if err != nil {
		p.logger.Warn("dropping message: cannot resolve establishment",
			"error", err,
			"routing_id", msg.RoutingID,
			"envelope_id", env.ID,
		)
		return ignored("unresolved establishment"), nil
	}

	clientID, err := p.clients.GetOrCreateByPhone(ctx, establishmentID, msg.From)
	if err != nil {
		p.logger.Warn("dropping message: cannot resolve client",
			"error", err,
			"from", msg.From,
			"envelope_id", env.ID,
		)
		return ignored("unresolved client"), nil
	}

	conv, err := p.conversations.GetOrCreate(ctx, establishmentID, clientID)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: failed to resolve conversation: %w", err)
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	// Second line of defense behind the webhook dedup cache: the provider
	// message id is unique per delivery, so a redelivered message that
	// slipped past the cache is absorbed here.
	inserted, err := p.messages.AppendInbound(ctx, conv.ID, msg.ProviderMessageID, text, at)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: failed to append inbound message: %w", err)
	}
	if !inserted {
		p.logger.Info("dropping duplicate inbound message",
			"provider_message_id", msg.ProviderMessageID,
			"conversation_id", conv.ID,
		)
		return ignored("duplicate provider message"), nil
	}

	history, err := p.messages.ListRecent(ctx, conv.ID, p.historyLimit)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: failed to load history: %w", err)
	}
	// The turn appended above comes back as the newest history entry; the
	// orchestrator re-adds the current user message itself.
	if n := len(history); n > 0 && history[n-1].Role == RoleUser && history[n-1].Content == text {
		history = history[:n-1]
	}

	return Result{
		Conversation: conv,
		ClientPhone:  msg.From,
		RoutingID:    msg.RoutingID,
		Text:         text,
		History:      history,
	}, nil
}
