package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/pkg/logging"
)

// queueClient abstracts the transport carrying inbound envelopes from the
// webhook boundary to the worker.
type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

func encodeEnvelope(env Envelope) (Envelope, string, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.ReceivedAt.IsZero() {
		env.ReceivedAt = time.Now().UTC()
	}

	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("conversation: failed to encode envelope: %w", err)
	}
	return env, string(body), nil
}

// Publisher enqueues inbound messages for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a publisher over the given queue.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueInbound wraps an inbound message in an envelope and enqueues it,
// returning the envelope id.
func (p *Publisher) EnqueueInbound(ctx context.Context, msg InboundMessage) (string, error) {
	env, body, err := encodeEnvelope(Envelope{Message: msg})
	if err != nil {
		return "", err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return "", err
	}
	p.logger.Debug("inbound message enqueued",
		"envelope_id", env.ID,
		"provider_message_id", msg.ProviderMessageID,
		"routing_id", msg.RoutingID,
	)
	return env.ID, nil
}
