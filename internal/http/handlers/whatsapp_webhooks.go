package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/internal/messaging"
	observemetrics "github.com/zapmesa/zapmesa/internal/observability/metrics"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

const maxWebhookBody = 1 << 20

type inboundPublisher interface {
	EnqueueInbound(ctx context.Context, msg conversation.InboundMessage) (string, error)
}

// WhatsAppWebhookHandler receives inbound message callbacks from the
// WhatsApp gateway. It answers fast: gate duplicates, enqueue, 200.
type WhatsAppWebhookHandler struct {
	publisher    inboundPublisher
	deduper      conversation.Deduper
	webhookToken string
	logger       *logging.Logger
	metrics      *observemetrics.ConversationMetrics
}

type WhatsAppWebhookConfig struct {
	Publisher    inboundPublisher
	Deduper      conversation.Deduper
	WebhookToken string
	Logger       *logging.Logger
	Metrics      *observemetrics.ConversationMetrics
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Publisher == nil {
		panic("handlers: publisher cannot be nil")
	}
	if cfg.Deduper == nil {
		panic("handlers: deduper cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		publisher:    cfg.Publisher,
		deduper:      cfg.Deduper,
		webhookToken: cfg.WebhookToken,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
}

// whatsappEvent is the gateway's inbound message callback payload.
type whatsappEvent struct {
	MessageID  string `json:"messageId"`
	InstanceID string `json:"instanceId"`
	Phone      string `json:"phone"`
	FromMe     bool   `json:"fromMe"`
	IsGroup    bool   `json:"isGroup"`
	Momment    int64  `json:"momment"` // epoch millis, gateway spelling
	Text       struct {
		Message string `json:"message"`
	} `json:"text"`
}

// HandleMessage processes one inbound message callback.
func (h *WhatsAppWebhookHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if h.webhookToken != "" && r.Header.Get("X-Webhook-Token") != h.webhookToken {
		h.logger.Warn("rejected webhook with bad token", "remote_ip", r.RemoteAddr)
		h.metrics.ObserveWebhook("unauthorized")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var evt whatsappEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		h.metrics.ObserveWebhook("malformed")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Echoes of our own sends and group chatter are not conversations.
	if evt.FromMe || evt.IsGroup {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if strings.TrimSpace(evt.Text.Message) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !h.deduper.TryRegister(r.Context(), evt.MessageID) {
		h.logger.Info("duplicate webhook delivery", "provider_message_id", evt.MessageID)
		h.metrics.ObserveWebhook("duplicate")
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := conversation.InboundMessage{
		ProviderMessageID: evt.MessageID,
		From:              messaging.NormalizePhone(evt.Phone),
		Text:              evt.Text.Message,
		RoutingID:         evt.InstanceID,
	}
	if evt.Momment > 0 {
		msg.Timestamp = time.UnixMilli(evt.Momment).UTC()
	}

	envelopeID, err := h.publisher.EnqueueInbound(r.Context(), msg)
	if err != nil {
		h.logger.Error("failed to enqueue inbound message", "error", err, "provider_message_id", evt.MessageID)
		h.metrics.ObserveWebhook("enqueue_failed")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("inbound message accepted",
		"provider_message_id", evt.MessageID,
		"envelope_id", envelopeID,
		"routing_id", evt.InstanceID,
	)
	h.metrics.ObserveWebhook("accepted")
	w.WriteHeader(http.StatusOK)
}
