package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

type fakePublisher struct {
	err      error
	messages []conversation.InboundMessage
}

func (f *fakePublisher) EnqueueInbound(_ context.Context, msg conversation.InboundMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, msg)
	return "env-1", nil
}

func newWebhookHandler(pub *fakePublisher, token string) *WhatsAppWebhookHandler {
	return NewWhatsAppWebhookHandler(WhatsAppWebhookConfig{
		Publisher:    pub,
		Deduper:      conversation.NewMemoryDeduper(time.Minute),
		WebhookToken: token,
		Logger:       logging.Default(),
	})
}

func postWebhook(t *testing.T, h *WhatsAppWebhookHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/messages", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)
	return rec
}

const inboundPayload = `{
	"messageId": "wamid-1",
	"instanceId": "instance-1",
	"phone": "5511999990000@c.us",
	"fromMe": false,
	"isGroup": false,
	"momment": 1724790000000,
	"text": {"message": "quero reservar uma mesa"}
}`

func TestWebhookAcceptsInboundMessage(t *testing.T) {
	pub := &fakePublisher{}
	h := newWebhookHandler(pub, "")

	rec := postWebhook(t, h, inboundPayload, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "wamid-1", msg.ProviderMessageID)
	assert.Equal(t, "5511999990000", msg.From)
	assert.Equal(t, "instance-1", msg.RoutingID)
	assert.Equal(t, "quero reservar uma mesa", msg.Text)
	assert.Equal(t, time.UnixMilli(1724790000000).UTC(), msg.Timestamp)
}

func TestWebhookDeduplicatesRedelivery(t *testing.T) {
	pub := &fakePublisher{}
	h := newWebhookHandler(pub, "")

	first := postWebhook(t, h, inboundPayload, nil)
	second := postWebhook(t, h, inboundPayload, nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code, "duplicates still ack so the gateway stops retrying")
	assert.Len(t, pub.messages, 1)
}

func TestWebhookIgnoresOwnAndGroupMessages(t *testing.T) {
	pub := &fakePublisher{}
	h := newWebhookHandler(pub, "")

	own := postWebhook(t, h, `{"messageId":"m1","instanceId":"i1","phone":"5511999990000","fromMe":true,"text":{"message":"oi"}}`, nil)
	group := postWebhook(t, h, `{"messageId":"m2","instanceId":"i1","phone":"5511999990000","isGroup":true,"text":{"message":"oi"}}`, nil)

	assert.Equal(t, http.StatusNoContent, own.Code)
	assert.Equal(t, http.StatusNoContent, group.Code)
	assert.Empty(t, pub.messages)
}

func TestWebhookIgnoresEmptyText(t *testing.T) {
	pub := &fakePublisher{}
	h := newWebhookHandler(pub, "")

	rec := postWebhook(t, h, `{"messageId":"m1","instanceId":"i1","phone":"5511999990000","text":{"message":"   "}}`, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, pub.messages)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	h := newWebhookHandler(&fakePublisher{}, "")

	rec := postWebhook(t, h, "not json", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsBadToken(t *testing.T) {
	pub := &fakePublisher{}
	h := newWebhookHandler(pub, "secret")

	unauthorized := postWebhook(t, h, inboundPayload, nil)
	authorized := postWebhook(t, h, inboundPayload, map[string]string{"X-Webhook-Token": "secret"})

	assert.Equal(t, http.StatusUnauthorized, unauthorized.Code)
	assert.Equal(t, http.StatusOK, authorized.Code)
	assert.Len(t, pub.messages, 1)
}

func TestWebhookEnqueueFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("queue down")}
	h := newWebhookHandler(pub, "")

	rec := postWebhook(t, h, inboundPayload, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
