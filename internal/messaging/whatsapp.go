package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

// WhatsAppSender posts text messages through the WhatsApp gateway's
// send-text endpoint.
type WhatsAppSender struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
	tracer     trace.Tracer
}

// NewWhatsAppSender builds a sender for the configured gateway instance.
func NewWhatsAppSender(baseURL, token string, logger *logging.Logger) *WhatsAppSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		tracer: otel.Tracer("zapmesa.internal.messaging.whatsapp"),
	}
}

var _ conversation.Messenger = (*WhatsAppSender)(nil)

// SendText dispatches one message, retrying transient failures.
func (s *WhatsAppSender) SendText(ctx context.Context, to, text string) error {
	if s.baseURL == "" {
		return errors.New("messaging: whatsapp base url missing")
	}
	phone := NormalizePhone(to)
	if phone == "" {
		return errors.New("messaging: recipient phone required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("messaging: text required")
	}

	ctx, span := s.tracer.Start(ctx, "messaging.whatsapp.send")
	defer span.End()
	span.SetAttributes(attribute.String("zapmesa.to", phone))

	payload, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": text,
	})
	if err != nil {
		return fmt.Errorf("messaging: failed to marshal whatsapp payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send-text", bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")
		if s.token != "" {
			req.Header.Set("Client-Token", s.token)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("whatsapp message sent", "to", phone)
				return nil
			}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				// Client errors do not get better on retry.
				err := fmt.Errorf("messaging: whatsapp send rejected: status %d, body: %s", resp.StatusCode, body)
				span.RecordError(err)
				return err
			}
			lastErr = fmt.Errorf("messaging: whatsapp send failed: status %d", resp.StatusCode)
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		s.logger.Error("failed to send whatsapp message", "error", lastErr, "to", phone)
	}
	return lastErr
}
