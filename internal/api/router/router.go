package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zapmesa/zapmesa/internal/http/handlers"
	httpmiddleware "github.com/zapmesa/zapmesa/internal/http/middleware"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	WhatsAppWebhooks    *handlers.WhatsAppWebhookHandler
	ConversationHandler *handlers.ConversationHandler
	MetricsHandler      http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.WhatsAppWebhooks != nil {
		r.Post("/webhooks/whatsapp/messages", cfg.WhatsAppWebhooks.HandleMessage)
	}
	if cfg.ConversationHandler != nil {
		r.Get("/conversations/{conversationID}/messages", cfg.ConversationHandler.GetMessages)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
