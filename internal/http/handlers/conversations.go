package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

const defaultTranscriptLimit = 50

// ConversationHandler serves read-only transcript access for operators.
type ConversationHandler struct {
	messages conversation.MessageRepository
	logger   *logging.Logger
}

func NewConversationHandler(messages conversation.MessageRepository, logger *logging.Logger) *ConversationHandler {
	if messages == nil {
		panic("handlers: message repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationHandler{messages: messages, logger: logger}
}

// GetMessages returns the recent transcript for a conversation.
// GET /conversations/{conversationID}/messages?limit=50
func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	limit := defaultTranscriptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	messages, err := h.messages.ListRecent(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err, "conversation_id", conversationID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"conversation_id": conversationID,
		"messages":        messages,
	}); err != nil {
		h.logger.Error("failed to encode transcript", "error", err)
	}
}
