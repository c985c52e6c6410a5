package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapmesa/zapmesa/pkg/logging"
)

func pendingConversation(t *testing.T, expiresAt time.Time) *Conversation {
	t.Helper()
	conv := &Conversation{
		ID:              uuid.New(),
		EstablishmentID: uuid.New(),
		ClientID:        uuid.New(),
		Mode:            ModeAuto,
	}
	conv.Context.SetPendingAction(uuid.NewString(), PendingKindReservation, expiresAt)
	conv.Context.Data = map[string]any{"pessoas": "4"}
	return conv
}

func TestInterceptorPassesThroughWithoutPendingAction(t *testing.T) {
	repo := &stubConversations{}
	ic := NewInterceptor(repo, logging.Default())

	conv := &Conversation{ID: uuid.New(), Mode: ModeAuto}
	_, intercepted := ic.Intercept(context.Background(), conv, "sim")

	assert.False(t, intercepted)
	assert.Empty(t, repo.contexts)
}

func TestInterceptorConfirmsOnAffirmativeAnswer(t *testing.T) {
	repo := &stubConversations{}
	ic := NewInterceptor(repo, logging.Default())
	conv := pendingConversation(t, time.Now().Add(10*time.Minute))

	for _, answer := range []string{"sim", "Sim!", "pode confirmar", "isso mesmo", "  ok  "} {
		decision, intercepted := ic.Intercept(context.Background(), conv, answer)
		require.True(t, intercepted, "answer %q should intercept", answer)
		assert.Equal(t, HandoverConfirm, decision.Handover, "answer %q", answer)
		assert.True(t, decision.ReservationConfirmed, "answer %q", answer)
		assert.NotEmpty(t, decision.Reply)
		assert.Equal(t, "4", decision.Details["pessoas"])
	}

	// Confirmation leaves the context mutation to the dispatcher.
	assert.Empty(t, repo.contexts)
	assert.True(t, conv.Context.HasPendingAction())
}

func TestInterceptorClearsPendingOnNegativeAnswer(t *testing.T) {
	repo := &stubConversations{}
	ic := NewInterceptor(repo, logging.Default())
	conv := pendingConversation(t, time.Now().Add(10*time.Minute))

	decision, intercepted := ic.Intercept(context.Background(), conv, "não, cancela")

	require.True(t, intercepted)
	assert.Equal(t, HandoverNone, decision.Handover)
	assert.False(t, decision.ReservationConfirmed)
	assert.False(t, conv.Context.HasPendingAction())

	stored, ok := repo.lastContext()
	require.True(t, ok)
	assert.False(t, stored.HasPendingAction())
	assert.Empty(t, stored.State)
}

func TestInterceptorReasksOnAmbiguousAnswer(t *testing.T) {
	repo := &stubConversations{}
	ic := NewInterceptor(repo, logging.Default())
	conv := pendingConversation(t, time.Now().Add(10*time.Minute))

	decision, intercepted := ic.Intercept(context.Background(), conv, "qual o endereço de vocês?")

	require.True(t, intercepted)
	assert.Equal(t, HandoverNone, decision.Handover)
	assert.NotEmpty(t, decision.Reply)
	// Pending action survives so the next answer still counts.
	assert.True(t, conv.Context.HasPendingAction())
	assert.Empty(t, repo.contexts)
}

func TestInterceptorExpiresStalePendingAction(t *testing.T) {
	repo := &stubConversations{}
	ic := NewInterceptor(repo, logging.Default())
	conv := pendingConversation(t, time.Now().Add(10*time.Minute))

	ic.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, intercepted := ic.Intercept(context.Background(), conv, "sim")

	assert.False(t, intercepted, "expired pending action must not capture the answer")
	assert.False(t, conv.Context.HasPendingAction())

	stored, ok := repo.lastContext()
	require.True(t, ok)
	assert.False(t, stored.HasPendingAction())
}

func TestClassifyAnswer(t *testing.T) {
	cases := []struct {
		in   string
		want answerKind
	}{
		{"sim", answerYes},
		{"SIM", answerYes},
		{"pode sim", answerYes},
		{"quero", answerYes},
		{"não", answerNo},
		{"nao", answerNo},
		{"não quero", answerNo},
		{"cancela por favor", answerNo},
		{"talvez", answerUnknown},
		{"sims", answerUnknown},
		{"", answerUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyAnswer(tc.in), "input %q", tc.in)
	}
}
