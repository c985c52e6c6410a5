package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/zapmesa/zapmesa/internal/conversation"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEstablishmentStoreResolve(t *testing.T) {
	mock := newMock(t)
	establishmentID := uuid.New()

	mock.ExpectQuery("SELECT establishment_id").
		WithArgs("instance-1").
		WillReturnRows(pgxmock.NewRows([]string{"establishment_id"}).AddRow(establishmentID))

	store := NewEstablishmentStore(mock)
	got, err := store.ResolveByRoutingID(context.Background(), "instance-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != establishmentID {
		t.Fatalf("expected %s, got %s", establishmentID, got)
	}
	expectationsMet(t, mock)
}

func TestEstablishmentStoreResolveUnknown(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("SELECT establishment_id").
		WithArgs("ghost").
		WillReturnError(context.DeadlineExceeded)

	store := NewEstablishmentStore(mock)
	if _, err := store.ResolveByRoutingID(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEstablishmentStoreGetAlertContacts(t *testing.T) {
	mock := newMock(t)
	establishmentID := uuid.New()

	mock.ExpectQuery("SELECT name, alert_phone, alert_email").
		WithArgs(establishmentID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "alert_phone", "alert_email"}).
			AddRow("Bar do Zé", "5511888880000", "ze@bar.com"))

	store := NewEstablishmentStore(mock)
	contacts, err := store.GetAlertContacts(context.Background(), establishmentID)
	if err != nil {
		t.Fatalf("get alert contacts: %v", err)
	}
	if contacts.Phone != "5511888880000" || contacts.Email != "ze@bar.com" {
		t.Fatalf("unexpected contacts: %#v", contacts)
	}
	expectationsMet(t, mock)
}

func TestClientStoreGetOrCreate(t *testing.T) {
	mock := newMock(t)
	establishmentID := uuid.New()
	clientID := uuid.New()

	mock.ExpectQuery("INSERT INTO clients").
		WithArgs(pgxmock.AnyArg(), establishmentID, "5511999990000").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(clientID))

	store := NewClientStore(mock)
	got, err := store.GetOrCreateByPhone(context.Background(), establishmentID, "5511999990000")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if got != clientID {
		t.Fatalf("expected %s, got %s", clientID, got)
	}
	expectationsMet(t, mock)
}

func TestConversationStoreGetOrCreate(t *testing.T) {
	mock := newMock(t)
	establishmentID := uuid.New()
	clientID := uuid.New()
	convID := uuid.New()
	now := time.Now()

	storedCtx, _ := json.Marshal(conversation.Context{
		State:             conversation.StateAwaitingConfirmation,
		PendingActionID:   "pending-1",
		PendingActionKind: conversation.PendingKindReservation,
	})

	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(pgxmock.AnyArg(), establishmentID, clientID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "mode", "agent_id", "context", "created_at", "updated_at"}).
			AddRow(convID, "auto", (*uuid.UUID)(nil), storedCtx, now, now))

	store := NewConversationStore(mock)
	conv, err := store.GetOrCreate(context.Background(), establishmentID, clientID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if conv.ID != convID {
		t.Fatalf("expected %s, got %s", convID, conv.ID)
	}
	if conv.Mode != conversation.ModeAuto {
		t.Fatalf("expected auto mode, got %s", conv.Mode)
	}
	if !conv.Context.HasPendingAction() {
		t.Fatal("expected pending action from stored context")
	}
	expectationsMet(t, mock)
}

func TestConversationStoreUpdateMode(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()

	mock.ExpectExec("UPDATE conversations").
		WithArgs(convID, "human", (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewConversationStore(mock)
	if err := store.UpdateMode(context.Background(), convID, conversation.ModeHuman, nil); err != nil {
		t.Fatalf("update mode: %v", err)
	}
	expectationsMet(t, mock)
}

func TestConversationStoreUpdateModeMissingRow(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()

	mock.ExpectExec("UPDATE conversations").
		WithArgs(convID, "human", (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewConversationStore(mock)
	if err := store.UpdateMode(context.Background(), convID, conversation.ModeHuman, nil); err == nil {
		t.Fatal("expected error for missing conversation")
	}
}

func TestConversationStoreUpdateContext(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()

	mock.ExpectExec("UPDATE conversations").
		WithArgs(convID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewConversationStore(mock)
	c := conversation.Context{}
	c.SetPendingAction("pending-1", conversation.PendingKindReservation, time.Now().Add(10*time.Minute))
	if err := store.UpdateContext(context.Background(), convID, c); err != nil {
		t.Fatalf("update context: %v", err)
	}
	expectationsMet(t, mock)
}

func TestMessageStoreAppendInbound(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()
	at := time.Now()

	// The partial unique index is only usable as arbiter when the statement
	// repeats its predicate; pin the full clause so a drift fails here.
	mock.ExpectExec(`(?s)INSERT INTO messages.*ON CONFLICT \(provider_message_id\) WHERE provider_message_id IS NOT NULL DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), convID, "oi", "wamid-1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewMessageStore(mock)
	inserted, err := store.AppendInbound(context.Background(), convID, "wamid-1", "oi", at)
	if err != nil {
		t.Fatalf("append inbound: %v", err)
	}
	if !inserted {
		t.Fatal("expected insert")
	}
	expectationsMet(t, mock)
}

func TestMessageStoreAppendInboundDuplicate(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()
	at := time.Now()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(pgxmock.AnyArg(), convID, "oi", "wamid-1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := NewMessageStore(mock)
	inserted, err := store.AppendInbound(context.Background(), convID, "wamid-1", "oi", at)
	if err != nil {
		t.Fatalf("append inbound: %v", err)
	}
	if inserted {
		t.Fatal("duplicate insert should report false")
	}
}

func TestMessageStoreListRecent(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()

	mock.ExpectQuery("SELECT role, content FROM").
		WithArgs(convID, 10).
		WillReturnRows(pgxmock.NewRows([]string{"role", "content"}).
			AddRow("user", "oi").
			AddRow("assistant", "Olá!"))

	store := NewMessageStore(mock)
	messages, err := store.ListRecent(context.Background(), convID, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Content != "Olá!" {
		t.Fatalf("unexpected messages: %#v", messages)
	}
	expectationsMet(t, mock)
}

func TestReservationStoreConfirmPending(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()

	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(pgxmock.AnyArg(), convID, "pending-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewReservationStore(mock)
	created, err := store.ConfirmPending(context.Background(), convID, "pending-1", map[string]any{"pessoas": "4"})
	if err != nil {
		t.Fatalf("confirm pending: %v", err)
	}
	if !created {
		t.Fatal("expected reservation to be created")
	}
	expectationsMet(t, mock)
}

func TestReservationStoreConfirmPendingReplay(t *testing.T) {
	mock := newMock(t)
	convID := uuid.New()

	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(pgxmock.AnyArg(), convID, "pending-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := NewReservationStore(mock)
	created, err := store.ConfirmPending(context.Background(), convID, "pending-1", nil)
	if err != nil {
		t.Fatalf("confirm pending: %v", err)
	}
	if created {
		t.Fatal("replayed confirmation must not create a second reservation")
	}
}
