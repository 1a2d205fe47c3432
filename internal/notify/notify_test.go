package notify

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

type fakeNotifications struct {
	notes map[string][]string
}

func (f *fakeNotifications) AddNotification(_ context.Context, userID, n string) error {
	if f.notes == nil {
		f.notes = make(map[string][]string)
	}
	f.notes[userID] = append(f.notes[userID], n)
	return nil
}

type fakePresence struct {
	online map[string]bool
}

func (f *fakePresence) IsOnline(_ context.Context, userID string) (bool, error) {
	return f.online[userID], nil
}

func payload(t *testing.T, m models.Message) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestOfflineRecipientGetsNotification(t *testing.T) {
	store := &fakeNotifications{}
	svc := NewService(store, &fakePresence{online: map[string]bool{"alice": true}}, zap.NewNop().Sugar())

	m := models.Message{ConversationID: "alice+bob", SenderID: "alice", Body: "hi"}
	if err := svc.HandleMessageSent(context.Background(), "", payload(t, m)); err != nil {
		t.Fatalf("HandleMessageSent: %v", err)
	}
	if len(store.notes["bob"]) != 1 {
		t.Errorf("bob's notifications: %v", store.notes["bob"])
	}
	if len(store.notes["alice"]) != 0 {
		t.Error("sender must not be notified")
	}
}

func TestOnlineRecipientSkipped(t *testing.T) {
	store := &fakeNotifications{}
	svc := NewService(store, &fakePresence{online: map[string]bool{"bob": true}}, zap.NewNop().Sugar())

	m := models.Message{ConversationID: "alice+bob", SenderID: "alice", Body: "hi"}
	if err := svc.HandleMessageSent(context.Background(), "", payload(t, m)); err != nil {
		t.Fatal(err)
	}
	if len(store.notes) != 0 {
		t.Errorf("online recipient notified: %v", store.notes)
	}
}

func TestMalformedEvents(t *testing.T) {
	svc := NewService(&fakeNotifications{}, &fakePresence{}, zap.NewNop().Sugar())
	if err := svc.HandleMessageSent(context.Background(), "", []byte("{oops")); err == nil {
		t.Error("expected decode error")
	}
	m := models.Message{ConversationID: "not-a-pair", SenderID: "alice"}
	if err := svc.HandleMessageSent(context.Background(), "", payload(t, m)); err == nil {
		t.Error("expected malformed conversation id error")
	}
}
