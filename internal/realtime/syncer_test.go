package realtime

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
	"github.com/joeldelcastillo/verndale-chat-app/internal/store"
)

// fakeSource hands the delivery callbacks back to the test so batches can
// be injected by hand, including after unsubscribe.
type fakeSource struct {
	userFn    func([]models.User)
	convFn    func([]models.Conversation)
	privateFn func(models.PrivateUser)

	msgSubs  []*msgSub
	unsubbed map[string]int
}

type msgSub struct {
	conversationID string
	fn             func([]models.Message)
	cancelled      bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{unsubbed: make(map[string]int)}
}

func (f *fakeSource) WatchUsers(_ context.Context, fn func([]models.User)) (store.Unsubscribe, error) {
	f.userFn = fn
	return func() {}, nil
}

func (f *fakeSource) WatchConversations(_ context.Context, _ string, fn func([]models.Conversation)) (store.Unsubscribe, error) {
	f.convFn = fn
	return func() {}, nil
}

func (f *fakeSource) WatchPrivateUser(_ context.Context, _ string, fn func(models.PrivateUser)) (store.Unsubscribe, error) {
	f.privateFn = fn
	return func() {}, nil
}

func (f *fakeSource) WatchMessages(_ context.Context, conversationID string, fn func([]models.Message)) (store.Unsubscribe, error) {
	sub := &msgSub{conversationID: conversationID, fn: fn}
	f.msgSubs = append(f.msgSubs, sub)
	return func() {
		sub.cancelled = true
		f.unsubbed[conversationID]++
	}, nil
}

func newTestSyncer(t *testing.T, src Source) *Syncer {
	t.Helper()
	s := NewSyncer("alice", src, zap.NewNop().Sugar())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return s
}

func TestMergeIdempotentUnderRedelivery(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(t, src)
	defer s.Close()

	users := []models.User{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}}
	convs := []models.Conversation{{ID: "alice+bob", Members: []string{"alice", "bob"}}}

	src.userFn(users)
	src.convFn(convs)
	once := len(s.Users())
	onceConvs := len(s.Conversations())

	// redeliver the same batches
	src.userFn(users)
	src.convFn(convs)

	if got := len(s.Users()); got != once {
		t.Errorf("user count changed on redelivery: %d -> %d", once, got)
	}
	if got := len(s.Conversations()); got != onceConvs {
		t.Errorf("conversation count changed on redelivery: %d -> %d", onceConvs, got)
	}
	if s.Users()["bob"].Name != "Bob" {
		t.Error("directory entry lost on redelivery")
	}
}

func TestMessageMergeIdempotentAndSorted(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(t, src)
	defer s.Close()

	if err := s.SetActive(context.Background(), "alice+bob"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	// delivered out of order, with a duplicate
	batch := []models.Message{
		{ID: "m3", ConversationID: "alice+bob", SenderID: "bob", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "m1", ConversationID: "alice+bob", SenderID: "alice", CreatedAt: base},
		{ID: "m2", ConversationID: "alice+bob", SenderID: "alice", CreatedAt: base.Add(time.Minute)},
		{ID: "m1", ConversationID: "alice+bob", SenderID: "alice", CreatedAt: base},
	}
	sub := src.msgSubs[0]
	sub.fn(batch)
	sub.fn(batch) // redelivery

	got := s.Messages("alice+bob")
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if got[i].ID != want {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestSwitchCancelsPreviousSubscription(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(t, src)
	defer s.Close()

	ctx := context.Background()
	if err := s.SetActive(ctx, "alice+bob"); err != nil {
		t.Fatal(err)
	}
	subA := src.msgSubs[0]
	subA.fn([]models.Message{{ID: "m1", ConversationID: "alice+bob", CreatedAt: time.Now()}})

	if err := s.SetActive(ctx, "alice+carol"); err != nil {
		t.Fatal(err)
	}
	if !subA.cancelled {
		t.Fatal("previous subscription not cancelled on switch")
	}
	if src.unsubbed["alice+bob"] != 1 {
		t.Fatalf("unsubscribe count for previous conversation = %d", src.unsubbed["alice+bob"])
	}

	// a late batch for the previous conversation must not mutate its bucket
	subA.fn([]models.Message{{ID: "m2", ConversationID: "alice+bob", CreatedAt: time.Now()}})
	if got := len(s.Messages("alice+bob")); got != 1 {
		t.Errorf("late batch mutated previous bucket: %d messages", got)
	}
}

func TestSetActiveRejectsNonMember(t *testing.T) {
	src := newFakeSource()
	s := NewSyncer("mallory", src, zap.NewNop().Sugar())
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.SetActive(context.Background(), "alice+bob"); err != ErrNotMember {
		t.Fatalf("SetActive for a foreign conversation: err = %v, want ErrNotMember", err)
	}
	if len(src.msgSubs) != 0 {
		t.Error("message subscription opened for a non-member")
	}
	if got := len(s.Messages("alice+bob")); got != 0 {
		t.Errorf("non-member can read %d messages", got)
	}
	if s.Phase() != PhaseNoConversation {
		t.Errorf("phase advanced to %q on rejected select", s.Phase())
	}

	if err := s.SetActive(context.Background(), "not-a-pair-id"); err == nil {
		t.Error("malformed conversation id accepted")
	}
}

func TestPrivateViewFollowsDocument(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(t, src)
	defer s.Close()

	src.privateFn(models.PrivateUser{ID: "alice", Chats: []string{"alice+bob"}})
	if got := s.Private().Chats; len(got) != 1 || got[0] != "alice+bob" {
		t.Fatalf("private chats = %v", got)
	}
	src.privateFn(models.PrivateUser{ID: "alice", Chats: []string{"alice+bob", "alice+carol"}, Notifications: []string{"n1"}})
	p := s.Private()
	if len(p.Chats) != 2 || len(p.Notifications) != 1 {
		t.Errorf("private view not overwritten: %+v", p)
	}
}

func TestPhaseTransitions(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(t, src)
	defer s.Close()

	if s.Phase() != PhaseNoConversation {
		t.Fatalf("initial phase %q", s.Phase())
	}
	if err := s.SetActive(context.Background(), "alice+bob"); err != nil {
		t.Fatal(err)
	}
	if s.Phase() != PhaseMessagesLoading {
		t.Fatalf("after select: %q", s.Phase())
	}
	src.msgSubs[0].fn([]models.Message{{ID: "m1", ConversationID: "alice+bob"}})
	if s.Phase() != PhaseMessagesSynced {
		t.Fatalf("after first batch: %q", s.Phase())
	}
	if err := s.SetActive(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if s.Phase() != PhaseNoConversation {
		t.Fatalf("after deselect: %q", s.Phase())
	}
}

func TestCloseRetiresSubscriptions(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(t, src)

	if err := s.SetActive(context.Background(), "alice+bob"); err != nil {
		t.Fatal(err)
	}
	sub := src.msgSubs[0]
	s.Close()
	if !sub.cancelled {
		t.Error("message subscription survived Close")
	}
	sub.fn([]models.Message{{ID: "m9", ConversationID: "alice+bob"}})
	if got := len(s.Messages("alice+bob")); got != 0 {
		t.Errorf("batch after Close mutated state: %d messages", got)
	}
}

func TestUpdatesAreCoalescedNotBlocking(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(t, src)
	defer s.Close()

	// more merges than the channel buffers; none may block
	for i := 0; i < 200; i++ {
		src.userFn([]models.User{{ID: "alice"}})
	}
	select {
	case u := <-s.Updates():
		if u.Kind != "users" {
			t.Errorf("unexpected update kind %q", u.Kind)
		}
	default:
		t.Error("expected at least one buffered update")
	}
}
