// Package realtime folds live document-store subscriptions into local
// keyed state: the user directory, the viewer's conversation index and
// private document, and the active conversation's message stream.
package realtime

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/chatid"
	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
	"github.com/joeldelcastillo/verndale-chat-app/internal/store"
)

// ErrNotMember is returned when a viewer selects a conversation they do
// not belong to.
var ErrNotMember = errors.New("viewer is not a member of the conversation")

// Phase tracks the view-model state of the active conversation.
type Phase string

const (
	PhaseNoConversation       Phase = "no_conversation"
	PhaseConversationSelected Phase = "conversation_selected"
	PhaseMessagesLoading      Phase = "messages_loading"
	PhaseMessagesSynced       Phase = "messages_synced"
)

// Source is the subscription surface the syncer consumes. The store layer
// provides the Mongo-backed implementation; tests substitute fakes.
type Source interface {
	WatchUsers(ctx context.Context, fn func([]models.User)) (store.Unsubscribe, error)
	WatchConversations(ctx context.Context, memberID string, fn func([]models.Conversation)) (store.Unsubscribe, error)
	WatchMessages(ctx context.Context, conversationID string, fn func([]models.Message)) (store.Unsubscribe, error)
	WatchPrivateUser(ctx context.Context, userID string, fn func(models.PrivateUser)) (store.Unsubscribe, error)
}

// Update describes a state change worth pushing to a consumer.
type Update struct {
	Kind           string `json:"kind"` // users | conversations | messages | private | phase
	ConversationID string `json:"conversation_id,omitempty"`
}

// Syncer owns one viewer's live views. All merges are by key and
// idempotent, so batch redelivery cannot corrupt state; it can only cause
// transient staleness. Conversations removed server-side are never removed
// locally (overwrite-only merge, no tombstones).
type Syncer struct {
	viewerID string
	src      Source
	log      *zap.SugaredLogger

	mu            sync.Mutex
	users         map[string]models.User
	conversations map[string]models.Conversation
	messages      map[string]map[string]models.Message
	private       models.PrivateUser
	phase         Phase
	activeID      string
	epoch         int

	unsubUsers   store.Unsubscribe
	unsubConvs   store.Unsubscribe
	unsubPrivate store.Unsubscribe
	unsubMsgs    store.Unsubscribe

	updates chan Update
}

func NewSyncer(viewerID string, src Source, log *zap.SugaredLogger) *Syncer {
	return &Syncer{
		viewerID:      viewerID,
		src:           src,
		log:           log,
		users:         make(map[string]models.User),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string]map[string]models.Message),
		phase:         PhaseNoConversation,
		updates:       make(chan Update, 64),
	}
}

// Run establishes the directory, conversation-index, and private-document
// subscriptions.
func (s *Syncer) Run(ctx context.Context) error {
	unsubUsers, err := s.src.WatchUsers(ctx, s.mergeUsers)
	if err != nil {
		return err
	}
	unsubConvs, err := s.src.WatchConversations(ctx, s.viewerID, s.mergeConversations)
	if err != nil {
		unsubUsers()
		return err
	}
	unsubPrivate, err := s.src.WatchPrivateUser(ctx, s.viewerID, s.mergePrivate)
	if err != nil {
		unsubUsers()
		unsubConvs()
		return err
	}
	s.mu.Lock()
	s.unsubUsers = unsubUsers
	s.unsubConvs = unsubConvs
	s.unsubPrivate = unsubPrivate
	s.mu.Unlock()
	return nil
}

// SetActive switches the active conversation. The previous message
// subscription is cancelled before the new one is established, and its
// epoch is retired so a late batch for the old conversation cannot write
// into local state after the switch. A conversation the viewer does not
// belong to is rejected before any state changes.
func (s *Syncer) SetActive(ctx context.Context, conversationID string) error {
	if conversationID != "" {
		a, b, err := chatid.Members(conversationID)
		if err != nil {
			return err
		}
		if s.viewerID != a && s.viewerID != b {
			return ErrNotMember
		}
	}
	s.mu.Lock()
	if s.unsubMsgs != nil {
		s.unsubMsgs()
		s.unsubMsgs = nil
	}
	s.epoch++
	epoch := s.epoch
	s.activeID = conversationID
	if conversationID == "" {
		s.phase = PhaseNoConversation
		s.mu.Unlock()
		s.push(Update{Kind: "phase"})
		return nil
	}
	s.phase = PhaseConversationSelected
	s.mu.Unlock()

	unsub, err := s.src.WatchMessages(ctx, conversationID, func(batch []models.Message) {
		s.mergeMessages(epoch, batch)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if epoch != s.epoch {
		// switched again while subscribing; this subscription lost
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsubMsgs = unsub
	s.phase = PhaseMessagesLoading
	s.mu.Unlock()
	s.push(Update{Kind: "phase", ConversationID: conversationID})
	return nil
}

// Close tears down every subscription. The syncer is done afterwards.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubUsers != nil {
		s.unsubUsers()
		s.unsubUsers = nil
	}
	if s.unsubConvs != nil {
		s.unsubConvs()
		s.unsubConvs = nil
	}
	if s.unsubPrivate != nil {
		s.unsubPrivate()
		s.unsubPrivate = nil
	}
	if s.unsubMsgs != nil {
		s.unsubMsgs()
		s.unsubMsgs = nil
	}
	s.epoch++
	s.phase = PhaseNoConversation
}

// Updates exposes change notifications. Sends never block; a slow consumer
// just misses intermediate updates and resyncs from the snapshot accessors.
func (s *Syncer) Updates() <-chan Update {
	return s.updates
}

func (s *Syncer) push(u Update) {
	select {
	case s.updates <- u:
	default:
	}
}

func (s *Syncer) mergeUsers(batch []models.User) {
	s.mu.Lock()
	for _, u := range batch {
		s.users[u.ID] = u
	}
	s.mu.Unlock()
	s.push(Update{Kind: "users"})
}

func (s *Syncer) mergeConversations(batch []models.Conversation) {
	s.mu.Lock()
	for _, c := range batch {
		s.conversations[c.ID] = c
	}
	s.mu.Unlock()
	s.push(Update{Kind: "conversations"})
}

func (s *Syncer) mergePrivate(p models.PrivateUser) {
	s.mu.Lock()
	s.private = p
	s.mu.Unlock()
	s.push(Update{Kind: "private"})
}

func (s *Syncer) mergeMessages(epoch int, batch []models.Message) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.log.Debugw("dropping late message batch", "epoch", epoch, "size", len(batch))
		return
	}
	active := s.activeID
	for _, m := range batch {
		bucket := s.messages[m.ConversationID]
		if bucket == nil {
			bucket = make(map[string]models.Message)
			s.messages[m.ConversationID] = bucket
		}
		bucket[m.ID] = m
	}
	if s.phase == PhaseMessagesLoading {
		s.phase = PhaseMessagesSynced
	}
	s.mu.Unlock()
	s.push(Update{Kind: "messages", ConversationID: active})
}

// Users returns a copy of the directory view.
func (s *Syncer) Users() map[string]models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.User, len(s.users))
	for k, v := range s.users {
		out[k] = v
	}
	return out
}

// Conversations returns a copy of the conversation index.
func (s *Syncer) Conversations() map[string]models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Conversation, len(s.conversations))
	for k, v := range s.conversations {
		out[k] = v
	}
	return out
}

// Messages returns a conversation's messages ordered by creation time.
// Order is derived here, not maintained by the store.
func (s *Syncer) Messages(conversationID string) []models.Message {
	s.mu.Lock()
	bucket := s.messages[conversationID]
	out := make([]models.Message, 0, len(bucket))
	for _, m := range bucket {
		out = append(out, m)
	}
	s.mu.Unlock()
	models.SortByCreation(out)
	return out
}

// Private returns the viewer's private document (notifications, chat list).
func (s *Syncer) Private() models.PrivateUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.private
}

func (s *Syncer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Syncer) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}
