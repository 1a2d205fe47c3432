// Package chat implements the send/create protocol: conversations are
// created lazily on the first message between a pair, membership is
// registered on both sides, and the conversation summary is kept in step
// with the newest message.
package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/chatid"
	"github.com/joeldelcastillo/verndale-chat-app/internal/metrics"
	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

type ConversationStore interface {
	SetMerge(ctx context.Context, c *models.Conversation) (created bool, err error)
	UpdateLastMessage(ctx context.Context, id string, m models.Message, updatedBy string) error
	ListAll(ctx context.Context) ([]models.Conversation, error)
}

type MembershipStore interface {
	AddChat(ctx context.Context, userID, conversationID string) error
}

type MessageStore interface {
	Add(ctx context.Context, m *models.Message) (*models.Message, error)
}

type Publisher interface {
	PublishMessageSent(ctx context.Context, m *models.Message) error
}

type Service struct {
	convs    ConversationStore
	members  MembershipStore
	messages MessageStore
	pub      Publisher
	log      *zap.SugaredLogger
}

func NewService(convs ConversationStore, members MembershipStore, messages MessageStore, pub Publisher, log *zap.SugaredLogger) *Service {
	return &Service{convs: convs, members: members, messages: messages, pub: pub, log: log}
}

// Send delivers a message from sender to otherUser. If the pair has no
// conversation yet, one is created at the derived id and registered into
// both participants' private chat lists before the message is appended.
//
// Writes are sequential and awaited. The two membership registrations are
// idempotent appends; a failure there is logged and left to the
// reconciliation sweep rather than failing the send. A failed message
// append is returned to the caller.
func (s *Service) Send(ctx context.Context, senderID, otherUserID, body, msgType string, hasExisting bool) (*models.Message, error) {
	conversationID, err := chatid.PairID(senderID, otherUserID)
	if err != nil {
		return nil, err
	}

	if !hasExisting {
		if err := s.ensureConversation(ctx, conversationID, senderID, otherUserID); err != nil {
			return nil, err
		}
	}

	msg := models.Message{
		ConversationID: conversationID,
		Body:           body,
		SenderID:       senderID,
		Type:           msgType,
		CreatedAt:      time.Now().UTC(),
	}
	msg.Normalize()

	if err := s.convs.UpdateLastMessage(ctx, conversationID, msg, senderID); err != nil {
		return nil, err
	}

	stored, err := s.messages.Add(ctx, &msg)
	if err != nil {
		return nil, err
	}

	if err := s.pub.PublishMessageSent(ctx, stored); err != nil {
		s.log.Warnw("publish message.sent", "conversation", conversationID, "err", err)
	}
	metrics.MessagesSent.Inc()
	return stored, nil
}

func (s *Service) ensureConversation(ctx context.Context, conversationID, senderID, otherUserID string) error {
	conv := &models.Conversation{
		ID:        conversationID,
		Members:   []string{senderID, otherUserID},
		CreatedBy: senderID,
		UpdatedBy: senderID,
	}
	created, err := s.convs.SetMerge(ctx, conv)
	if err != nil {
		return err
	}
	if created {
		metrics.ConversationsCreated.Inc()
	}
	for _, uid := range conv.Members {
		if err := s.members.AddChat(ctx, uid, conversationID); err != nil {
			s.log.Warnw("register membership", "user", uid, "conversation", conversationID, "err", err)
		}
	}
	return nil
}

// Reconcile sweeps every conversation and re-registers its id into each
// member's private chat list. Appends are idempotent, so running the sweep
// repeatedly is harmless; it exists to repair the partial failures the
// non-transactional create path can leave behind.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	convs, err := s.convs.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, c := range convs {
		for _, uid := range c.Members {
			if err := s.members.AddChat(ctx, uid, c.ID); err != nil {
				s.log.Warnw("reconcile membership", "user", uid, "conversation", c.ID, "err", err)
				continue
			}
			repaired++
		}
	}
	return repaired, nil
}

// RunReconcileLoop runs the sweep on a fixed interval until ctx is done.
func (s *Service) RunReconcileLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Reconcile(ctx); err != nil {
				s.log.Errorw("reconcile sweep", "err", err)
			}
		}
	}
}
