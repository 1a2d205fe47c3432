// Package notify fans message.sent events out to offline recipients'
// notification lists.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/chatid"
	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

type NotificationStore interface {
	AddNotification(ctx context.Context, userID, notification string) error
}

type PresenceChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	store    NotificationStore
	presence PresenceChecker
	log      *zap.SugaredLogger
}

func NewService(store NotificationStore, presence PresenceChecker, log *zap.SugaredLogger) *Service {
	return &Service{store: store, presence: presence, log: log}
}

// HandleMessageSent is an events.Handler for the message.sent topic. The
// recipient is the conversation member who is not the sender; online
// recipients see the message live and get no notification.
func (s *Service) HandleMessageSent(ctx context.Context, _ string, value []byte) error {
	var m models.Message
	if err := json.Unmarshal(value, &m); err != nil {
		return fmt.Errorf("decode message.sent: %w", err)
	}
	a, b, err := chatid.Members(m.ConversationID)
	if err != nil {
		return err
	}
	recipient := a
	if recipient == m.SenderID {
		recipient = b
	}
	online, err := s.presence.IsOnline(ctx, recipient)
	if err != nil {
		s.log.Warnw("presence check", "user", recipient, "err", err)
	}
	if online {
		return nil
	}
	note := fmt.Sprintf("new message in %s from %s", m.ConversationID, m.SenderID)
	return s.store.AddNotification(ctx, recipient, note)
}
