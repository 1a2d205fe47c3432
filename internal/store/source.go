package store

import (
	"context"

	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

// The methods below let Collections satisfy the sync layer's Source
// interface without the sync layer importing Mongo types.

func (c *Collections) WatchUsers(ctx context.Context, fn func([]models.User)) (Unsubscribe, error) {
	return c.Users.Watch(ctx, fn)
}

func (c *Collections) WatchConversations(ctx context.Context, memberID string, fn func([]models.Conversation)) (Unsubscribe, error) {
	return c.Conversations.WatchForMember(ctx, memberID, fn)
}

func (c *Collections) WatchMessages(ctx context.Context, conversationID string, fn func([]models.Message)) (Unsubscribe, error) {
	return c.Messages.Watch(ctx, conversationID, fn)
}

func (c *Collections) WatchPrivateUser(ctx context.Context, userID string, fn func(models.PrivateUser)) (Unsubscribe, error) {
	return c.PrivateUsers.Watch(ctx, userID, fn)
}
