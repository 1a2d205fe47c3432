// Package store is the document-store boundary: typed repositories over
// MongoDB collections with realtime change subscriptions. Store errors
// propagate to callers unchanged; retry policy belongs to the driver.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joeldelcastillo/verndale-chat-app/internal/config"
)

// Unsubscribe tears down a live subscription. Safe to call more than once.
type Unsubscribe func()

func NewMongoClient(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// Collections bundles the typed repositories over one database.
type Collections struct {
	Users         *UserRepo
	PrivateUsers  *PrivateUserRepo
	Conversations *ConversationRepo
	Messages      *MessageRepo
	Credentials   *CredentialRepo
}

func NewCollections(client *mongo.Client, cfg *config.Config) *Collections {
	db := client.Database(cfg.Mongo.Database)
	c := &Collections{
		Users:         NewUserRepo(db.Collection(cfg.Mongo.UsersCollection)),
		PrivateUsers:  NewPrivateUserRepo(db.Collection(cfg.Mongo.PrivateUsersCollection)),
		Conversations: NewConversationRepo(db.Collection(cfg.Mongo.ConversationsCollection)),
		Messages:      NewMessageRepo(db.Collection(cfg.Mongo.MessagesCollection)),
		Credentials:   NewCredentialRepo(db.Collection("credentials")),
	}
	c.ensureIndexes(db, cfg)
	return c
}

func (c *Collections) ensureIndexes(db *mongo.Database, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = db.Collection(cfg.Mongo.ConversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "members", Value: 1}},
		Options: options.Index().SetName("members_idx"),
	})
	_, _ = db.Collection(cfg.Mongo.MessagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("conversation_created_idx"),
	})
	_, _ = db.Collection("credentials").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_idx").SetUnique(true),
	})
}
