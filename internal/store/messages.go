package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(coll *mongo.Collection) *MessageRepo {
	return &MessageRepo{coll: coll}
}

// Add appends a message to its conversation's stream with a store-assigned
// id and returns the stored record. Messages are immutable after this.
func (r *MessageRepo) Add(ctx context.Context, m *models.Message) (*models.Message, error) {
	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Normalize()
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns a conversation's messages in chronological order.
func (r *MessageRepo) List(ctx context.Context, conversationID string, limit int64, before time.Time) ([]models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		m.Normalize()
		out = append(out, m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	// newest-first from the store; hand back chronological
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Watch follows one conversation's stream: recent history first, then each
// appended message as it lands.
func (r *MessageRepo) Watch(ctx context.Context, conversationID string, fn func([]models.Message)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	match := bson.D{{Key: "fullDocument.conversation_id", Value: conversationID}}
	stream, err := openStream(ctx, r.coll, match)
	if err != nil {
		cancel()
		return nil, err
	}
	initial, err := r.List(ctx, conversationID, 0, time.Time{})
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}
	go func() {
		defer stream.Close(context.Background())
		if len(initial) > 0 {
			fn(initial)
		}
		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil || ev.FullDocument == nil {
				continue
			}
			var m models.Message
			if err := bson.Unmarshal(ev.FullDocument, &m); err != nil {
				continue
			}
			m.Normalize()
			fn([]models.Message{m})
		}
	}()
	return Unsubscribe(cancel), nil
}
