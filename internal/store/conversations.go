package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

type ConversationRepo struct {
	coll *mongo.Collection
}

func NewConversationRepo(coll *mongo.Collection) *ConversationRepo {
	return &ConversationRepo{coll: coll}
}

func (r *ConversationRepo) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Normalize()
	return &c, nil
}

// SetMerge performs a create-or-merge write at the derived id: fields
// present in c overwrite, created_at/created_by only apply on first
// insert. Reports whether the write inserted a new document.
func (r *ConversationRepo) SetMerge(ctx context.Context, c *models.Conversation) (bool, error) {
	now := time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": c.ID},
		bson.M{
			"$set": bson.M{
				"members":    c.Members,
				"updated_by": c.UpdatedBy,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"created_by": c.CreatedBy,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// UpdateLastMessage refreshes the denormalized summary.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, id string, m models.Message, updatedBy string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_message": m,
		"updated_by":   updatedBy,
		"updated_at":   time.Now().UTC(),
	}})
	return err
}

// SetWriting records the typing indicator; an empty user id clears it.
func (r *ConversationRepo) SetWriting(ctx context.Context, id, userID string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"writing": userID}})
	return err
}

// ListForMember returns all conversations whose members array contains the
// user, most recently updated first.
func (r *ConversationRepo) ListForMember(ctx context.Context, userID string) ([]models.Conversation, error) {
	cur, err := r.coll.Find(ctx, bson.M{"members": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		c.Normalize()
		out = append(out, c)
	}
	return out, cur.Err()
}

// ListAll pages through every conversation; used by the reconciliation
// sweep.
func (r *ConversationRepo) ListAll(ctx context.Context) ([]models.Conversation, error) {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		c.Normalize()
		out = append(out, c)
	}
	return out, cur.Err()
}

// WatchForMember follows the index of conversations the user belongs to:
// the current set first, then every later change touching one of them.
func (r *ConversationRepo) WatchForMember(ctx context.Context, userID string, fn func([]models.Conversation)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	match := bson.D{{Key: "fullDocument.members", Value: userID}}
	stream, err := openStream(ctx, r.coll, match)
	if err != nil {
		cancel()
		return nil, err
	}
	initial, err := r.ListForMember(ctx, userID)
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
			var c models.Conversation
			if err := bson.Unmarshal(ev.FullDocument, &c); err != nil {
				continue
			}
			c.Normalize()
			fn([]models.Conversation{c})
		}
	}()
	return Unsubscribe(cancel), nil
}
