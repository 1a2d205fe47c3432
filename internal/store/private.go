package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

// PrivateUserRepo owns the access-restricted per-user documents. The
// document id is the owning user's id.
type PrivateUserRepo struct {
	coll *mongo.Collection
}

func NewPrivateUserRepo(coll *mongo.Collection) *PrivateUserRepo {
	return &PrivateUserRepo{coll: coll}
}

func (r *PrivateUserRepo) Get(ctx context.Context, userID string) (*models.PrivateUser, error) {
	var p models.PrivateUser
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

func (r *PrivateUserRepo) Set(ctx context.Context, p *models.PrivateUser) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	return err
}

// AddChat registers a conversation id. $addToSet makes the append
// idempotent, so redelivery and the reconciliation sweep are safe.
func (r *PrivateUserRepo) AddChat(ctx context.Context, userID, conversationID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"chats": conversationID}},
		options.Update().SetUpsert(true),
	)
	return err
}

// AddNotification appends to the notification list.
func (r *PrivateUserRepo) AddNotification(ctx context.Context, userID, notification string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"notifications": notification}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Watch follows a single private document.
func (r *PrivateUserRepo) Watch(ctx context.Context, userID string, fn func(models.PrivateUser)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	match := bson.D{{Key: "fullDocument._id", Value: userID}}
	stream, err := openStream(ctx, r.coll, match)
	if err != nil {
		cancel()
		return nil, err
	}
	initial, err := r.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}
	go func() {
		defer stream.Close(context.Background())
		if initial != nil {
			fn(*initial)
		}
		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil || ev.FullDocument == nil {
				continue
			}
			var p models.PrivateUser
			if err := bson.Unmarshal(ev.FullDocument, &p); err != nil {
				continue
			}
			p.Normalize()
			fn(p)
		}
	}()
	return Unsubscribe(cancel), nil
}
