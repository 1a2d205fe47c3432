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

var ErrNotFound = errors.New("store: not found")

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(coll *mongo.Collection) *UserRepo {
	return &UserRepo{coll: coll}
}

func (r *UserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Normalize()
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Normalize()
	return &u, nil
}

// Set writes the full profile with upsert semantics.
func (r *UserRepo) Set(ctx context.Context, u *models.User) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	return err
}

// UpdateFields patches individual profile fields and bumps updated_at.
func (r *UserRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (r *UserRepo) SetOnline(ctx context.Context, id string, online bool) error {
	return r.UpdateFields(ctx, id, map[string]any{"is_online": online})
}

func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		u.Normalize()
		out = append(out, u)
	}
	return out, cur.Err()
}

// Watch delivers the full directory once, then one-document batches for
// every subsequent change, until the returned handle is called. Batches
// arrive on a dedicated goroutine, in stream order.
func (r *UserRepo) Watch(ctx context.Context, fn func([]models.User)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := openStream(ctx, r.coll, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	initial, err := r.List(ctx)
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
			var u models.User
			if err := bson.Unmarshal(ev.FullDocument, &u); err != nil {
				continue
			}
			u.Normalize()
			fn([]models.User{u})
		}
	}()
	return Unsubscribe(cancel), nil
}
