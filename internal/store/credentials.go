package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrDuplicateEmail = errors.New("store: email already in use")

// Credential is the private login record, kept apart from the public
// profile the same way PrivateUser is.
type Credential struct {
	UserID       string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

type CredentialRepo struct {
	coll *mongo.Collection
}

func NewCredentialRepo(coll *mongo.Collection) *CredentialRepo {
	return &CredentialRepo{coll: coll}
}

func (r *CredentialRepo) Create(ctx context.Context, c *Credential) error {
	c.CreatedAt = time.Now().UTC()
	_, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		var we mongo.WriteException
		if errors.As(err, &we) {
			for _, e := range we.WriteErrors {
				if e.Code == 11000 {
					return ErrDuplicateEmail
				}
			}
		}
	}
	return err
}

func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
