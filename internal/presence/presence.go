// Package presence tracks who is online. Redis holds a TTL'd key per user
// so presence self-heals when a process dies without cleanup; the flag is
// mirrored into the user document so the directory view carries it.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type UserFlagStore interface {
	SetOnline(ctx context.Context, id string, online bool) error
}

type Tracker struct {
	rdb    *redis.Client
	users  UserFlagStore
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewTracker(rdb *redis.Client, users UserFlagStore, prefix string, ttl time.Duration, log *zap.SugaredLogger) *Tracker {
	return &Tracker{rdb: rdb, users: users, prefix: prefix, ttl: ttl, log: log}
}

func (t *Tracker) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", t.prefix, userID)
}

// Online marks the user online and mirrors the flag into their document.
func (t *Tracker) Online(ctx context.Context, userID string) error {
	if err := t.rdb.Set(ctx, t.key(userID), time.Now().Unix(), t.ttl).Err(); err != nil {
		return err
	}
	if err := t.users.SetOnline(ctx, userID, true); err != nil {
		t.log.Warnw("mirror online flag", "user", userID, "err", err)
	}
	return nil
}

// Heartbeat extends the TTL without touching the document.
func (t *Tracker) Heartbeat(ctx context.Context, userID string) error {
	return t.rdb.Expire(ctx, t.key(userID), t.ttl).Err()
}

// Offline clears presence.
func (t *Tracker) Offline(ctx context.Context, userID string) error {
	if err := t.rdb.Del(ctx, t.key(userID)).Err(); err != nil {
		return err
	}
	if err := t.users.SetOnline(ctx, userID, false); err != nil {
		t.log.Warnw("mirror offline flag", "user", userID, "err", err)
	}
	return nil
}

// IsOnline reports whether the user currently holds a presence key.
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := t.rdb.Exists(ctx, t.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
