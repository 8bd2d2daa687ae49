package redis

import (
	"context"
	"fmt"
	"time"

	"ms-attendance/internal/logger"

	"github.com/go-redis/redis/v8"
)

const defaultLockTTL = 2 * time.Minute

// Locker holds one lock per event while an attendance upload runs. The TTL
// bounds how long a crashed instance can keep an event locked.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *Locker {
	if ttl <= 0 {
		log.Warn("REDIS", fmt.Sprintf("Invalid attendance lock TTL %s, using default %s", ttl, defaultLockTTL))
		ttl = defaultLockTTL
	}
	return &Locker{Client: client, TTL: ttl, Logger: log}
}

func lockKey(eventID string) string {
	return "attendance_lock:" + eventID
}

// Lock reports false when another owner already holds the event.
func (l *Locker) Lock(ctx context.Context, eventID, owner string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, lockKey(eventID), owner, l.TTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		l.Logger.Debug("REDIS", fmt.Sprintf("Event %s already locked", eventID))
	}
	return ok, nil
}

// Unlock releases the event only if owner still holds it.
func (l *Locker) Unlock(ctx context.Context, eventID, owner string) error {
	key := lockKey(eventID)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // expired or already released
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsLocked reports whether an upload currently holds the event.
func (l *Locker) IsLocked(ctx context.Context, eventID string) (bool, error) {
	_, err := l.Client.Get(ctx, lockKey(eventID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
