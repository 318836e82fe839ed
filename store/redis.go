package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portalguard"
)

const (
	accessSlot  = "access_token"
	refreshSlot = "refresh_token"
	userSlot    = "user"
)

// Redis keeps the three slots as separate keys under a prefix.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ portalguard.SessionStore = (*Redis)(nil)

// NewRedis creates a store over rdb. Keys are "<prefix>:<slot>"; a zero ttl
// keeps them until cleared.
func NewRedis(rdb redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "portal:session"
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(slot string) string { return r.prefix + ":" + slot }

// Save writes the non-empty slots in one MULTI/EXEC.
func (r *Redis) Save(ctx context.Context, entry portalguard.SessionEntry) error {
	if entry.IsEmpty() {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if entry.AccessToken != "" {
			pipe.Set(ctx, r.key(accessSlot), entry.AccessToken, r.ttl)
		}
		if entry.RefreshToken != "" {
			pipe.Set(ctx, r.key(refreshSlot), entry.RefreshToken, r.ttl)
		}
		if len(entry.User) > 0 {
			pipe.Set(ctx, r.key(userSlot), entry.User, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads all three slots with one MGET.
func (r *Redis) Load(ctx context.Context) (portalguard.SessionEntry, error) {
	var entry portalguard.SessionEntry
	vals, err := r.rdb.MGet(ctx, r.key(accessSlot), r.key(refreshSlot), r.key(userSlot)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return entry, fmt.Errorf("failed to load session: %w", err)
	}
	str := func(i int) string {
		if i >= len(vals) {
			return ""
		}
		s, _ := vals[i].(string)
		return s
	}
	entry.AccessToken = str(0)
	entry.RefreshToken = str(1)
	if u := str(2); u != "" {
		entry.User = []byte(u)
	}
	return entry, nil
}

// Clear deletes all three keys with a single DEL.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key(accessSlot), r.key(refreshSlot), r.key(userSlot)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
