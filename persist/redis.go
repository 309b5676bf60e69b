package persist

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores the projection under a single prefixed key, optionally with
// a TTL so abandoned sessions age out of shared storage.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis returns a Store writing to prefix:projection. A zero ttl keeps
// the key until Clear.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "authsync"
	}
	return &Redis{
		client: client,
		key:    prefix + ":projection",
		ttl:    ttl,
	}
}

// Save encodes and SETs the projection blob.
func (r *Redis) Save(ctx context.Context, p Projection) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}

// Load GETs and decodes the projection blob. A missing key or corrupt blob
// degrades to ok=false; a corrupt blob is also deleted best-effort so the
// next Load is clean.
func (r *Redis) Load(ctx context.Context) (Projection, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Projection{}, false, nil
		}
		return Projection{}, false, err
	}

	p, err := Decode(data)
	if err != nil {
		_ = r.client.Del(ctx, r.key).Err()
		return Projection{}, false, nil
	}
	return p, true, nil
}

// Clear DELs the projection key.
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
