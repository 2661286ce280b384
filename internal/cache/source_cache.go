package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"medword/internal/model"
)

const defaultSourceKey = "medword:sources:snapshot"

// SourceCache keeps the last reconciled source list in redis. What it returns
// is only a placeholder until the next fetch from the backend.
type SourceCache struct {
	client *redisv9.Client
	key    string
	ttl    time.Duration
}

func NewSourceCache(client *redisv9.Client, namespace string, ttl time.Duration) *SourceCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key := defaultSourceKey
	if namespace != "" {
		key = namespace + ":sources:snapshot"
	}
	return &SourceCache{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (c *SourceCache) Load(ctx context.Context) (model.SourceSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return model.SourceSnapshot{}, false, nil
	}
	if err != nil {
		return model.SourceSnapshot{}, false, fmt.Errorf("redis get source snapshot failed: %w", err)
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		// a corrupt entry is as good as none
		_ = c.client.Del(ctx, c.key).Err()
		return model.SourceSnapshot{}, false, err
	}
	return snap, true, nil
}

func (c *SourceCache) Save(ctx context.Context, snap model.SourceSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal source snapshot failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set source snapshot failed: %w", err)
	}
	return nil
}

func (c *SourceCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis delete source snapshot failed: %w", err)
	}
	return nil
}

func decodeSnapshot(raw []byte) (model.SourceSnapshot, error) {
	var snap model.SourceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.SourceSnapshot{}, fmt.Errorf("unmarshal source snapshot failed: %w", err)
	}
	return snap, nil
}
