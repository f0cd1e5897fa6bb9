package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"quizplay/internal/domain"
)

// SnapshotStore keeps the identity of one local profile in Redis so several processes
// (terminals, hosts) share the same session.
// Stored as: SET quiz:identity:{profile} <json> [EX ttl]
type SnapshotStore struct {
	client  *redis.Client
	profile string
	ttl     time.Duration
}

func NewSnapshotStore(client *redis.Client, profile string, ttl time.Duration) *SnapshotStore {
	if profile == "" {
		profile = "default"
	}
	return &SnapshotStore{client: client, profile: profile, ttl: ttl}
}

func (s *SnapshotStore) Read(ctx context.Context) (domain.Identity, bool, error) {
	data, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("redis get: %w", err)
	}
	var identity domain.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode identity: %w", err)
	}
	return identity, true, nil
}

func (s *SnapshotStore) Write(ctx context.Context, identity domain.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := s.client.Set(ctx, s.key(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Erase(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *SnapshotStore) key() string {
	return "quiz:identity:" + s.profile
}
