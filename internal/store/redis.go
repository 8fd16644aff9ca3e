package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const turnKeyPrefix = "choicebot:turn:"

// RedisTurnStore keeps active turns in Redis so several replicas can serve
// the same conversation. Turns expire after ttl of inactivity.
type RedisTurnStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ TurnStore = (*RedisTurnStore)(nil)

// NewRedisTurnStore returns a turn store on client. A zero ttl keeps turns
// until they are deleted.
func NewRedisTurnStore(client *redis.Client, ttl time.Duration) *RedisTurnStore {
	return &RedisTurnStore{client: client, ttl: ttl}
}

func (s *RedisTurnStore) SaveTurn(ctx context.Context, t Turn) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}
	if err := s.client.Set(ctx, turnKeyPrefix+t.ConversationID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving turn in redis: %w", err)
	}
	return nil
}

func (s *RedisTurnStore) GetTurn(ctx context.Context, conversationID string) (*Turn, error) {
	data, err := s.client.Get(ctx, turnKeyPrefix+conversationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("turn for %q: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting turn from redis: %w", err)
	}
	var t Turn
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("corrupted turn for %q: %w", conversationID, err)
	}
	return &t, nil
}

func (s *RedisTurnStore) DeleteTurn(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, turnKeyPrefix+conversationID).Err(); err != nil {
		return fmt.Errorf("deleting turn from redis: %w", err)
	}
	return nil
}
