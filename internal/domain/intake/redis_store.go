package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"convoydesk/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "convoydesk:draft:"

// RedisDraftStore keeps drafts in Redis with a TTL matching ExpiresAt.
type RedisDraftStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisDraftStore(rdb *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{rdb: rdb, now: time.Now}
}

type redisDraft struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
}

func draftKey(guildID, userID string) string {
	return redisKeyPrefix + guildID + ":" + userID
}

func (s *RedisDraftStore) Save(ctx context.Context, d *domain.Draft) error {
	ttl := d.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, d.GuildID, d.UserID)
	}
	data, err := json.Marshal(redisDraft{Payload: d.Payload, ExpiresAt: d.ExpiresAt.UTC(), CreatedAt: d.CreatedAt.UTC()})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, draftKey(d.GuildID, d.UserID), string(data), ttl).Err()
}

func (s *RedisDraftStore) Get(ctx context.Context, guildID, userID string) (*domain.Draft, error) {
	raw, err := s.rdb.Get(ctx, draftKey(guildID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft: %w", err)
	}
	var rd redisDraft
	if err := json.Unmarshal(raw, &rd); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &domain.Draft{
		GuildID:   guildID,
		UserID:    userID,
		Payload:   rd.Payload,
		ExpiresAt: rd.ExpiresAt,
		CreatedAt: rd.CreatedAt,
	}, nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, guildID, userID string) error {
	return s.rdb.Del(ctx, draftKey(guildID, userID)).Err()
}
