package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carmelo-bot/server/internal/bot/model"
	errx "github.com/carmelo-bot/server/internal/core/error"
	logx "github.com/carmelo-bot/server/pkg/logger"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

// RedisConversationStore backs history with Redis lists. LTRIM enforces the
// per-conversation turn cap server-side and the TTL lets whole stale
// conversations expire, which the in-memory store never does.
type RedisConversationStore struct {
	rdb      redis.Cmdable
	maxTurns int
	ttl      time.Duration
}

func NewRedisConversationStore(rdb redis.Cmdable, maxTurns int, ttl time.Duration) *RedisConversationStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &RedisConversationStore{rdb: rdb, maxTurns: maxTurns, ttl: ttl}
}

func (s *RedisConversationStore) conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:turns", conversationID)
}

func (s *RedisConversationStore) AddTurn(ctx context.Context, conversationID string, turn *schema.Message) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := s.conversationKey(conversationID)

	// append turn, keep only the newest maxTurns
	if err := s.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	if err := s.rdb.LTrim(ctx, key, int64(-s.maxTurns), -1).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to trim conversation")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if s.ttl > 0 {
		if ok, err := s.rdb.Expire(ctx, key, s.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", s.ttl).Msg("failed to set TTL on conversation key")
		}
	}
	return nil
}

func (s *RedisConversationStore) History(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	key := s.conversationKey(conversationID)

	rows, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return &model.ConversationHistory{ConversationID: conversationID, Turns: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	turns := make([]*schema.Message, 0, len(rows))
	for i, row := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			logx.Error().Err(err).Str("conversationID", conversationID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, &m)
	}
	return &model.ConversationHistory{ConversationID: conversationID, Turns: turns}, nil
}

func (s *RedisConversationStore) Clear(ctx context.Context, conversationID string) error {
	key := s.conversationKey(conversationID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisConversationStore) TurnCount(ctx context.Context, conversationID string) (int, error) {
	key := s.conversationKey(conversationID)
	n, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get turn count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.ConversationStore = (*RedisConversationStore)(nil)
