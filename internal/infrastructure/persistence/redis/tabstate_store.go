// Package redis 提供 Redis 缓存实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"bookforge-ai-api/internal/domain/entity"
)

var tabStateTracer = otel.Tracer("redis.tabstate")

// TabStateStore 标签页状态存储。
// 标签页状态属于会话范围的 UI 状态，带 TTL 自动过期。
type TabStateStore struct {
	client *Client
	ttl    time.Duration
}

// NewTabStateStore 创建标签页状态存储
func NewTabStateStore(client *Client, ttl time.Duration) *TabStateStore {
	return &TabStateStore{
		client: client,
		ttl:    ttl,
	}
}

func tabStateKey(bookID, sessionID string) string {
	return fmt.Sprintf("tabstate:%s:%s", bookID, sessionID)
}

// Save 写入标签页状态
func (s *TabStateStore) Save(ctx context.Context, state *entity.TabState) error {
	ctx, span := tabStateTracer.Start(ctx, "tabstate.Save")
	span.SetAttributes(
		attribute.String("tabstate.book_id", state.BookID),
		attribute.Int("tabstate.tab_count", len(state.TabOrder)),
	)
	defer span.End()

	state.LastSyncedAt = time.Now()
	bytes, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal tab state: %w", err)
	}

	key := tabStateKey(state.BookID, state.SessionID)
	if err := s.client.rdb.Set(ctx, key, bytes, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save tab state: %w", err)
	}
	return nil
}

// Get 读取标签页状态，不存在时返回 nil
func (s *TabStateStore) Get(ctx context.Context, bookID, sessionID string) (*entity.TabState, error) {
	ctx, span := tabStateTracer.Start(ctx, "tabstate.Get")
	span.SetAttributes(attribute.String("tabstate.book_id", bookID))
	defer span.End()

	val, err := s.client.rdb.Get(ctx, tabStateKey(bookID, sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.Bool("tabstate.found", false))
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tab state: %w", err)
	}

	var state entity.TabState
	if err := json.Unmarshal(val, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal tab state: %w", err)
	}

	span.SetAttributes(attribute.Bool("tabstate.found", true))
	return &state, nil
}

// Delete 清除标签页状态
func (s *TabStateStore) Delete(ctx context.Context, bookID, sessionID string) error {
	ctx, span := tabStateTracer.Start(ctx, "tabstate.Delete")
	span.SetAttributes(attribute.String("tabstate.book_id", bookID))
	defer span.End()

	if err := s.client.rdb.Del(ctx, tabStateKey(bookID, sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete tab state: %w", err)
	}
	return nil
}
