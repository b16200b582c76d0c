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

var snapshotTracer = otel.Tracer("redis.snapshot")

// SnapshotStore 自动保存快照存储。
// 快照只服务于崩溃或网络故障后的恢复，带 TTL 自动过期，
// 保存成功后必须显式清除。
type SnapshotStore struct {
	client *Client
	ttl    time.Duration
}

// NewSnapshotStore 创建快照存储
func NewSnapshotStore(client *Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		ttl:    ttl,
	}
}

func snapshotKey(sessionID, chapterID string) string {
	return fmt.Sprintf("snapshot:%s:%s", sessionID, chapterID)
}

// Save 写入快照，覆盖同会话同章节的旧快照
func (s *SnapshotStore) Save(ctx context.Context, snapshot *entity.AutoSaveSnapshot) error {
	ctx, span := snapshotTracer.Start(ctx, "snapshot.Save")
	span.SetAttributes(
		attribute.String("snapshot.chapter_id", snapshot.ChapterID),
		attribute.String("snapshot.reason", string(snapshot.Reason)),
	)
	defer span.End()

	bytes, err := json.Marshal(snapshot)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := snapshotKey(snapshot.SessionID, snapshot.ChapterID)
	if err := s.client.rdb.Set(ctx, key, bytes, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Get 读取快照，不存在时返回 nil
func (s *SnapshotStore) Get(ctx context.Context, sessionID, chapterID string) (*entity.AutoSaveSnapshot, error) {
	ctx, span := snapshotTracer.Start(ctx, "snapshot.Get")
	span.SetAttributes(attribute.String("snapshot.chapter_id", chapterID))
	defer span.End()

	val, err := s.client.rdb.Get(ctx, snapshotKey(sessionID, chapterID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.Bool("snapshot.found", false))
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot entity.AutoSaveSnapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	span.SetAttributes(attribute.Bool("snapshot.found", true))
	return &snapshot, nil
}

// Delete 清除快照，保存成功后调用
func (s *SnapshotStore) Delete(ctx context.Context, sessionID, chapterID string) error {
	ctx, span := snapshotTracer.Start(ctx, "snapshot.Delete")
	span.SetAttributes(attribute.String("snapshot.chapter_id", chapterID))
	defer span.End()

	if err := s.client.rdb.Del(ctx, snapshotKey(sessionID, chapterID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// ListBySession 列出会话的全部快照
func (s *SnapshotStore) ListBySession(ctx context.Context, sessionID string) ([]*entity.AutoSaveSnapshot, error) {
	ctx, span := snapshotTracer.Start(ctx, "snapshot.ListBySession")
	defer span.End()

	pattern := fmt.Sprintf("snapshot:%s:*", sessionID)
	iter := s.client.rdb.Scan(ctx, 0, pattern, 0).Iterator()

	var snapshots []*entity.AutoSaveSnapshot
	for iter.Next(ctx) {
		val, err := s.client.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			span.RecordError(err)
			return nil, fmt.Errorf("failed to get snapshot: %w", err)
		}
		var snapshot entity.AutoSaveSnapshot
		if err := json.Unmarshal(val, &snapshot); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("snapshot.count", len(snapshots)))
	return snapshots, nil
}
