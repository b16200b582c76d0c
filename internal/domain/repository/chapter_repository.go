// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"bookforge-ai-api/internal/domain/entity"
)

// ChapterFilter 章节过滤条件
type ChapterFilter struct {
	Status entity.ChapterStatus
}

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// Create 创建章节
	Create(ctx context.Context, chapter *entity.Chapter) error

	// CreateBatch 批量创建章节（目录物化）
	CreateBatch(ctx context.Context, chapters []*entity.Chapter) error

	// GetByID 根据 ID 获取章节
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// Update 更新章节（非内容字段）
	Update(ctx context.Context, chapter *entity.Chapter) error

	// SoftDelete 软删除章节
	SoftDelete(ctx context.Context, id string) error

	// ListByBook 获取书籍的章节列表（按序号排序，不含已删除）
	ListByBook(ctx context.Context, bookID string, filter *ChapterFilter) ([]*entity.Chapter, error)

	// ListIDsByBook 获取书籍当前章节 ID 集合
	ListIDsByBook(ctx context.Context, bookID string) ([]string, error)

	// UpdateContentVersioned 带乐观并发控制的内容写入。
	// 仅当服务端当前版本等于 expectedVersion 时写入并将版本加一，
	// 否则返回带 CodeVersionConflict 的错误，内容保持不变。
	UpdateContentVersioned(ctx context.Context, id, content string, expectedVersion int) (newVersion int, err error)

	// UpdateStatus 更新章节状态
	UpdateStatus(ctx context.Context, id string, status entity.ChapterStatus) error

	// GetNextSeqNum 获取下一个序号
	GetNextSeqNum(ctx context.Context, bookID string) (int, error)
}
