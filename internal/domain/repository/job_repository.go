// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"bookforge-ai-api/internal/domain/entity"
)

// JobFilter 任务过滤条件
type JobFilter struct {
	Status    entity.JobStatus
	ChapterID string
}

// JobRepository 草稿生成任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.DraftGenerationJob) error

	// GetByID 根据 ID 获取任务
	GetByID(ctx context.Context, id string) (*entity.DraftGenerationJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.DraftGenerationJob) error

	// ListByBook 获取书籍任务列表
	ListByBook(ctx context.Context, bookID string, filter *JobFilter, pagination Pagination) (*PagedResult[*entity.DraftGenerationJob], error)

	// GetActiveByChapter 获取章节当前未终结的任务
	GetActiveByChapter(ctx context.Context, chapterID string) (*entity.DraftGenerationJob, error)

	// MarkStaleRunningFailed 将超时仍在运行的任务标记为失败
	MarkStaleRunningFailed(ctx context.Context, olderThanSeconds int, reason string) (int64, error)
}
