// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
)

// JobRepository 草稿生成任务仓储实现
type JobRepository struct {
	client *Client
}

// NewJobRepository 创建任务仓储
func NewJobRepository(client *Client) *JobRepository {
	return &JobRepository{client: client}
}

// Create 创建任务
func (r *JobRepository) Create(ctx context.Context, job *entity.DraftGenerationJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create draft job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.DraftGenerationJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.DraftGenerationJob
	if err := db.First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get draft job: %w", err)
	}
	return &job, nil
}

// Update 更新任务
func (r *JobRepository) Update(ctx context.Context, job *entity.DraftGenerationJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update draft job: %w", err)
	}
	return nil
}

// ListByBook 获取书籍任务列表
func (r *JobRepository) ListByBook(ctx context.Context, bookID string, filter *repository.JobFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.DraftGenerationJob], error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.ListByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.DraftGenerationJob{}).Where("book_id = ?", bookID)
	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.ChapterID != "" {
			query = query.Where("chapter_id = ?", filter.ChapterID)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count draft jobs: %w", err)
	}

	var jobs []*entity.DraftGenerationJob
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list draft jobs: %w", err)
	}

	return repository.NewPagedResult(jobs, total, pagination), nil
}

// GetActiveByChapter 获取章节当前未终结的任务
func (r *JobRepository) GetActiveByChapter(ctx context.Context, chapterID string) (*entity.DraftGenerationJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetActiveByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.DraftGenerationJob
	err := db.Where("chapter_id = ? AND status IN ?", chapterID,
		[]entity.JobStatus{entity.JobStatusPending, entity.JobStatusRunning}).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active draft job: %w", err)
	}
	return &job, nil
}

// MarkStaleRunningFailed 将超时仍在运行的任务标记为失败。
// 状态只能由 running 进入 failed，终态任务不受影响。
func (r *JobRepository) MarkStaleRunningFailed(ctx context.Context, olderThanSeconds int, reason string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.MarkStaleRunningFailed")
	defer span.End()

	deadline := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.DraftGenerationJob{}).
		Where("status = ? AND started_at < ?", entity.JobStatusRunning, deadline).
		Updates(map[string]interface{}{
			"status":        entity.JobStatusFailed,
			"error_message": reason,
			"completed_at":  time.Now(),
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to mark stale jobs failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
