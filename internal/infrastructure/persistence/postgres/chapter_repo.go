// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	apperrors "bookforge-ai-api/pkg/errors"
)

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 创建章节
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// CreateBatch 批量创建章节
func (r *ChapterRepository) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.CreateBatch")
	defer span.End()

	if len(chapters) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Create(&chapters).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapters: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取章节
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// Update 更新章节（非内容字段）
func (r *ChapterRepository) Update(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chapter: %w", err)
	}
	return nil
}

// SoftDelete 软删除章节
func (r *ChapterRepository) SoftDelete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.SoftDelete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Chapter{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chapter: %w", err)
	}
	return nil
}

// ListByBook 获取书籍的章节列表
func (r *ChapterRepository) ListByBook(ctx context.Context, bookID string, filter *repository.ChapterFilter) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Where("book_id = ?", bookID)

	if filter != nil && filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var chapters []*entity.Chapter
	if err := query.Order("seq_num ASC").Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}

	return chapters, nil
}

// ListIDsByBook 获取书籍当前章节 ID 集合
func (r *ChapterRepository) ListIDsByBook(ctx context.Context, bookID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListIDsByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var ids []string
	if err := db.Model(&entity.Chapter{}).
		Where("book_id = ?", bookID).
		Order("seq_num ASC").
		Pluck("id", &ids).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter ids: %w", err)
	}
	return ids, nil
}

// UpdateContentVersioned 带乐观并发控制的内容写入。
// 比较并递增版本在单条 UPDATE 内完成，多个并发写入中至多一个成功。
func (r *ChapterRepository) UpdateContentVersioned(ctx context.Context, id, content string, expectedVersion int) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.UpdateContentVersioned")
	defer span.End()

	db := getDB(ctx, r.client.db)
	charCount := len([]rune(content))

	result := db.Model(&entity.Chapter{}).
		Where("id = ? AND content_version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"content_text":    content,
			"char_count":      charCount,
			"content_version": gorm.Expr("content_version + 1"),
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, apperrors.Wrap(result.Error, apperrors.CodeDatabaseError, "failed to update chapter content")
	}

	if result.RowsAffected == 0 {
		// 区分章节不存在与版本冲突
		var current entity.Chapter
		if err := db.Select("content_version").First(&current, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return 0, apperrors.ErrChapterNotFound
			}
			span.RecordError(err)
			return 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to read chapter version")
		}
		return 0, apperrors.New(apperrors.CodeVersionConflict, "content version conflict").
			WithDetail(fmt.Sprintf("expected version %d, server at %d", expectedVersion, current.ContentVersion))
	}

	return expectedVersion + 1, nil
}

// UpdateStatus 更新章节状态
func (r *ChapterRepository) UpdateStatus(ctx context.Context, id string, status entity.ChapterStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Chapter{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chapter status: %w", err)
	}
	return nil
}

// GetNextSeqNum 获取下一个序号
func (r *ChapterRepository) GetNextSeqNum(ctx context.Context, bookID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetNextSeqNum")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var maxSeq *int

	err := db.Model(&entity.Chapter{}).
		Where("book_id = ?", bookID).
		Select("MAX(seq_num)").Scan(&maxSeq).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get max seq num: %w", err)
	}

	if maxSeq == nil {
		return 1, nil
	}
	return *maxSeq + 1, nil
}
