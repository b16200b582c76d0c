// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bookforge-ai-api/internal/domain/entity"
)

// QuestionRepository 访谈问题仓储实现
type QuestionRepository struct {
	client *Client
}

// NewQuestionRepository 创建问题仓储
func NewQuestionRepository(client *Client) *QuestionRepository {
	return &QuestionRepository{client: client}
}

// ReplaceForChapter 替换章节的整个问题集。
// 旧问题及其孤儿回答在同一事务内删除，不做静默重挂。
func (r *QuestionRepository) ReplaceForChapter(ctx context.Context, chapterID string, questions []*entity.Question) error {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.ReplaceForChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", chapterID).Delete(&entity.QuestionResponse{}).Error; err != nil {
			return fmt.Errorf("failed to delete orphaned responses: %w", err)
		}
		if err := tx.Where("chapter_id = ?", chapterID).Delete(&entity.Question{}).Error; err != nil {
			return fmt.Errorf("failed to delete old questions: %w", err)
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return fmt.Errorf("failed to create questions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ListByChapter 获取章节的问题列表
func (r *QuestionRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.Question, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.ListByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var questions []*entity.Question
	if err := db.Where("chapter_id = ?", chapterID).
		Order("seq_num ASC").
		Find(&questions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// GetByID 根据 ID 获取问题
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*entity.Question, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var question entity.Question
	if err := db.First(&question, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// CountByChapter 统计章节问题数
func (r *QuestionRepository) CountByChapter(ctx context.Context, chapterID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.CountByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.Question{}).Where("chapter_id = ?", chapterID).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}
