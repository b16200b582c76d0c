// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookforge-ai-api/internal/domain/entity"
)

// ResponseRepository 问题回答仓储实现
type ResponseRepository struct {
	client *Client
}

// NewResponseRepository 创建回答仓储
func NewResponseRepository(client *Client) *ResponseRepository {
	return &ResponseRepository{client: client}
}

// Upsert 按 question_id 插入或更新回答
func (r *ResponseRepository) Upsert(ctx context.Context, response *entity.QuestionResponse) error {
	ctx, span := tracer.Start(ctx, "postgres.ResponseRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"response_text", "word_count", "status", "last_edited_at", "updated_at",
		}),
	}).Create(response).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert response: %w", err)
	}
	return nil
}

// GetByQuestion 根据问题 ID 获取回答
func (r *ResponseRepository) GetByQuestion(ctx context.Context, questionID string) (*entity.QuestionResponse, error) {
	ctx, span := tracer.Start(ctx, "postgres.ResponseRepository.GetByQuestion")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var response entity.QuestionResponse
	if err := db.First(&response, "question_id = ?", questionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return &response, nil
}

// ListByChapter 获取章节的全部回答
func (r *ResponseRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.QuestionResponse, error) {
	ctx, span := tracer.Start(ctx, "postgres.ResponseRepository.ListByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var responses []*entity.QuestionResponse
	if err := db.Where("chapter_id = ?", chapterID).
		Order("last_edited_at ASC").
		Find(&responses).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return responses, nil
}

// DeleteByChapter 删除章节的全部回答
func (r *ResponseRepository) DeleteByChapter(ctx context.Context, chapterID string) error {
	ctx, span := tracer.Start(ctx, "postgres.ResponseRepository.DeleteByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("chapter_id = ?", chapterID).Delete(&entity.QuestionResponse{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete responses: %w", err)
	}
	return nil
}
