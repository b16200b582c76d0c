// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"bookforge-ai-api/internal/domain/entity"
)

// ResponseRepository 问题回答仓储接口
type ResponseRepository interface {
	// Upsert 按 question_id 插入或更新回答，绝不产生重复行
	Upsert(ctx context.Context, response *entity.QuestionResponse) error

	// GetByQuestion 根据问题 ID 获取回答
	GetByQuestion(ctx context.Context, questionID string) (*entity.QuestionResponse, error)

	// ListByChapter 获取章节的全部回答（页面恢复用）
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.QuestionResponse, error)

	// DeleteByChapter 删除章节的全部回答（问题集重生成时清理孤儿）
	DeleteByChapter(ctx context.Context, chapterID string) error
}
