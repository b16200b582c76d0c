// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"bookforge-ai-api/internal/domain/entity"
)

// QuestionRepository 访谈问题仓储接口
type QuestionRepository interface {
	// ReplaceForChapter 替换章节的整个问题集。
	// 旧问题连同其孤儿回答一并删除，替换在单个事务内完成。
	ReplaceForChapter(ctx context.Context, chapterID string, questions []*entity.Question) error

	// ListByChapter 获取章节的问题列表（按序号排序）
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.Question, error)

	// GetByID 根据 ID 获取问题
	GetByID(ctx context.Context, id string) (*entity.Question, error)

	// CountByChapter 统计章节问题数
	CountByChapter(ctx context.Context, chapterID string) (int64, error)
}
