// Package authoring 实现章节写作流水线的应用服务
package authoring

import (
	"fmt"

	apperrors "bookforge-ai-api/pkg/errors"

	"bookforge-ai-api/internal/domain/entity"
)

// ChapterStatusStateMachine 章节状态机。
// 状态沿 draft → in_progress → completed → published 单向推进；
// published → completed 是唯一允许的例外回退（撤销发布的管理操作）。
type ChapterStatusStateMachine struct{}

// NewChapterStatusStateMachine 创建章节状态机
func NewChapterStatusStateMachine() *ChapterStatusStateMachine {
	return &ChapterStatusStateMachine{}
}

var allowedTransitions = map[entity.ChapterStatus][]entity.ChapterStatus{
	entity.ChapterStatusDraft:      {entity.ChapterStatusInProgress},
	entity.ChapterStatusInProgress: {entity.ChapterStatusCompleted},
	entity.ChapterStatusCompleted:  {entity.ChapterStatusPublished},
	entity.ChapterStatusPublished:  {entity.ChapterStatusCompleted},
}

// CanTransition 检查状态迁移是否合法
func (m *ChapterStatusStateMachine) CanTransition(from, to entity.ChapterStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 执行状态迁移。
// 非法迁移返回 InvalidStateTransition，章节状态保持不变，不做静默纠偏。
func (m *ChapterStatusStateMachine) Transition(chapter *entity.Chapter, to entity.ChapterStatus) error {
	if chapter == nil {
		return apperrors.New(apperrors.CodeValidationFailed, "chapter is nil")
	}
	// 自环不在迁移表里，同状态请求与其它非法迁移同样拒绝
	if !m.CanTransition(chapter.Status, to) {
		return apperrors.New(apperrors.CodeInvalidStateTransition, "invalid chapter status transition").
			WithDetail(fmt.Sprintf("%s -> %s is not allowed", chapter.Status, to))
	}
	chapter.Status = to
	return nil
}

// OnFirstContentSave 首次内容保存成功后把 draft 推进到 in_progress。
// 其余状态下保存内容不改变状态。
func (m *ChapterStatusStateMachine) OnFirstContentSave(chapter *entity.Chapter) bool {
	if chapter == nil || chapter.Status != entity.ChapterStatusDraft {
		return false
	}
	chapter.Status = entity.ChapterStatusInProgress
	return true
}
