package authoring

import (
	"testing"

	"bookforge-ai-api/internal/domain/entity"
	apperrors "bookforge-ai-api/pkg/errors"
)

func TestChapterStatusTransitions(t *testing.T) {
	sm := NewChapterStatusStateMachine()

	tests := []struct {
		name    string
		from    entity.ChapterStatus
		to      entity.ChapterStatus
		allowed bool
	}{
		{"draft to in_progress", entity.ChapterStatusDraft, entity.ChapterStatusInProgress, true},
		{"in_progress to completed", entity.ChapterStatusInProgress, entity.ChapterStatusCompleted, true},
		{"completed to published", entity.ChapterStatusCompleted, entity.ChapterStatusPublished, true},
		{"published back to completed", entity.ChapterStatusPublished, entity.ChapterStatusCompleted, true},
		{"draft skips to completed", entity.ChapterStatusDraft, entity.ChapterStatusCompleted, false},
		{"draft skips to published", entity.ChapterStatusDraft, entity.ChapterStatusPublished, false},
		{"in_progress back to draft", entity.ChapterStatusInProgress, entity.ChapterStatusDraft, false},
		{"completed back to in_progress", entity.ChapterStatusCompleted, entity.ChapterStatusInProgress, false},
		{"published back to draft", entity.ChapterStatusPublished, entity.ChapterStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sm.CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}

			chapter := &entity.Chapter{Status: tt.from}
			err := sm.Transition(chapter, tt.to)
			if tt.allowed {
				if err != nil {
					t.Fatalf("Transition: %v", err)
				}
				if chapter.Status != tt.to {
					t.Fatalf("status = %s, want %s", chapter.Status, tt.to)
				}
			} else {
				if !apperrors.IsCode(err, apperrors.CodeInvalidStateTransition) {
					t.Fatalf("error = %v, want invalid state transition", err)
				}
				// 非法迁移不改变状态
				if chapter.Status != tt.from {
					t.Fatalf("status changed to %s on rejected transition", chapter.Status)
				}
			}
		})
	}
}

// 自环不在迁移表里：published -> published 等同状态请求必须被拒绝
func TestTransitionSameStateRejected(t *testing.T) {
	sm := NewChapterStatusStateMachine()
	for _, status := range []entity.ChapterStatus{
		entity.ChapterStatusDraft,
		entity.ChapterStatusInProgress,
		entity.ChapterStatusCompleted,
		entity.ChapterStatusPublished,
	} {
		chapter := &entity.Chapter{Status: status}
		err := sm.Transition(chapter, status)
		if !apperrors.IsCode(err, apperrors.CodeInvalidStateTransition) {
			t.Fatalf("%s -> %s: error = %v, want invalid state transition", status, status, err)
		}
		if chapter.Status != status {
			t.Fatalf("status changed to %s on rejected transition", chapter.Status)
		}
	}
}

func TestOnFirstContentSave(t *testing.T) {
	sm := NewChapterStatusStateMachine()

	chapter := &entity.Chapter{Status: entity.ChapterStatusDraft}
	if !sm.OnFirstContentSave(chapter) {
		t.Fatal("first save on draft should advance status")
	}
	if chapter.Status != entity.ChapterStatusInProgress {
		t.Fatalf("status = %s, want in_progress", chapter.Status)
	}

	// 再次保存不再改变状态
	if sm.OnFirstContentSave(chapter) {
		t.Fatal("second save should not advance status")
	}

	completed := &entity.Chapter{Status: entity.ChapterStatusCompleted}
	if sm.OnFirstContentSave(completed) {
		t.Fatal("save on completed chapter should not change status")
	}
	if completed.Status != entity.ChapterStatusCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}
}
