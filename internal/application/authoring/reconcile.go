// Package authoring 实现章节写作流水线的应用服务
package authoring

import (
	"context"
	"time"

	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	apperrors "bookforge-ai-api/pkg/errors"
	"bookforge-ai-api/pkg/logger"
	"bookforge-ai-api/pkg/metrics"
)

// ResolutionChoice 冲突处理选择
type ResolutionChoice string

const (
	// ChoiceKeepLocal 以本地备份为准，基于服务端最新版本重新保存
	ChoiceKeepLocal ResolutionChoice = "keep_local"
	// ChoiceDiscardLocal 丢弃本地备份，保留服务端内容
	ChoiceDiscardLocal ResolutionChoice = "discard_local"
)

// ConflictReport 分歧报告：同时呈现服务端当前内容与本地备份，
// 由用户显式选择，永不自动合并文本。
type ConflictReport struct {
	HasConflict bool `json:"has_conflict"`

	ChapterID     string `json:"chapter_id"`
	ServerContent string `json:"server_content,omitempty"`
	ServerVersion int    `json:"server_version,omitempty"`

	LocalContent     string                `json:"local_content,omitempty"`
	LocalBaseVersion int                   `json:"local_base_version,omitempty"`
	LocalReason      entity.SnapshotReason `json:"local_reason,omitempty"`
	LocalCapturedAt  time.Time             `json:"local_captured_at,omitempty"`
}

// ReconciliationService 对账服务。
// 当客户端发现本地备份与更新的服务端版本并存，或保存返回版本冲突时调用。
type ReconciliationService struct {
	chapters    repository.ChapterRepository
	snapshots   SnapshotBackend
	coordinator *AutoSaveCoordinator
}

// NewReconciliationService 创建对账服务
func NewReconciliationService(chapters repository.ChapterRepository, snapshots SnapshotBackend, coordinator *AutoSaveCoordinator) *ReconciliationService {
	return &ReconciliationService{
		chapters:    chapters,
		snapshots:   snapshots,
		coordinator: coordinator,
	}
}

// Detect 检查章节是否存在待对账的分歧。
// 没有本地备份时报告无冲突，常规同会话场景是透明的无操作。
func (s *ReconciliationService) Detect(ctx context.Context, sessionID, chapterID string) (*ConflictReport, error) {
	ctx, span := tracer.Start(ctx, "authoring.ReconciliationService.Detect")
	defer span.End()

	snapshot, err := s.snapshots.Get(ctx, sessionID, chapterID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return &ConflictReport{HasConflict: false, ChapterID: chapterID}, nil
	}

	chapter, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		// 章节已被删除，备份内容只能由用户决定去留
		return &ConflictReport{
			HasConflict:      true,
			ChapterID:        chapterID,
			LocalContent:     snapshot.Content,
			LocalBaseVersion: snapshot.BaseVersion,
			LocalReason:      snapshot.Reason,
			LocalCapturedAt:  snapshot.CapturedAt,
		}, nil
	}

	// 备份基线与服务端版本一致且内容相同，静默清理
	if snapshot.BaseVersion == chapter.ContentVersion && snapshot.Content == chapter.ContentText {
		if err := s.snapshots.Delete(ctx, sessionID, chapterID); err != nil {
			logger.Warn(ctx, "failed to clear redundant snapshot", "chapter_id", chapterID, "error", err.Error())
		}
		return &ConflictReport{HasConflict: false, ChapterID: chapterID}, nil
	}

	return &ConflictReport{
		HasConflict:      true,
		ChapterID:        chapterID,
		ServerContent:    chapter.ContentText,
		ServerVersion:    chapter.ContentVersion,
		LocalContent:     snapshot.Content,
		LocalBaseVersion: snapshot.BaseVersion,
		LocalReason:      snapshot.Reason,
		LocalCapturedAt:  snapshot.CapturedAt,
	}, nil
}

// Resolve 按用户选择处理分歧。
// keep_local 以服务端最新版本为基线走常规保存路径；
// discard_local 删除备份，服务端内容保持不变。
func (s *ReconciliationService) Resolve(ctx context.Context, sessionID, chapterID string, choice ResolutionChoice) (int, error) {
	ctx, span := tracer.Start(ctx, "authoring.ReconciliationService.Resolve")
	defer span.End()

	switch choice {
	case ChoiceKeepLocal:
		snapshot, err := s.snapshots.Get(ctx, sessionID, chapterID)
		if err != nil {
			return 0, err
		}
		if snapshot == nil {
			return 0, apperrors.New(apperrors.CodeNotFound, "no local backup snapshot to keep")
		}
		chapter, err := s.chapters.GetByID(ctx, chapterID)
		if err != nil {
			return 0, err
		}
		if chapter == nil {
			return 0, apperrors.ErrChapterNotFound
		}

		newVersion, err := s.coordinator.SaveNow(ctx, sessionID, chapterID, snapshot.Content, chapter.ContentVersion)
		if err != nil {
			return 0, err
		}
		metrics.ReconcileTotal.WithLabelValues(string(ChoiceKeepLocal)).Inc()
		logger.Info(ctx, "conflict resolved keeping local content",
			"chapter_id", chapterID,
			"new_version", newVersion,
		)
		return newVersion, nil

	case ChoiceDiscardLocal:
		if err := s.snapshots.Delete(ctx, sessionID, chapterID); err != nil {
			return 0, err
		}
		metrics.ReconcileTotal.WithLabelValues(string(ChoiceDiscardLocal)).Inc()
		chapter, err := s.chapters.GetByID(ctx, chapterID)
		if err != nil {
			return 0, err
		}
		if chapter == nil {
			return 0, nil
		}
		return chapter.ContentVersion, nil

	default:
		return 0, apperrors.New(apperrors.CodeValidationFailed, "unknown resolution choice").
			WithDetail(string(choice))
	}
}
