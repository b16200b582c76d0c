package authoring

import (
	"context"
	"testing"

	"bookforge-ai-api/internal/domain/entity"
	apperrors "bookforge-ai-api/pkg/errors"
)

func newTestReconciliation() (*ReconciliationService, *fakeChapterRepo, *fakeSnapshotBackend) {
	chapters := newFakeChapterRepo()
	snapshots := newFakeSnapshotBackend()
	coord := NewAutoSaveCoordinator(chapters, snapshots, testAutoSaveConfig())
	return NewReconciliationService(chapters, snapshots, coord), chapters, snapshots
}

func seedChapter(chapters *fakeChapterRepo, id, content string, version int) *entity.Chapter {
	chapter := entity.NewChapter("book-1", "第一章", "概要", 1)
	chapter.ID = id
	chapter.SetContent(content)
	chapter.ContentVersion = version
	chapters.add(chapter)
	return chapter
}

func TestDetectWithoutSnapshotReportsNoConflict(t *testing.T) {
	svc, chapters, _ := newTestReconciliation()
	seedChapter(chapters, "ch-1", "server text", 5)

	report, err := svc.Detect(context.Background(), "sess-a", "ch-1")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if report.HasConflict {
		t.Fatalf("report = %+v, want no conflict", report)
	}
}

// 备份与服务端完全一致时静默清理，不打扰用户。
func TestDetectCleansRedundantSnapshot(t *testing.T) {
	svc, chapters, snapshots := newTestReconciliation()
	seedChapter(chapters, "ch-1", "same text", 5)

	snap := entity.NewSnapshot("sess-a", "ch-1", "same text", 5)
	if err := snapshots.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	report, err := svc.Detect(context.Background(), "sess-a", "ch-1")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if report.HasConflict {
		t.Fatalf("report = %+v, want no conflict", report)
	}
	if snapshots.count() != 0 {
		t.Fatalf("redundant snapshot not cleaned, %d left", snapshots.count())
	}
}

// 分歧报告同时呈现双方内容，由用户选择，不自动合并。
func TestDetectReportsBothSides(t *testing.T) {
	svc, chapters, snapshots := newTestReconciliation()
	seedChapter(chapters, "ch-1", "server text", 5)

	snap := entity.NewSnapshot("sess-a", "ch-1", "local text", 3)
	snap.UpgradeToBackup()
	if err := snapshots.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	report, err := svc.Detect(context.Background(), "sess-a", "ch-1")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !report.HasConflict {
		t.Fatal("expected conflict")
	}
	if report.ServerContent != "server text" || report.ServerVersion != 5 {
		t.Fatalf("server side = (%q, %d)", report.ServerContent, report.ServerVersion)
	}
	if report.LocalContent != "local text" || report.LocalBaseVersion != 3 {
		t.Fatalf("local side = (%q, %d)", report.LocalContent, report.LocalBaseVersion)
	}
	if report.LocalReason != entity.SnapshotReasonNetworkFailureBackup {
		t.Fatalf("reason = %s", report.LocalReason)
	}
}

func TestDetectChapterDeletedStillReportsLocal(t *testing.T) {
	svc, _, snapshots := newTestReconciliation()

	snap := entity.NewSnapshot("sess-a", "ch-gone", "orphaned text", 2)
	if err := snapshots.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	report, err := svc.Detect(context.Background(), "sess-a", "ch-gone")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !report.HasConflict || report.LocalContent != "orphaned text" {
		t.Fatalf("report = %+v", report)
	}
	if report.ServerContent != "" {
		t.Fatalf("server content = %q, want empty", report.ServerContent)
	}
}

// keep_local 以服务端最新版本为基线重新保存本地内容。
func TestResolveKeepLocal(t *testing.T) {
	svc, chapters, snapshots := newTestReconciliation()
	seedChapter(chapters, "ch-1", "server text", 5)

	snap := entity.NewSnapshot("sess-a", "ch-1", "local text", 3)
	snap.UpgradeToBackup()
	if err := snapshots.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	newVersion, err := svc.Resolve(context.Background(), "sess-a", "ch-1", ChoiceKeepLocal)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if newVersion != 6 {
		t.Fatalf("version = %d, want 6", newVersion)
	}

	chapter, _ := chapters.GetByID(context.Background(), "ch-1")
	if chapter.ContentText != "local text" || chapter.ContentVersion != 6 {
		t.Fatalf("chapter = (%q, %d)", chapter.ContentText, chapter.ContentVersion)
	}
	if snapshots.count() != 0 {
		t.Fatalf("snapshot not cleared after resolve, %d left", snapshots.count())
	}
}

func TestResolveKeepLocalWithoutSnapshot(t *testing.T) {
	svc, chapters, _ := newTestReconciliation()
	seedChapter(chapters, "ch-1", "server text", 5)

	_, err := svc.Resolve(context.Background(), "sess-a", "ch-1", ChoiceKeepLocal)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

// discard_local 删除备份，服务端内容保持不变。
func TestResolveDiscardLocal(t *testing.T) {
	svc, chapters, snapshots := newTestReconciliation()
	seedChapter(chapters, "ch-1", "server text", 5)

	snap := entity.NewSnapshot("sess-a", "ch-1", "local text", 3)
	if err := snapshots.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	version, err := svc.Resolve(context.Background(), "sess-a", "ch-1", ChoiceDiscardLocal)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if version != 5 {
		t.Fatalf("version = %d, want unchanged 5", version)
	}

	chapter, _ := chapters.GetByID(context.Background(), "ch-1")
	if chapter.ContentText != "server text" || chapter.ContentVersion != 5 {
		t.Fatalf("chapter changed: (%q, %d)", chapter.ContentText, chapter.ContentVersion)
	}
	if snapshots.count() != 0 {
		t.Fatalf("snapshot not deleted, %d left", snapshots.count())
	}
}

func TestResolveRejectsUnknownChoice(t *testing.T) {
	svc, chapters, _ := newTestReconciliation()
	seedChapter(chapters, "ch-1", "server text", 5)

	_, err := svc.Resolve(context.Background(), "sess-a", "ch-1", ResolutionChoice("merge"))
	if !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
		t.Fatalf("error = %v, want validation failure", err)
	}
}
