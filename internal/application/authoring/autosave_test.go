package authoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	apperrors "bookforge-ai-api/pkg/errors"
)

func testAutoSaveConfig() config.AutoSaveConfig {
	return config.AutoSaveConfig{
		ChapterDebounce: 20 * time.Millisecond,
		MaxRetries:      2,
		RetryBackoff: config.BackoffConfig{
			Initial:    5 * time.Millisecond,
			Max:        20 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

func TestSaveNowVersionedWrite(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "A", 3)
	snapshots := newFakeSnapshotBackend()
	coord := NewAutoSaveCoordinator(writer, snapshots, testAutoSaveConfig())

	version, err := coord.SaveNow(context.Background(), "sess-a", "ch-1", "B", 3)
	if err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if version != 4 {
		t.Fatalf("version = %d, want 4", version)
	}

	content, v := writer.state("ch-1")
	if content != "B" || v != 4 {
		t.Fatalf("writer state = (%q, %d), want (B, 4)", content, v)
	}
	if status := coord.Status("sess-a", "ch-1"); status.State != SaveStateSaved || status.Version != 4 {
		t.Fatalf("status = %+v", status)
	}
}

// 两个会话都基于版本 3 保存：只有一个赢家，输家绝不覆盖赢家的内容。
func TestConcurrentSaveSingleWinner(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "A", 3)
	snapshots := newFakeSnapshotBackend()
	coord := NewAutoSaveCoordinator(writer, snapshots, testAutoSaveConfig())

	var conflicts atomic.Int32
	coord.OnConflict(func(ctx context.Context, snap *entity.AutoSaveSnapshot) {
		conflicts.Add(1)
	})

	if _, err := coord.SaveNow(context.Background(), "sess-a", "ch-1", "B", 3); err != nil {
		t.Fatalf("first save: %v", err)
	}

	_, err := coord.SaveNow(context.Background(), "sess-b", "ch-1", "C", 3)
	if !apperrors.IsCode(err, apperrors.CodeVersionConflict) {
		t.Fatalf("second save error = %v, want version conflict", err)
	}

	content, version := writer.state("ch-1")
	if content != "B" || version != 4 {
		t.Fatalf("loser overwrote winner: (%q, %d)", content, version)
	}

	// 输家的内容落入本地备份，进入对账流程
	snap, err := snapshots.Get(context.Background(), "sess-b", "ch-1")
	if err != nil || snap == nil {
		t.Fatalf("expected backup snapshot for loser, got %v (err %v)", snap, err)
	}
	if snap.Content != "C" || snap.BaseVersion != 3 {
		t.Fatalf("snapshot = (%q, %d), want (C, 3)", snap.Content, snap.BaseVersion)
	}
	if conflicts.Load() != 1 {
		t.Fatalf("conflict handler invoked %d times, want 1", conflicts.Load())
	}
	if status := coord.Status("sess-b", "ch-1"); status.State != SaveStateConflict {
		t.Fatalf("loser status = %v, want conflict", status.State)
	}
}

// 冲突绝不重试：输家只触发一次写入尝试。
func TestConflictNotRetried(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "A", 3)
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), testAutoSaveConfig())

	if _, err := coord.SaveNow(context.Background(), "sess-a", "ch-1", "B", 3); err != nil {
		t.Fatalf("first save: %v", err)
	}
	before := writer.callCount()

	_, err := coord.SaveNow(context.Background(), "sess-b", "ch-1", "C", 3)
	if !apperrors.IsCode(err, apperrors.CodeVersionConflict) {
		t.Fatalf("error = %v, want version conflict", err)
	}
	if got := writer.callCount() - before; got != 1 {
		t.Fatalf("conflicting save attempted %d writes, want 1", got)
	}
}

// 同基线同内容的重复保存幂等：版本不变，不产生新写入。
func TestSaveNowIdempotentResave(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), testAutoSaveConfig())

	v1, err := coord.SaveNow(context.Background(), "sess-a", "ch-1", "hello", 1)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	v2, err := coord.SaveNow(context.Background(), "sess-a", "ch-1", "hello", 1)
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if v1 != v2 {
		t.Fatalf("resave changed version: %d -> %d", v1, v2)
	}
	if writer.callCount() != 1 {
		t.Fatalf("writer called %d times, want 1", writer.callCount())
	}
}

// 防抖窗口内的连续编辑合并为一次写入，只保留最新内容。
func TestScheduleDebounceCoalesces(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), testAutoSaveConfig())

	ctx := context.Background()
	coord.Schedule(ctx, "sess-a", "ch-1", "one", 1)
	coord.Schedule(ctx, "sess-a", "ch-1", "one two", 1)
	coord.Schedule(ctx, "sess-a", "ch-1", "one two three", 1)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if content, version := writer.state("ch-1"); version == 2 {
			if content != "one two three" {
				t.Fatalf("content = %q, want latest edit", content)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced save never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if writer.callCount() != 1 {
		t.Fatalf("writer called %d times, want 1", writer.callCount())
	}
}

// Flush 立即保存挂起内容，不等防抖窗口到期。
func TestFlushSavesPendingImmediately(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	cfg := testAutoSaveConfig()
	cfg.ChapterDebounce = time.Hour
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), cfg)

	ctx := context.Background()
	coord.Schedule(ctx, "sess-a", "ch-1", "draft text", 1)

	version, err := coord.Flush(ctx, "sess-a", "ch-1")
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}
	if content, _ := writer.state("ch-1"); content != "draft text" {
		t.Fatalf("content = %q", content)
	}
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "A", 3)
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), testAutoSaveConfig())

	if _, err := coord.Flush(context.Background(), "sess-a", "ch-1"); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if writer.callCount() != 0 {
		t.Fatalf("no-op flush wrote %d times", writer.callCount())
	}
}

// 瞬时失败按退避重试，重试内恢复则保存成功且备份被清理。
func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	writer.failNext(transientErr("connection reset"))
	snapshots := newFakeSnapshotBackend()
	coord := NewAutoSaveCoordinator(writer, snapshots, testAutoSaveConfig())

	version, err := coord.SaveNow(context.Background(), "sess-a", "ch-1", "hello", 1)
	if err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}
	if writer.callCount() != 2 {
		t.Fatalf("writer called %d times, want 2", writer.callCount())
	}
	if snapshots.count() != 0 {
		t.Fatalf("successful save left %d snapshots", snapshots.count())
	}
}

// 防抖冲刷发生在请求事务提交之后，写入上下文必须剥离请求级事务。
func TestScheduleFlushStripsRequestTransaction(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), testAutoSaveConfig())

	reqCtx := context.WithValue(context.Background(), repository.TxKey{}, "request-tx")
	coord.Schedule(reqCtx, "sess-a", "ch-1", "防抖正文", 1)

	deadline := time.Now().Add(2 * time.Second)
	for writer.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("debounced save never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if tx := writer.lastContext().Value(repository.TxKey{}); tx != nil {
		t.Fatalf("debounced write context still carries request transaction: %v", tx)
	}
}

// 首次传输失败立即落盘备份：重试期间进程崩溃也不丢内容，
// 备份状态在重试进行中即对外可见。
func TestFirstTransientFailureBacksUpBeforeRetry(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	writer.failNext(transientErr("connection reset"))
	snapshots := newFakeSnapshotBackend()
	cfg := testAutoSaveConfig()
	cfg.RetryBackoff.Initial = 300 * time.Millisecond
	cfg.RetryBackoff.Max = 300 * time.Millisecond
	coord := NewAutoSaveCoordinator(writer, snapshots, cfg)

	done := make(chan struct{})
	var version int
	var saveErr error
	go func() {
		version, saveErr = coord.SaveNow(context.Background(), "sess-a", "ch-1", "unsaved work", 1)
		close(done)
	}()

	// 备份必须在退避等待期间就已可见
	deadline := time.Now().Add(2 * time.Second)
	for snapshots.count() == 0 || !coord.Status("sess-a", "ch-1").BackedUp {
		select {
		case <-done:
			t.Fatal("save finished before backup was observed")
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("no backup snapshot written after first transport failure")
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := snapshots.Get(context.Background(), "sess-a", "ch-1")
	if snap == nil || snap.Reason != entity.SnapshotReasonNetworkFailureBackup {
		t.Fatalf("snapshot = %+v, want network failure backup", snap)
	}

	<-done
	if saveErr != nil {
		t.Fatalf("SaveNow: %v", saveErr)
	}
	if version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}
	// 重试成功后备份清除
	if snapshots.count() != 0 {
		t.Fatalf("successful retry left %d snapshots", snapshots.count())
	}
}

// 重试耗尽后内容落入本地备份，状态转为 backed_up_locally。
func TestRetryExhaustionBacksUpLocally(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	writer.failNext(
		transientErr("timeout 1"),
		transientErr("timeout 2"),
		transientErr("timeout 3"),
	)
	snapshots := newFakeSnapshotBackend()
	coord := NewAutoSaveCoordinator(writer, snapshots, testAutoSaveConfig())

	_, err := coord.SaveNow(context.Background(), "sess-a", "ch-1", "unsaved work", 1)
	if !apperrors.IsCode(err, apperrors.CodeTransientIO) {
		t.Fatalf("error = %v, want transient IO", err)
	}

	snap, err := snapshots.Get(context.Background(), "sess-a", "ch-1")
	if err != nil || snap == nil {
		t.Fatalf("expected backup snapshot, got %v (err %v)", snap, err)
	}
	if snap.Content != "unsaved work" {
		t.Fatalf("snapshot content = %q", snap.Content)
	}
	if status := coord.Status("sess-a", "ch-1"); status.State != SaveStateBackedUp {
		t.Fatalf("status = %v, want backed_up_locally", status.State)
	}

	// 服务端内容未被触碰
	if content, version := writer.state("ch-1"); content != "" || version != 1 {
		t.Fatalf("server state changed: (%q, %d)", content, version)
	}
}

// 章节不存在是确定性错误，不重试也不备份为瞬时失败。
func TestChapterNotFoundNotRetried(t *testing.T) {
	writer := newFakeChapterWriter()
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), testAutoSaveConfig())

	_, err := coord.SaveNow(context.Background(), "sess-a", "ch-missing", "text", 1)
	if !apperrors.IsCode(err, apperrors.CodeChapterNotFound) {
		t.Fatalf("error = %v, want chapter not found", err)
	}
	if writer.callCount() != 1 {
		t.Fatalf("writer called %d times, want 1", writer.callCount())
	}
}

// 不同章节的保存互不阻塞，各自独立计版本。
func TestChaptersSaveIndependently(t *testing.T) {
	writer := newFakeChapterWriter()
	writer.seed("ch-1", "", 1)
	writer.seed("ch-2", "", 7)
	coord := NewAutoSaveCoordinator(writer, newFakeSnapshotBackend(), testAutoSaveConfig())

	ctx := context.Background()
	v1, err := coord.SaveNow(ctx, "sess-a", "ch-1", "one", 1)
	if err != nil {
		t.Fatalf("save ch-1: %v", err)
	}
	v2, err := coord.SaveNow(ctx, "sess-a", "ch-2", "two", 7)
	if err != nil {
		t.Fatalf("save ch-2: %v", err)
	}
	if v1 != 2 || v2 != 8 {
		t.Fatalf("versions = (%d, %d), want (2, 8)", v1, v2)
	}
}
