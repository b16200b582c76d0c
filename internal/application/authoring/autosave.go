// Package authoring 实现章节写作流水线的应用服务
package authoring

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	apperrors "bookforge-ai-api/pkg/errors"
	"bookforge-ai-api/pkg/logger"
	"bookforge-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("authoring")

// ChapterContentWriter 章节内容版本化写入端口
type ChapterContentWriter interface {
	UpdateContentVersioned(ctx context.Context, id, content string, expectedVersion int) (int, error)
}

// SnapshotBackend 备份快照存储端口
type SnapshotBackend interface {
	Save(ctx context.Context, snapshot *entity.AutoSaveSnapshot) error
	Get(ctx context.Context, sessionID, chapterID string) (*entity.AutoSaveSnapshot, error)
	Delete(ctx context.Context, sessionID, chapterID string) error
}

// SaveState 章节保存状态
type SaveState string

const (
	SaveStateIdle     SaveState = "idle"
	SaveStatePending  SaveState = "pending"
	SaveStateRetrying SaveState = "retrying"
	// SaveStateBackedUp 保存失败且已落盘本地备份，对应"未保存——已本地备份"提示
	SaveStateBackedUp SaveState = "backed_up_locally"
	SaveStateConflict SaveState = "conflict"
	SaveStateSaved    SaveState = "saved"
)

// ChapterSaveStatus 对外可见的章节保存状态
type ChapterSaveStatus struct {
	State        SaveState `json:"state"`
	Version      int       `json:"version"`
	BackedUp     bool      `json:"backed_up,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	PendingSince time.Time `json:"pending_since,omitempty"`
}

// ConflictHandler 版本冲突回调，接入对账流程
type ConflictHandler func(ctx context.Context, snapshot *entity.AutoSaveSnapshot)

// AutoSaveCoordinator 自动保存协调器。
// 每个章节独立防抖计时与写锁：同一章节任一时刻最多一个在途写入，
// 不同章节的保存互不阻塞。手动保存与自动保存走同一条路径。
type AutoSaveCoordinator struct {
	writer     ChapterContentWriter
	snapshots  SnapshotBackend
	cfg        config.AutoSaveConfig
	onConflict ConflictHandler

	mu     sync.Mutex
	states map[string]*chapterSaveState
}

type chapterSaveState struct {
	// mu 是章节写锁，保证单章节保存严格有序
	mu sync.Mutex

	pendingMu sync.Mutex
	timer     *time.Timer
	pending   *entity.AutoSaveSnapshot
	// generation 在每次新排程时递增，重试循环据此感知被更新内容取代
	generation uint64
	status     ChapterSaveStatus

	// 幂等去重：同基线版本、同内容的重复保存直接返回上次结果
	lastContent     string
	lastBaseVersion int
}

// NewAutoSaveCoordinator 创建自动保存协调器
func NewAutoSaveCoordinator(writer ChapterContentWriter, snapshots SnapshotBackend, cfg config.AutoSaveConfig) *AutoSaveCoordinator {
	if cfg.ChapterDebounce <= 0 {
		cfg.ChapterDebounce = 3 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff.Initial <= 0 {
		cfg.RetryBackoff = config.BackoffConfig{
			Initial:    2 * time.Second,
			Max:        8 * time.Second,
			Multiplier: 2,
		}
	}
	return &AutoSaveCoordinator{
		writer:    writer,
		snapshots: snapshots,
		cfg:       cfg,
		states:    make(map[string]*chapterSaveState),
	}
}

// OnConflict 注册版本冲突回调
func (c *AutoSaveCoordinator) OnConflict(handler ConflictHandler) {
	c.onConflict = handler
}

func saveKey(sessionID, chapterID string) string {
	return sessionID + ":" + chapterID
}

func (c *AutoSaveCoordinator) state(sessionID, chapterID string) *chapterSaveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := saveKey(sessionID, chapterID)
	st, ok := c.states[key]
	if !ok {
		st = &chapterSaveState{
			status: ChapterSaveStatus{State: SaveStateIdle},
		}
		c.states[key] = st
	}
	return st
}

// Schedule 排程一次防抖保存。
// 防抖窗口内的后续编辑只保留最新内容，旧计时器被重置。
func (c *AutoSaveCoordinator) Schedule(ctx context.Context, sessionID, chapterID, content string, baseVersion int) {
	st := c.state(sessionID, chapterID)

	st.pendingMu.Lock()
	defer st.pendingMu.Unlock()

	if st.pending == nil {
		metrics.AutoSavePending.Inc()
	}
	st.pending = entity.NewSnapshot(sessionID, chapterID, content, baseVersion)
	st.generation++
	st.status.State = SaveStatePending
	st.status.PendingSince = st.pending.CapturedAt

	if st.timer != nil {
		st.timer.Stop()
	}
	// 计时器触发在请求生命周期之外：既不能继承取消，
	// 也不能继承请求级事务（触发时事务早已提交）
	flushCtx := repository.WithoutTx(context.WithoutCancel(ctx))
	st.timer = time.AfterFunc(c.cfg.ChapterDebounce, func() {
		if _, err := c.flushState(flushCtx, st); err != nil {
			logger.Warn(flushCtx, "debounced auto-save failed",
				"chapter_id", chapterID,
				"error", err.Error(),
			)
		}
	})
}

// Flush 立即保存挂起内容（标签页关闭、离开页面、手动保存触发）。
// 没有挂起内容时为无操作，返回最近一次已知版本。
func (c *AutoSaveCoordinator) Flush(ctx context.Context, sessionID, chapterID string) (int, error) {
	ctx, span := tracer.Start(ctx, "authoring.AutoSaveCoordinator.Flush")
	defer span.End()

	st := c.state(sessionID, chapterID)
	return c.flushState(ctx, st)
}

// SaveNow 手动保存。与自动保存共用同一条写路径，
// 手动内容会取代任何挂起或重试中的自动保存内容。
func (c *AutoSaveCoordinator) SaveNow(ctx context.Context, sessionID, chapterID, content string, baseVersion int) (int, error) {
	ctx, span := tracer.Start(ctx, "authoring.AutoSaveCoordinator.SaveNow")
	defer span.End()

	st := c.state(sessionID, chapterID)

	st.pendingMu.Lock()
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	if st.pending == nil {
		metrics.AutoSavePending.Inc()
	}
	st.pending = entity.NewSnapshot(sessionID, chapterID, content, baseVersion)
	st.generation++
	st.status.State = SaveStatePending
	st.pendingMu.Unlock()

	return c.flushState(ctx, st)
}

// Status 返回章节的保存状态
func (c *AutoSaveCoordinator) Status(sessionID, chapterID string) ChapterSaveStatus {
	st := c.state(sessionID, chapterID)
	st.pendingMu.Lock()
	defer st.pendingMu.Unlock()
	return st.status
}

// flushState 取出挂起快照并持有章节写锁执行保存
func (c *AutoSaveCoordinator) flushState(ctx context.Context, st *chapterSaveState) (int, error) {
	st.pendingMu.Lock()
	snap := st.pending
	gen := st.generation
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	if snap == nil {
		version := st.status.Version
		st.pendingMu.Unlock()
		return version, nil
	}
	// 幂等：同基线同内容的重复保存不产生新写入
	if st.status.State == SaveStateSaved &&
		snap.Content == st.lastContent && snap.BaseVersion == st.lastBaseVersion {
		st.pending = nil
		metrics.AutoSavePending.Dec()
		version := st.status.Version
		st.pendingMu.Unlock()
		return version, nil
	}
	st.pendingMu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// 持锁后再次确认快照未被更新的排程取代
	st.pendingMu.Lock()
	if st.generation != gen || st.pending == nil {
		version := st.status.Version
		st.pendingMu.Unlock()
		return version, nil
	}
	st.pending = nil
	metrics.AutoSavePending.Dec()
	st.pendingMu.Unlock()

	return c.save(ctx, st, snap, gen)
}

// save 执行带重试的版本化写入，调用方必须持有章节写锁
func (c *AutoSaveCoordinator) save(ctx context.Context, st *chapterSaveState, snap *entity.AutoSaveSnapshot, gen uint64) (int, error) {
	backoff := c.cfg.RetryBackoff.Initial
	var lastErr error
	// 首次传输失败就落盘备份，重试期间进程崩溃也不丢内容
	backedUp := false

	for attempt := 0; ; attempt++ {
		newVersion, err := c.writer.UpdateContentVersioned(ctx, snap.ChapterID, snap.Content, snap.BaseVersion)
		if err == nil {
			if delErr := c.snapshots.Delete(ctx, snap.SessionID, snap.ChapterID); delErr != nil {
				logger.Warn(ctx, "failed to clear backup snapshot after save",
					"chapter_id", snap.ChapterID,
					"error", delErr.Error(),
				)
			}
			st.pendingMu.Lock()
			st.status = ChapterSaveStatus{State: SaveStateSaved, Version: newVersion}
			st.lastContent = snap.Content
			st.lastBaseVersion = snap.BaseVersion
			st.pendingMu.Unlock()
			metrics.AutoSaveTotal.WithLabelValues("chapter", "ok").Inc()
			return newVersion, nil
		}

		// 版本冲突：绝不盲目重试，落盘备份并转入对账
		if apperrors.IsCode(err, apperrors.CodeVersionConflict) {
			snap.UpgradeToBackup()
			if saveErr := c.snapshots.Save(ctx, snap); saveErr != nil {
				logger.Error(ctx, "failed to persist backup snapshot on conflict", saveErr,
					"chapter_id", snap.ChapterID,
				)
			}
			st.pendingMu.Lock()
			st.status = ChapterSaveStatus{State: SaveStateConflict, Version: st.status.Version, LastError: err.Error()}
			st.pendingMu.Unlock()
			metrics.AutoSaveTotal.WithLabelValues("chapter", "conflict").Inc()
			if c.onConflict != nil {
				c.onConflict(ctx, snap)
			}
			return 0, err
		}

		// 章节不存在或校验失败属于确定性错误，重试无意义
		if apperrors.IsCode(err, apperrors.CodeChapterNotFound) ||
			apperrors.IsCode(err, apperrors.CodeValidationFailed) {
			st.pendingMu.Lock()
			st.status = ChapterSaveStatus{State: SaveStateIdle, Version: st.status.Version, LastError: err.Error()}
			st.pendingMu.Unlock()
			metrics.AutoSaveTotal.WithLabelValues("chapter", "failed").Inc()
			return 0, err
		}

		lastErr = err
		if !backedUp {
			snap.UpgradeToBackup()
			if saveErr := c.snapshots.Save(ctx, snap); saveErr != nil {
				logger.Error(ctx, "failed to persist backup snapshot on transient failure", saveErr,
					"chapter_id", snap.ChapterID,
				)
			} else {
				backedUp = true
				metrics.AutoSaveBackups.Inc()
			}
		}
		if attempt >= c.cfg.MaxRetries {
			break
		}

		st.pendingMu.Lock()
		st.status.State = SaveStateRetrying
		st.status.BackedUp = backedUp
		st.status.LastError = err.Error()
		st.pendingMu.Unlock()
		metrics.AutoSaveRetries.WithLabelValues("chapter").Inc()
		logger.Warn(ctx, "auto-save transient failure, will retry",
			"chapter_id", snap.ChapterID,
			"attempt", attempt+1,
			"backoff", backoff.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			c.backUp(ctx, st, snap, ctx.Err(), backedUp)
			return 0, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * c.cfg.RetryBackoff.Multiplier)
		if backoff > c.cfg.RetryBackoff.Max {
			backoff = c.cfg.RetryBackoff.Max
		}

		// 更新的内容已经排程时放弃旧内容的重试
		st.pendingMu.Lock()
		superseded := st.generation != gen
		st.pendingMu.Unlock()
		if superseded {
			return 0, lastErr
		}
	}

	c.backUp(ctx, st, snap, lastErr, backedUp)
	metrics.AutoSaveTotal.WithLabelValues("chapter", "transient").Inc()
	return 0, apperrors.Wrap(lastErr, apperrors.CodeTransientIO, "auto-save failed after retries")
}

// backUp 重试结束后把状态定格为"未保存——已本地备份"。
// persisted 表示快照在首次失败时已落盘，此处不再重复写入。
func (c *AutoSaveCoordinator) backUp(ctx context.Context, st *chapterSaveState, snap *entity.AutoSaveSnapshot, cause error, persisted bool) {
	if !persisted {
		snap.UpgradeToBackup()
		if err := c.snapshots.Save(ctx, snap); err != nil {
			logger.Error(ctx, "failed to persist backup snapshot", err,
				"chapter_id", snap.ChapterID,
			)
		}
		metrics.AutoSaveBackups.Inc()
	}
	st.pendingMu.Lock()
	st.status = ChapterSaveStatus{State: SaveStateBackedUp, Version: st.status.Version, BackedUp: true}
	if cause != nil {
		st.status.LastError = cause.Error()
	}
	st.pendingMu.Unlock()
}
