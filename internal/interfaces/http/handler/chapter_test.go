package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	apperrors "bookforge-ai-api/pkg/errors"
)

// memChapterRepo 内存章节仓储，兼作版本化写入器
type memChapterRepo struct {
	mu       sync.Mutex
	chapters map[string]*entity.Chapter
}

func newMemChapterRepo() *memChapterRepo {
	return &memChapterRepo{chapters: make(map[string]*entity.Chapter)}
}

func (r *memChapterRepo) seed(chapter *entity.Chapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chapters[chapter.ID] = chapter
}

func (r *memChapterRepo) Create(ctx context.Context, chapter *entity.Chapter) error {
	r.seed(chapter)
	return nil
}

func (r *memChapterRepo) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	for _, c := range chapters {
		r.seed(c)
	}
	return nil
}

func (r *memChapterRepo) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chapters[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memChapterRepo) Update(ctx context.Context, chapter *entity.Chapter) error {
	r.seed(chapter)
	return nil
}

func (r *memChapterRepo) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chapters, id)
	return nil
}

func (r *memChapterRepo) ListByBook(ctx context.Context, bookID string, filter *repository.ChapterFilter) ([]*entity.Chapter, error) {
	return nil, nil
}

func (r *memChapterRepo) ListIDsByBook(ctx context.Context, bookID string) ([]string, error) {
	return nil, nil
}

func (r *memChapterRepo) UpdateContentVersioned(ctx context.Context, id, content string, expectedVersion int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chapters[id]
	if !ok {
		return 0, apperrors.ErrChapterNotFound
	}
	if c.ContentVersion != expectedVersion {
		return 0, apperrors.New(apperrors.CodeVersionConflict, "content version conflict")
	}
	c.SetContent(content)
	c.ContentVersion++
	return c.ContentVersion, nil
}

func (r *memChapterRepo) UpdateStatus(ctx context.Context, id string, status entity.ChapterStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chapters[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *memChapterRepo) GetNextSeqNum(ctx context.Context, bookID string) (int, error) {
	return 1, nil
}

func (r *memChapterRepo) state(id string) (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chapters[id]
	if !ok {
		return "", 0
	}
	return c.ContentText, c.ContentVersion
}

// nopSnapshots 测试用空快照存储
type nopSnapshots struct{}

func (nopSnapshots) Save(ctx context.Context, snapshot *entity.AutoSaveSnapshot) error { return nil }
func (nopSnapshots) Get(ctx context.Context, sessionID, chapterID string) (*entity.AutoSaveSnapshot, error) {
	return nil, nil
}
func (nopSnapshots) Delete(ctx context.Context, sessionID, chapterID string) error { return nil }

func newChapterTestServer(t *testing.T, repo *memChapterRepo, debounce time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	coordinator := authoring.NewAutoSaveCoordinator(repo, nopSnapshots{}, config.AutoSaveConfig{
		ChapterDebounce: debounce,
		MaxRetries:      1,
		RetryBackoff: config.BackoffConfig{
			Initial:    5 * time.Millisecond,
			Max:        10 * time.Millisecond,
			Multiplier: 2,
		},
	})
	h := NewChapterHandler(repo, coordinator, authoring.NewChapterStatusStateMachine())

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set("session_id", "sess-test")
	})
	engine.PUT("/v1/chapters/:cid", h.SaveContent)
	engine.POST("/v1/chapters/:cid/flush", h.FlushContent)
	engine.GET("/v1/chapters/:cid/save-status", h.SaveStatus)
	return engine
}

// 默认保存路径走防抖：请求返回 202，内容在窗口到期后持久化。
func TestSaveContentDebouncedByDefault(t *testing.T) {
	repo := newMemChapterRepo()
	repo.seed(&entity.Chapter{ID: "ch-1", BookID: "b-1", Status: entity.ChapterStatusDraft, ContentVersion: 1})
	engine := newChapterTestServer(t, repo, 20*time.Millisecond)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/chapters/ch-1",
		strings.NewReader(`{"content":"自动保存的正文","expected_version":1}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", w.Code, w.Body.String())
	}
	if content, _ := repo.state("ch-1"); content != "" {
		t.Fatalf("content persisted before debounce window: %q", content)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		content, version := repo.state("ch-1")
		if content == "自动保存的正文" {
			if version != 2 {
				t.Fatalf("version = %d, want 2", version)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced chapter save never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// immediate 为 true 时立即落库并返回新版本号。
func TestSaveContentImmediate(t *testing.T) {
	repo := newMemChapterRepo()
	repo.seed(&entity.Chapter{ID: "ch-1", BookID: "b-1", Status: entity.ChapterStatusDraft, ContentVersion: 1})
	engine := newChapterTestServer(t, repo, time.Hour)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/chapters/ch-1",
		strings.NewReader(`{"content":"手动保存的正文","expected_version":1,"immediate":true}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	content, version := repo.state("ch-1")
	if content != "手动保存的正文" || version != 2 {
		t.Fatalf("repo state = (%q, %d), want persisted at version 2", content, version)
	}
	// 首次保存把 draft 推进到 in_progress
	chapter, _ := repo.GetByID(context.Background(), "ch-1")
	if chapter.Status != entity.ChapterStatusInProgress {
		t.Fatalf("status = %s, want in_progress", chapter.Status)
	}
}

// 冲刷端点立即持久化挂起的防抖内容，供标签页关闭等导航时机调用。
func TestFlushContentPersistsPendingSave(t *testing.T) {
	repo := newMemChapterRepo()
	repo.seed(&entity.Chapter{ID: "ch-1", BookID: "b-1", Status: entity.ChapterStatusDraft, ContentVersion: 1})
	engine := newChapterTestServer(t, repo, time.Hour)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/chapters/ch-1",
		strings.NewReader(`{"content":"待冲刷的正文","expected_version":1}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("schedule status = %d, want 202", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/chapters/ch-1/flush", nil)
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("flush status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	content, version := repo.state("ch-1")
	if content != "待冲刷的正文" || version != 2 {
		t.Fatalf("repo state = (%q, %d), want flushed at version 2", content, version)
	}

	// 保存状态端点反映已保存
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/chapters/ch-1/save-status", nil)
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("save-status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), string(authoring.SaveStateSaved)) {
		t.Fatalf("save-status body = %s, want state saved", w.Body.String())
	}
}
