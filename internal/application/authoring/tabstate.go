// Package authoring 实现章节写作流水线的应用服务
package authoring

import (
	"context"
	"fmt"

	"bookforge-ai-api/internal/domain/entity"
	apperrors "bookforge-ai-api/pkg/errors"
	"bookforge-ai-api/pkg/logger"
)

// TabStateBackend 标签页状态存储端口
type TabStateBackend interface {
	Save(ctx context.Context, state *entity.TabState) error
	Get(ctx context.Context, bookID, sessionID string) (*entity.TabState, error)
	Delete(ctx context.Context, bookID, sessionID string) error
}

// ChapterIDLister 书籍章节 ID 集合端口
type ChapterIDLister interface {
	ListIDsByBook(ctx context.Context, bookID string) ([]string, error)
}

// TabStateManager 标签页状态管理。
// tabOrder 始终是书籍现存章节 ID 集合的子集排列；
// 持久化尽力而为，同步失败只记日志不报错。
type TabStateManager struct {
	store    TabStateBackend
	chapters ChapterIDLister
}

// NewTabStateManager 创建标签页状态管理器
func NewTabStateManager(store TabStateBackend, chapters ChapterIDLister) *TabStateManager {
	return &TabStateManager{store: store, chapters: chapters}
}

func (m *TabStateManager) load(ctx context.Context, bookID, sessionID string) (*entity.TabState, error) {
	state, err := m.store.Get(ctx, bookID, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = entity.NewTabState(bookID, sessionID)
	}
	return state, nil
}

// persist 尽力而为地同步状态，失败不向上传播
func (m *TabStateManager) persist(ctx context.Context, state *entity.TabState) {
	if err := m.store.Save(ctx, state); err != nil {
		logger.Warn(ctx, "best-effort tab state sync failed",
			"book_id", state.BookID,
			"error", err.Error(),
		)
	}
}

// OpenChapter 打开章节：不在序列中则追加到末尾，并设为活跃
func (m *TabStateManager) OpenChapter(ctx context.Context, bookID, sessionID, chapterID string) (*entity.TabState, error) {
	ctx, span := tracer.Start(ctx, "authoring.TabStateManager.OpenChapter")
	defer span.End()

	state, err := m.load(ctx, bookID, sessionID)
	if err != nil {
		return nil, err
	}
	if !state.Contains(chapterID) {
		state.TabOrder = append(state.TabOrder, chapterID)
	}
	state.ActiveChapterID = chapterID
	m.persist(ctx, state)
	return state, nil
}

// CloseChapter 关闭章节。
// 被关闭的是活跃标签时，活跃权优先落到左邻标签；
// 没有左邻则落到新的首个标签；列表空了则无活跃标签。
func (m *TabStateManager) CloseChapter(ctx context.Context, bookID, sessionID, chapterID string) (*entity.TabState, error) {
	ctx, span := tracer.Start(ctx, "authoring.TabStateManager.CloseChapter")
	defer span.End()

	state, err := m.load(ctx, bookID, sessionID)
	if err != nil {
		return nil, err
	}

	idx := state.IndexOf(chapterID)
	if idx < 0 {
		return state, nil
	}

	state.TabOrder = append(state.TabOrder[:idx], state.TabOrder[idx+1:]...)

	if state.ActiveChapterID == chapterID {
		switch {
		case len(state.TabOrder) == 0:
			state.ActiveChapterID = ""
		case idx > 0:
			state.ActiveChapterID = state.TabOrder[idx-1]
		default:
			state.ActiveChapterID = state.TabOrder[0]
		}
	}

	m.persist(ctx, state)
	return state, nil
}

// Reorder 重排标签序列。
// newOrder 必须是当前 tabOrder 的排列，否则拒绝并保持原状。
func (m *TabStateManager) Reorder(ctx context.Context, bookID, sessionID string, newOrder []string) (*entity.TabState, error) {
	ctx, span := tracer.Start(ctx, "authoring.TabStateManager.Reorder")
	defer span.End()

	state, err := m.load(ctx, bookID, sessionID)
	if err != nil {
		return nil, err
	}

	if !isPermutation(state.TabOrder, newOrder) {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "new order is not a permutation of open tabs").
			WithDetail(fmt.Sprintf("current %d tabs, got %d entries", len(state.TabOrder), len(newOrder)))
	}

	state.TabOrder = append([]string(nil), newOrder...)
	m.persist(ctx, state)
	return state, nil
}

// Restore 页面加载时用权威章节集合校正缓存的标签状态：
// 书里已不存在的章节从序列中剔除，缺失的现存章节追加到末尾，活跃标签同样校正。
func (m *TabStateManager) Restore(ctx context.Context, bookID, sessionID string) (*entity.TabState, error) {
	ctx, span := tracer.Start(ctx, "authoring.TabStateManager.Restore")
	defer span.End()

	state, err := m.load(ctx, bookID, sessionID)
	if err != nil {
		return nil, err
	}

	chapterIDs, err := m.chapters.ListIDsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(chapterIDs))
	for _, id := range chapterIDs {
		existing[id] = true
	}

	pruned := make([]string, 0, len(chapterIDs))
	opened := make(map[string]bool, len(state.TabOrder))
	for _, id := range state.TabOrder {
		if existing[id] {
			pruned = append(pruned, id)
			opened[id] = true
		}
	}
	for _, id := range chapterIDs {
		if !opened[id] {
			pruned = append(pruned, id)
		}
	}
	state.TabOrder = pruned

	if state.ActiveChapterID != "" && !existing[state.ActiveChapterID] {
		if len(state.TabOrder) > 0 {
			state.ActiveChapterID = state.TabOrder[0]
		} else {
			state.ActiveChapterID = ""
		}
	}

	m.persist(ctx, state)
	return state, nil
}

func isPermutation(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	seen := make(map[string]int, len(current))
	for _, id := range current {
		seen[id]++
	}
	for _, id := range proposed {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}
