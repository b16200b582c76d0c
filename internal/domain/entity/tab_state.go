// Package entity 定义领域实体
package entity

import (
	"time"
)

// TabState 打开章节的标签页状态
// TabOrder 始终是书籍当前章节 ID 集合的一个排列；
// 属于 UI 状态，镜像同步尽力而为，丢失不致命。
type TabState struct {
	BookID          string    `json:"book_id"`
	SessionID       string    `json:"session_id"`
	TabOrder        []string  `json:"tab_order"`
	ActiveChapterID string    `json:"active_chapter_id,omitempty"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

// NewTabState 创建空的标签页状态
func NewTabState(bookID, sessionID string) *TabState {
	return &TabState{
		BookID:    bookID,
		SessionID: sessionID,
		TabOrder:  []string{},
	}
}

// Contains 检查章节是否已打开
func (t *TabState) Contains(chapterID string) bool {
	for _, id := range t.TabOrder {
		if id == chapterID {
			return true
		}
	}
	return false
}

// IndexOf 返回章节在标签序列中的位置，不存在时返回 -1
func (t *TabState) IndexOf(chapterID string) int {
	for i, id := range t.TabOrder {
		if id == chapterID {
			return i
		}
	}
	return -1
}

// Clone 深拷贝标签页状态
func (t *TabState) Clone() *TabState {
	order := make([]string, len(t.TabOrder))
	copy(order, t.TabOrder)
	return &TabState{
		BookID:          t.BookID,
		SessionID:       t.SessionID,
		TabOrder:        order,
		ActiveChapterID: t.ActiveChapterID,
		LastSyncedAt:    t.LastSyncedAt,
	}
}
