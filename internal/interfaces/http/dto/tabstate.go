package dto

import (
	"time"

	"bookforge-ai-api/internal/domain/entity"
)

// TabState 操作类型
const (
	TabActionOpen    = "open"
	TabActionClose   = "close"
	TabActionReorder = "reorder"
)

// MutateTabStateRequest 标签页状态变更请求。
// open/close 需要 chapter_id，reorder 需要 tab_order（既有标签的全排列）。
type MutateTabStateRequest struct {
	Action    string   `json:"action" binding:"required,oneof=open close reorder"`
	ChapterID string   `json:"chapter_id"`
	TabOrder  []string `json:"tab_order"`
}

// TabStateResponse 标签页状态响应
type TabStateResponse struct {
	BookID          string    `json:"book_id"`
	TabOrder        []string  `json:"tab_order"`
	ActiveChapterID string    `json:"active_chapter_id,omitempty"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

// ToTabStateResponse 转换标签页状态
func ToTabStateResponse(state *entity.TabState) TabStateResponse {
	return TabStateResponse{
		BookID:          state.BookID,
		TabOrder:        state.TabOrder,
		ActiveChapterID: state.ActiveChapterID,
		LastSyncedAt:    state.LastSyncedAt,
	}
}
