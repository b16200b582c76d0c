package dto

import (
	"time"

	"bookforge-ai-api/internal/domain/entity"
)

// CreateChapterRequest 创建章节请求
type CreateChapterRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
}

// SaveChapterContentRequest 章节正文保存请求。
// expected_version 为客户端持有的版本号，服务端据此做乐观并发检查。
type SaveChapterContentRequest struct {
	Content         string `json:"content" binding:"required"`
	ExpectedVersion int    `json:"expected_version" binding:"required,min=1"`
	// Immediate 为 true 时跳过防抖立即落库（手动保存、发布前校验等场景）
	Immediate bool `json:"immediate"`
}

// SaveChapterContentResponse 保存成功后的新版本号
type SaveChapterContentResponse struct {
	NewVersion int `json:"new_version"`
}

// TransitionChapterStatusRequest 章节状态流转请求
type TransitionChapterStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID             string    `json:"id"`
	BookID         string    `json:"book_id"`
	SeqNum         int       `json:"seq_num"`
	Title          string    `json:"title,omitempty"`
	Description    string    `json:"description,omitempty"`
	ContentText    string    `json:"content_text,omitempty"`
	CharCount      int       `json:"char_count"`
	Status         string    `json:"status"`
	ContentVersion int       `json:"content_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToChapterResponse 转换章节实体为响应
func ToChapterResponse(chapter *entity.Chapter) ChapterResponse {
	return ChapterResponse{
		ID:             chapter.ID,
		BookID:         chapter.BookID,
		SeqNum:         chapter.SeqNum,
		Title:          chapter.Title,
		Description:    chapter.Description,
		ContentText:    chapter.ContentText,
		CharCount:      chapter.CharCount,
		Status:         string(chapter.Status),
		ContentVersion: chapter.ContentVersion,
		CreatedAt:      chapter.CreatedAt,
		UpdatedAt:      chapter.UpdatedAt,
	}
}

// ChapterListResponse 章节列表响应
type ChapterListResponse struct {
	Chapters []ChapterResponse `json:"chapters"`
}

// ToChapterListResponse 转换章节列表
func ToChapterListResponse(chapters []*entity.Chapter) ChapterListResponse {
	items := make([]ChapterResponse, 0, len(chapters))
	for _, ch := range chapters {
		items = append(items, ToChapterResponse(ch))
	}
	return ChapterListResponse{Chapters: items}
}
