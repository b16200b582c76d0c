// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// ResponseStatus 回答状态
type ResponseStatus string

const (
	ResponseStatusDraft     ResponseStatus = "draft"
	ResponseStatusCompleted ResponseStatus = "completed"
)

// QuestionResponse 问题回答实体
// 每个问题至多一条回答，保存时按 question_id 执行 upsert。
type QuestionResponse struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	QuestionID   string         `json:"question_id" gorm:"type:uuid;uniqueIndex;not null"`
	ChapterID    string         `json:"chapter_id" gorm:"type:uuid;index;not null"`
	ResponseText string         `json:"response_text" gorm:"type:text"`
	WordCount    int            `json:"word_count" gorm:"default:0"`
	Status       ResponseStatus `json:"status" gorm:"type:varchar(50);default:'draft'"`
	LastEditedAt time.Time      `json:"last_edited_at"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (QuestionResponse) TableName() string {
	return "question_responses"
}

// NewQuestionResponse 创建新回答
func NewQuestionResponse(questionID, chapterID, text string) *QuestionResponse {
	r := &QuestionResponse{
		QuestionID: questionID,
		ChapterID:  chapterID,
	}
	r.SetText(text)
	return r
}

// SetText 更新回答内容并重新计算状态
func (r *QuestionResponse) SetText(text string) {
	r.ResponseText = text
	r.WordCount = len(strings.Fields(text))
	if strings.TrimSpace(text) == "" {
		r.Status = ResponseStatusDraft
	} else {
		r.Status = ResponseStatusCompleted
	}
	r.LastEditedAt = time.Now()
}

// IsCompleted 检查回答是否完成
func (r *QuestionResponse) IsCompleted() bool {
	return r.Status == ResponseStatusCompleted
}
