// Package entity 定义领域实体
package entity

import (
	"time"

	"gorm.io/gorm"
)

// ChapterStatus 章节状态
type ChapterStatus string

const (
	ChapterStatusDraft      ChapterStatus = "draft"
	ChapterStatusInProgress ChapterStatus = "in_progress"
	ChapterStatusCompleted  ChapterStatus = "completed"
	ChapterStatusPublished  ChapterStatus = "published"
)

// Chapter 章节实体
// ContentVersion 在每次接受的写入上严格递增，作为乐观并发控制的依据。
// 删除为软删除，保留可恢复窗口。
type Chapter struct {
	ID             string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BookID         string         `json:"book_id" gorm:"type:uuid;index;not null"`
	SeqNum         int            `json:"seq_num" gorm:"not null"`
	Title          string         `json:"title,omitempty" gorm:"type:varchar(255)"`
	Description    string         `json:"description,omitempty" gorm:"type:text"`
	ContentText    string         `json:"content_text,omitempty" gorm:"type:text"`
	CharCount      int            `json:"char_count" gorm:"default:0"`
	Status         ChapterStatus  `json:"status" gorm:"type:varchar(50);default:'draft'"`
	ContentVersion int            `json:"content_version" gorm:"default:1"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建新章节
func NewChapter(bookID, title, description string, seqNum int) *Chapter {
	now := time.Now()
	return &Chapter{
		BookID:         bookID,
		Title:          title,
		Description:    description,
		SeqNum:         seqNum,
		CharCount:      0,
		Status:         ChapterStatusDraft,
		ContentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetContent 设置章节内容
func (c *Chapter) SetContent(content string) {
	c.ContentText = content
	c.CharCount = len([]rune(content))
	c.UpdatedAt = time.Now()
}

// IsEditable 检查章节是否可编辑
func (c *Chapter) IsEditable() bool {
	return c.Status != ChapterStatusPublished
}
