// Package entity 定义领域实体
package entity

import (
	"time"
)

// BookStatus 书籍状态
type BookStatus string

const (
	BookStatusDrafting BookStatus = "drafting"
	BookStatusOutlined BookStatus = "outlined"
	BookStatusWriting  BookStatus = "writing"
	BookStatusComplete BookStatus = "complete"
)

// Book 书籍实体
type Book struct {
	ID        string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID   string     `json:"owner_id" gorm:"type:uuid;index;not null"`
	Title     string     `json:"title" gorm:"type:varchar(255);not null"`
	Summary   string     `json:"summary,omitempty" gorm:"type:text"`
	Status    BookStatus `json:"status" gorm:"type:varchar(50);default:'drafting'"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Book) TableName() string {
	return "books"
}

// NewBook 创建新书籍
func NewBook(ownerID, title, summary string) *Book {
	now := time.Now()
	return &Book{
		OwnerID:   ownerID,
		Title:     title,
		Summary:   summary,
		Status:    BookStatusDrafting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkOutlined 目录生成完成后标记
func (b *Book) MarkOutlined() {
	if b.Status == BookStatusDrafting {
		b.Status = BookStatusOutlined
		b.UpdatedAt = time.Now()
	}
}
