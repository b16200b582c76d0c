// Package entity 定义领域实体
package entity

import (
	"time"
)

// Question 访谈问题实体
// 创建后不可变；重新生成会替换整个章节的问题集。
type Question struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChapterID   string    `json:"chapter_id" gorm:"type:uuid;index;not null"`
	Text        string    `json:"text" gorm:"type:text;not null"`
	SeqNum      int       `json:"seq_num" gorm:"not null"`
	GeneratedAt time.Time `json:"generated_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Question) TableName() string {
	return "questions"
}

// NewQuestion 创建新问题
func NewQuestion(chapterID, text string, seqNum int) *Question {
	return &Question{
		ChapterID:   chapterID,
		Text:        text,
		SeqNum:      seqNum,
		GeneratedAt: time.Now(),
	}
}
