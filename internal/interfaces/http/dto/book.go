package dto

import (
	"time"

	"bookforge-ai-api/internal/domain/entity"
)

// CreateBookRequest 创建书籍请求
type CreateBookRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Summary string `json:"summary"`
}

// ToBookEntity 转换为书籍实体
func (r *CreateBookRequest) ToBookEntity(ownerID string) *entity.Book {
	return entity.NewBook(ownerID, r.Title, r.Summary)
}

// UpdateBookRequest 更新书籍请求
type UpdateBookRequest struct {
	Title   *string `json:"title,omitempty"`
	Summary *string `json:"summary,omitempty"`
}

// Apply 将非空字段应用到书籍实体
func (r *UpdateBookRequest) Apply(book *entity.Book) {
	if r.Title != nil {
		book.Title = *r.Title
	}
	if r.Summary != nil {
		book.Summary = *r.Summary
	}
}

// BookResponse 书籍响应
type BookResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToBookResponse 转换书籍实体为响应
func ToBookResponse(book *entity.Book) BookResponse {
	return BookResponse{
		ID:        book.ID,
		Title:     book.Title,
		Summary:   book.Summary,
		Status:    string(book.Status),
		CreatedAt: book.CreatedAt,
		UpdatedAt: book.UpdatedAt,
	}
}

// BookListResponse 书籍列表响应
type BookListResponse struct {
	Books []BookResponse `json:"books"`
}

// ToBookListResponse 转换书籍列表
func ToBookListResponse(books []*entity.Book) BookListResponse {
	items := make([]BookResponse, 0, len(books))
	for _, b := range books {
		items = append(items, ToBookResponse(b))
	}
	return BookListResponse{Books: items}
}

// GenerateTOCRequest 目录生成请求
type GenerateTOCRequest struct {
	TargetChapterCount int `json:"target_chapter_count"`
}

// TOCResponse 目录生成响应：二选一，物化的章节或澄清问题
type TOCResponse struct {
	Chapters            []ChapterResponse `json:"chapters,omitempty"`
	ClarifyingQuestions []string          `json:"clarifying_questions,omitempty"`
	NeedsClarification  bool              `json:"needs_clarification"`
}
