package dto

import (
	"time"

	"bookforge-ai-api/internal/domain/entity"
)

// RequestDraftRequest 草稿生成请求
type RequestDraftRequest struct {
	WritingStyle string `json:"writing_style"`
}

// JobResponse 草稿生成任务响应
type JobResponse struct {
	ID           string     `json:"id"`
	BookID       string     `json:"book_id"`
	ChapterID    string     `json:"chapter_id"`
	Status       string     `json:"status"`
	WritingStyle string     `json:"writing_style,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ResultRef    string     `json:"result_ref,omitempty"`
	DurationMs   int        `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ToJobResponse 转换任务实体为响应
func ToJobResponse(job *entity.DraftGenerationJob) JobResponse {
	return JobResponse{
		ID:           job.ID,
		BookID:       job.BookID,
		ChapterID:    job.ChapterID,
		Status:       string(job.Status),
		WritingStyle: job.WritingStyle,
		ErrorMessage: job.ErrorMessage,
		ResultRef:    job.ResultRef,
		DurationMs:   job.DurationMs,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}
