package dto

import (
	"time"

	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/domain/entity"
)

// GenerateQuestionsRequest 采访问题生成请求。
// regenerate 为 true 时替换既有问题集，旧回答随之失效。
type GenerateQuestionsRequest struct {
	Regenerate bool `json:"regenerate"`
}

// QuestionItem 采访问题
type QuestionItem struct {
	ID          string    `json:"id"`
	ChapterID   string    `json:"chapter_id"`
	Text        string    `json:"text"`
	SeqNum      int       `json:"seq_num"`
	GeneratedAt time.Time `json:"generated_at"`
}

// QuestionListResponse 问题列表响应
type QuestionListResponse struct {
	Questions []QuestionItem `json:"questions"`
}

// ToQuestionListResponse 转换问题列表
func ToQuestionListResponse(questions []*entity.Question) QuestionListResponse {
	items := make([]QuestionItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, QuestionItem{
			ID:          q.ID,
			ChapterID:   q.ChapterID,
			Text:        q.Text,
			SeqNum:      q.SeqNum,
			GeneratedAt: q.GeneratedAt,
		})
	}
	return QuestionListResponse{Questions: items}
}

// SaveResponseRequest 问题回答保存请求
type SaveResponseRequest struct {
	Text string `json:"text"`
	// Immediate 为 true 时跳过防抖立即落库（失焦、切换章节等场景）
	Immediate bool `json:"immediate"`
}

// ScheduledSaveResponse 防抖保存已受理
type ScheduledSaveResponse struct {
	Scheduled bool `json:"scheduled"`
}

// ResponseItem 问题回答
type ResponseItem struct {
	ID           string    `json:"id"`
	QuestionID   string    `json:"question_id"`
	ChapterID    string    `json:"chapter_id"`
	Text         string    `json:"text"`
	WordCount    int       `json:"word_count"`
	Status       string    `json:"status"`
	LastEditedAt time.Time `json:"last_edited_at"`
}

// ToResponseItem 转换回答实体
func ToResponseItem(r *entity.QuestionResponse) ResponseItem {
	return ResponseItem{
		ID:           r.ID,
		QuestionID:   r.QuestionID,
		ChapterID:    r.ChapterID,
		Text:         r.ResponseText,
		WordCount:    r.WordCount,
		Status:       string(r.Status),
		LastEditedAt: r.LastEditedAt,
	}
}

// ResponseListResponse 回答列表响应
type ResponseListResponse struct {
	Responses []ResponseItem `json:"responses"`
}

// ToResponseListResponse 转换回答列表
func ToResponseListResponse(responses []*entity.QuestionResponse) ResponseListResponse {
	items := make([]ResponseItem, 0, len(responses))
	for _, r := range responses {
		items = append(items, ToResponseItem(r))
	}
	return ResponseListResponse{Responses: items}
}

// ProgressResponse 回答完成度响应
type ProgressResponse struct {
	Answered int      `json:"answered"`
	Total    int      `json:"total"`
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing,omitempty"`
}

// ToProgressResponse 转换完成度
func ToProgressResponse(p authoring.CompletionProgress) ProgressResponse {
	return ProgressResponse{
		Answered: p.Answered,
		Total:    p.Total,
		Complete: p.Complete(),
		Missing:  p.Missing,
	}
}
