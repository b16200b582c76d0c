// Package entity 定义领域实体
package entity

import (
	"fmt"
	"time"
)

// JobStatus 草稿生成任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// DraftGenerationJob 草稿生成任务
// 状态沿 pending → running → succeeded/failed 单调推进，
// 终态任务不会回退为 running；重试通过重新提交新任务完成。
type DraftGenerationJob struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChapterID      string    `json:"chapter_id" gorm:"type:uuid;index;not null"`
	BookID         string    `json:"book_id" gorm:"type:uuid;index;not null"`
	Status         JobStatus `json:"status" gorm:"type:varchar(50);default:'pending'"`
	WritingStyle   string    `json:"writing_style,omitempty" gorm:"type:varchar(50)"`
	ErrorMessage   string    `json:"error_message,omitempty" gorm:"type:text"`
	ResultRef      string    `json:"result_ref,omitempty" gorm:"type:varchar(255)"`
	RetryCount     int       `json:"retry_count" gorm:"default:0"`
	LLMProvider    string    `json:"llm_provider,omitempty" gorm:"type:varchar(64)"`
	LLMModel       string    `json:"llm_model,omitempty" gorm:"type:varchar(128)"`
	TokensPrompt   int       `json:"tokens_prompt,omitempty"`
	TokensComplete int       `json:"tokens_completion,omitempty"`
	DurationMs     int       `json:"duration_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (DraftGenerationJob) TableName() string {
	return "draft_generation_jobs"
}

// NewDraftGenerationJob 创建新任务
func NewDraftGenerationJob(bookID, chapterID, writingStyle string) *DraftGenerationJob {
	return &DraftGenerationJob{
		BookID:       bookID,
		ChapterID:    chapterID,
		WritingStyle: writingStyle,
		Status:       JobStatusPending,
		CreatedAt:    time.Now(),
	}
}

// IsTerminal 检查任务是否处于终态
func (j *DraftGenerationJob) IsTerminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// Start 开始执行任务
func (j *DraftGenerationJob) Start() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("job %s cannot start from status %s", j.ID, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	return nil
}

// Succeed 任务成功
func (j *DraftGenerationJob) Succeed(resultRef string) error {
	if j.Status != JobStatusRunning {
		return fmt.Errorf("job %s cannot succeed from status %s", j.ID, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusSucceeded
	j.ResultRef = resultRef
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
	return nil
}

// Fail 任务失败
func (j *DraftGenerationJob) Fail(errMsg string) error {
	if j.IsTerminal() {
		return fmt.Errorf("job %s already terminal with status %s", j.ID, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
	return nil
}

// SetLLMMetrics 设置 LLM 使用指标
func (j *DraftGenerationJob) SetLLMMetrics(provider, model string, promptTokens, completionTokens int) {
	j.LLMProvider = provider
	j.LLMModel = model
	j.TokensPrompt = promptTokens
	j.TokensComplete = completionTokens
}
