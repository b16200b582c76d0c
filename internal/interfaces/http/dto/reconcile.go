package dto

import (
	"time"

	"bookforge-ai-api/internal/application/authoring"
)

// ResolveConflictRequest 冲突裁决请求
type ResolveConflictRequest struct {
	Choice string `json:"choice" binding:"required,oneof=keep_local discard_local"`
}

// ConflictReportResponse 分歧报告响应：并排呈现服务端内容与本地备份
type ConflictReportResponse struct {
	HasConflict      bool      `json:"has_conflict"`
	ChapterID        string    `json:"chapter_id"`
	ServerContent    string    `json:"server_content,omitempty"`
	ServerVersion    int       `json:"server_version,omitempty"`
	LocalContent     string    `json:"local_content,omitempty"`
	LocalBaseVersion int       `json:"local_base_version,omitempty"`
	LocalReason      string    `json:"local_reason,omitempty"`
	LocalCapturedAt  time.Time `json:"local_captured_at,omitempty"`
}

// ToConflictReportResponse 转换分歧报告
func ToConflictReportResponse(report *authoring.ConflictReport) ConflictReportResponse {
	return ConflictReportResponse{
		HasConflict:      report.HasConflict,
		ChapterID:        report.ChapterID,
		ServerContent:    report.ServerContent,
		ServerVersion:    report.ServerVersion,
		LocalContent:     report.LocalContent,
		LocalBaseVersion: report.LocalBaseVersion,
		LocalReason:      string(report.LocalReason),
		LocalCapturedAt:  report.LocalCapturedAt,
	}
}

// ResolveConflictResponse 裁决结果：落库后的章节版本
type ResolveConflictResponse struct {
	NewVersion int `json:"new_version"`
}
