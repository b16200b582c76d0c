// Package entity 定义领域实体
package entity

import (
	"time"
)

// SnapshotReason 快照产生原因
type SnapshotReason string

const (
	// SnapshotReasonDebounce 防抖窗口内的常规内存快照
	SnapshotReasonDebounce SnapshotReason = "debounce"
	// SnapshotReasonNetworkFailureBackup 保存失败后落盘的备份快照
	SnapshotReasonNetworkFailureBackup SnapshotReason = "network_failure_backup"
)

// AutoSaveSnapshot 自动保存快照
// 仅用于崩溃或网络故障后的恢复，服务端保存成功后即被清除，
// 永远不作为内容的权威来源。
type AutoSaveSnapshot struct {
	SessionID   string         `json:"session_id"`
	ChapterID   string         `json:"chapter_id"`
	Content     string         `json:"content"`
	BaseVersion int            `json:"base_version"`
	Reason      SnapshotReason `json:"reason"`
	CapturedAt  time.Time      `json:"captured_at"`
}

// NewSnapshot 创建防抖快照
func NewSnapshot(sessionID, chapterID, content string, baseVersion int) *AutoSaveSnapshot {
	return &AutoSaveSnapshot{
		SessionID:   sessionID,
		ChapterID:   chapterID,
		Content:     content,
		BaseVersion: baseVersion,
		Reason:      SnapshotReasonDebounce,
		CapturedAt:  time.Now(),
	}
}

// UpgradeToBackup 保存失败后升级为备份快照
func (s *AutoSaveSnapshot) UpgradeToBackup() {
	s.Reason = SnapshotReasonNetworkFailureBackup
	s.CapturedAt = time.Now()
}
