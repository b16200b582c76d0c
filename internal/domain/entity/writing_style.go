// Package entity 定义领域实体
package entity

import "fmt"

// WritingStyle 草稿合成支持的写作风格。
// 封闭枚举，编排层边界校验后才允许进入生成链路。
type WritingStyle string

const (
	WritingStyleNarrative      WritingStyle = "narrative"
	WritingStyleConversational WritingStyle = "conversational"
	WritingStyleAcademic       WritingStyle = "academic"
	WritingStylePractical      WritingStyle = "practical"
	WritingStyleInspirational  WritingStyle = "inspirational"
)

// DefaultWritingStyle 未指定风格时的默认值
const DefaultWritingStyle = WritingStyleNarrative

// SupportedWritingStyles 返回全部支持的风格
func SupportedWritingStyles() []WritingStyle {
	return []WritingStyle{
		WritingStyleNarrative,
		WritingStyleConversational,
		WritingStyleAcademic,
		WritingStylePractical,
		WritingStyleInspirational,
	}
}

// IsValid 检查风格是否受支持
func (s WritingStyle) IsValid() bool {
	switch s {
	case WritingStyleNarrative, WritingStyleConversational, WritingStyleAcademic,
		WritingStylePractical, WritingStyleInspirational:
		return true
	default:
		return false
	}
}

// ParseWritingStyle 解析写作风格，空串映射为默认风格
func ParseWritingStyle(raw string) (WritingStyle, error) {
	if raw == "" {
		return DefaultWritingStyle, nil
	}
	s := WritingStyle(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unsupported writing style: %s", raw)
	}
	return s, nil
}
