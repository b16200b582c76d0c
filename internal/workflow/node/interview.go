package node

import (
	"fmt"
	"strings"

	wfmodel "bookforge-ai-api/internal/workflow/model"
)

// BuildAnswersBlock 把访谈问答拼装为提示词素材块。
// 空回答直接跳过，不在提示词中留空洞。
func BuildAnswersBlock(answers []wfmodel.InterviewAnswer) string {
	if len(answers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(answers)+1)
	lines = append(lines, "访谈素材：")
	for i, a := range answers {
		q := strings.TrimSpace(a.Question)
		ans := strings.TrimSpace(a.Answer)
		if ans == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("问题 %d：%s\n回答：%s", i+1, q, ans))
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n\n")
}
