package model

type TOCGenerateInput struct {
	BookTitle   string
	BookSummary string

	TargetChapterCount int

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// TOCChapter 目录中的一个章节条目
type TOCChapter struct {
	Title    string `json:"title"`
	Synopsis string `json:"synopsis"`
}

// TOCGenerateOutput 目录生成结果。
// Chapters 与 ClarifyingQuestions 互斥：摘要信息不足时
// 返回澄清问题而非目录，这是条件分支而不是错误。
type TOCGenerateOutput struct {
	Chapters            []TOCChapter `json:"chapters,omitempty"`
	ClarifyingQuestions []string     `json:"clarifying_questions,omitempty"`
	Meta                LLMUsageMeta `json:"-"`
}

// NeedsClarification 判断是否进入澄清分支
func (o *TOCGenerateOutput) NeedsClarification() bool {
	return o != nil && len(o.ClarifyingQuestions) > 0
}
