package model

type QuestionGenerateInput struct {
	BookTitle   string
	BookSummary string

	ChapterTitle    string
	ChapterSynopsis string

	QuestionCount int

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// QuestionGenerateOutput 访谈问题生成结果
type QuestionGenerateOutput struct {
	Questions []string     `json:"questions"`
	Meta      LLMUsageMeta `json:"-"`
}
