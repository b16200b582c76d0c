package model

// InterviewAnswer 草稿合成的一条问答素材
type InterviewAnswer struct {
	Question string
	Answer   string
}

type DraftSynthesizeInput struct {
	BookTitle   string
	BookSummary string

	ChapterTitle    string
	ChapterSynopsis string

	Answers []InterviewAnswer

	// WritingStyle 已在编排层完成枚举校验
	WritingStyle string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// DraftSynthesizeOutput 草稿合成结果
type DraftSynthesizeOutput struct {
	Content string
	Meta    LLMUsageMeta
}
