package chain

import (
	"context"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "bookforge-ai-api/internal/domain/service"
	wfmodel "bookforge-ai-api/internal/workflow/model"
	wfnode "bookforge-ai-api/internal/workflow/node"
	workflowport "bookforge-ai-api/internal/workflow/port"
	workflowprompt "bookforge-ai-api/internal/workflow/prompt"
	"bookforge-ai-api/pkg/logger"
)

type QuestionChain struct {
	factory workflowport.ChatModelFactory
}

func NewQuestionChain(factory workflowport.ChatModelFactory) *QuestionChain {
	return &QuestionChain{factory: factory}
}

func (c *QuestionChain) Invoke(ctx context.Context, in *wfmodel.QuestionGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.ChapterTitle) == "" {
		return nil, fmt.Errorf("chapter title is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "question_generate", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := formatQuestionMessages(ctx, in)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildQuestionModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"provider", strings.TrimSpace(in.Provider),
			"model", strings.TrimSpace(in.Model),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildQuestionModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

var questionPromptRegistry = workflowprompt.NewRegistry()

func formatQuestionMessages(ctx context.Context, in *wfmodel.QuestionGenerateInput) ([]*schema.Message, error) {
	tpl, err := questionPromptRegistry.ChatTemplate(workflowprompt.PromptQuestionGenV1)
	if err != nil {
		return nil, err
	}
	questionCount := in.QuestionCount
	if questionCount <= 0 {
		questionCount = 6
	}
	vars := map[string]any{
		"book_title":       strings.TrimSpace(in.BookTitle),
		"book_summary":     strings.TrimSpace(in.BookSummary),
		"chapter_title":    strings.TrimSpace(in.ChapterTitle),
		"chapter_synopsis": strings.TrimSpace(in.ChapterSynopsis),
		"question_count":   questionCount,
	}
	return tpl.Format(ctx, vars)
}

func buildQuestionModelOptions(in *wfmodel.QuestionGenerateInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}

	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}

	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "interview_questions",
					"strict": false,
					"schema": questionJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func questionJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"questions"},
		"properties": map[string]any{
			"questions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}
}
