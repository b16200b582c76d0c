package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "bookforge-ai-api/internal/domain/service"
	wfmodel "bookforge-ai-api/internal/workflow/model"
	wfnode "bookforge-ai-api/internal/workflow/node"
	workflowport "bookforge-ai-api/internal/workflow/port"
	workflowprompt "bookforge-ai-api/internal/workflow/prompt"
)

type DraftChain struct {
	factory workflowport.ChatModelFactory
}

func NewDraftChain(factory workflowport.ChatModelFactory) *DraftChain {
	return &DraftChain{factory: factory}
}

func (c *DraftChain) Invoke(ctx context.Context, in *wfmodel.DraftSynthesizeInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.ChapterTitle) == "" {
		return nil, fmt.Errorf("chapter title is required")
	}
	if len(in.Answers) == 0 {
		return nil, fmt.Errorf("interview answers are required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "draft_synthesize", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := formatDraftMessages(ctx, in)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildDraftModelOptions(in)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

// Stream 返回 Eino StreamReader；调用方负责 Close()。
// 约定：流可能在最后返回一个 Content 为空但包含 Usage 的消息，用于 Token 统计。
func (c *DraftChain) Stream(ctx context.Context, in *wfmodel.DraftSynthesizeInput) (*schema.StreamReader[*schema.Message], error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.ChapterTitle) == "" {
		return nil, fmt.Errorf("chapter title is required")
	}
	if len(in.Answers) == 0 {
		return nil, fmt.Errorf("interview answers are required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "draft_stream", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := formatDraftMessages(ctx, in)
	if err != nil {
		return nil, err
	}
	return chatModel.Stream(ctx, msgs, buildDraftModelOptions(in)...)
}

var draftPromptRegistry = workflowprompt.NewRegistry()

func formatDraftMessages(ctx context.Context, in *wfmodel.DraftSynthesizeInput) ([]*schema.Message, error) {
	tpl, err := draftPromptRegistry.ChatTemplate(workflowprompt.PromptDraftSynthV1)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"book_title":       strings.TrimSpace(in.BookTitle),
		"book_summary":     strings.TrimSpace(in.BookSummary),
		"chapter_title":    strings.TrimSpace(in.ChapterTitle),
		"chapter_synopsis": strings.TrimSpace(in.ChapterSynopsis),
		"writing_style":    strings.TrimSpace(in.WritingStyle),
		"answers_block":    wfnode.BuildAnswersBlock(in.Answers),
	}
	return tpl.Format(ctx, vars)
}

func buildDraftModelOptions(in *wfmodel.DraftSynthesizeInput) []model.Option {
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
	return opts
}
