package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "bookforge-ai-api/internal/domain/service"
	wfmodel "bookforge-ai-api/internal/workflow/model"
	wfnode "bookforge-ai-api/internal/workflow/node"
	workflowport "bookforge-ai-api/internal/workflow/port"
	workflowprompt "bookforge-ai-api/internal/workflow/prompt"
	"bookforge-ai-api/pkg/logger"
)

type TOCChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.TOCGenerateInput, *schema.Message]
	chainErr  error
}

func NewTOCChain(factory workflowport.ChatModelFactory) *TOCChain {
	return &TOCChain{factory: factory}
}

func (c *TOCChain) Invoke(ctx context.Context, in *wfmodel.TOCGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.BookSummary) == "" {
		return nil, fmt.Errorf("book summary is required")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type tocChainState struct {
	In       *wfmodel.TOCGenerateInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *TOCChain) getChain() (compose.Runnable[*wfmodel.TOCGenerateInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *TOCChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.TOCGenerateInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.TOCGenerateInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.TOCGenerateInput) (*tocChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			return &tocChainState{In: in}, nil
		}),
		compose.WithNodeName("toc.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *tocChainState) (*tocChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			msgs, err := formatTOCMessages(ctx, st.In)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("toc.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *tocChainState) (*tocChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			ctx = llmctx.WithWorkflowProvider(ctx, "toc_generate", strings.TrimSpace(st.In.Provider))
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildTOCModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildTOCModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("toc.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *tocChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("toc.finalize"),
	)

	return chain.Compile(ctx)
}

var tocPromptRegistry = workflowprompt.NewRegistry()

func formatTOCMessages(ctx context.Context, in *wfmodel.TOCGenerateInput) ([]*schema.Message, error) {
	tpl, err := tocPromptRegistry.ChatTemplate(workflowprompt.PromptTOCGenV1)
	if err != nil {
		return nil, err
	}
	targetChapterCount := in.TargetChapterCount
	if targetChapterCount <= 0 {
		targetChapterCount = 10
	}
	vars := map[string]any{
		"book_title":           strings.TrimSpace(in.BookTitle),
		"book_summary":         strings.TrimSpace(in.BookSummary),
		"target_chapter_count": targetChapterCount,
	}
	return tpl.Format(ctx, vars)
}

func buildTOCModelOptions(in *wfmodel.TOCGenerateInput, enableSchema bool) []model.Option {
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
					"name":   "toc_result",
					"strict": false,
					"schema": tocJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func tocJSONSchema() map[string]any {
	// 说明：chapters 与 clarifying_questions 二选一，
	// schema 不做互斥约束，解析侧按分支判定。
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"chapters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"title", "synopsis"},
					"properties": map[string]any{
						"title":    map[string]any{"type": "string"},
						"synopsis": map[string]any{"type": "string"},
					},
				},
			},
			"clarifying_questions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}
}
