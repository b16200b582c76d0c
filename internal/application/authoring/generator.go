// Package authoring 实现章节写作流水线的应用服务
package authoring

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"bookforge-ai-api/internal/workflow/chain"
	wfmodel "bookforge-ai-api/internal/workflow/model"
	wfnode "bookforge-ai-api/internal/workflow/node"
	apperrors "bookforge-ai-api/pkg/errors"
	"bookforge-ai-api/pkg/metrics"
)

// TOCGenerator 目录生成器：封装 LLM 链路并解析结构化输出
type TOCGenerator struct {
	chain *chain.TOCChain
}

// NewTOCGenerator 创建目录生成器
func NewTOCGenerator(c *chain.TOCChain) *TOCGenerator {
	return &TOCGenerator{chain: c}
}

// Generate 由书籍摘要生成目录；摘要不足时返回澄清问题分支
func (g *TOCGenerator) Generate(ctx context.Context, in *wfmodel.TOCGenerateInput) (*wfmodel.TOCGenerateOutput, error) {
	ctx, span := tracer.Start(ctx, "authoring.TOCGenerator.Generate")
	defer span.End()

	started := time.Now()
	msg, err := g.chain.Invoke(ctx, in)
	recordLLMCall(in.Provider, in.Model, started, msg, err)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "toc generation failed")
	}

	var out wfmodel.TOCGenerateOutput
	raw := wfnode.ExtractJSONObject(msg.Content)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "failed to parse toc output")
	}
	if len(out.Chapters) == 0 && len(out.ClarifyingQuestions) == 0 {
		return nil, apperrors.New(apperrors.CodeGenerationFailed, "toc output has neither chapters nor clarifying questions")
	}
	out.Meta = buildUsageMeta(in.Provider, in.Model, msg)
	return &out, nil
}

// QuestionGenerator 访谈问题生成器
type QuestionGenerator struct {
	chain *chain.QuestionChain
}

// NewQuestionGenerator 创建问题生成器
func NewQuestionGenerator(c *chain.QuestionChain) *QuestionGenerator {
	return &QuestionGenerator{chain: c}
}

// Generate 为章节生成访谈问题列表
func (g *QuestionGenerator) Generate(ctx context.Context, in *wfmodel.QuestionGenerateInput) (*wfmodel.QuestionGenerateOutput, error) {
	ctx, span := tracer.Start(ctx, "authoring.QuestionGenerator.Generate")
	defer span.End()

	started := time.Now()
	msg, err := g.chain.Invoke(ctx, in)
	recordLLMCall(in.Provider, in.Model, started, msg, err)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "question generation failed")
	}

	var out wfmodel.QuestionGenerateOutput
	raw := wfnode.ExtractJSONObject(msg.Content)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "failed to parse question output")
	}

	questions := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		if s := strings.TrimSpace(q); s != "" {
			questions = append(questions, s)
		}
	}
	if len(questions) == 0 {
		return nil, apperrors.New(apperrors.CodeGenerationFailed, "question output is empty")
	}
	out.Questions = questions
	out.Meta = buildUsageMeta(in.Provider, in.Model, msg)
	return &out, nil
}

// DraftSynthesizer 草稿合成器
type DraftSynthesizer struct {
	chain *chain.DraftChain
}

// NewDraftSynthesizer 创建草稿合成器
func NewDraftSynthesizer(c *chain.DraftChain) *DraftSynthesizer {
	return &DraftSynthesizer{chain: c}
}

// Synthesize 把访谈素材合成为章节初稿
func (g *DraftSynthesizer) Synthesize(ctx context.Context, in *wfmodel.DraftSynthesizeInput) (*wfmodel.DraftSynthesizeOutput, error) {
	ctx, span := tracer.Start(ctx, "authoring.DraftSynthesizer.Synthesize")
	defer span.End()

	started := time.Now()
	msg, err := g.chain.Invoke(ctx, in)
	recordLLMCall(in.Provider, in.Model, started, msg, err)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "draft synthesis failed")
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return nil, apperrors.New(apperrors.CodeGenerationFailed, "empty draft content")
	}
	metrics.DraftWordCount.Observe(float64(len(strings.Fields(content))))

	return &wfmodel.DraftSynthesizeOutput{
		Content: content,
		Meta:    buildUsageMeta(in.Provider, in.Model, msg),
	}, nil
}

func buildUsageMeta(provider, model string, msg *schema.Message) wfmodel.LLMUsageMeta {
	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(provider),
		Model:       strings.TrimSpace(model),
		GeneratedAt: time.Now().UTC(),
	}
	if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		meta.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}
	return meta
}

func recordLLMCall(provider, model string, started time.Time, msg *schema.Message, err error) {
	provider = strings.TrimSpace(provider)
	model = strings.TrimSpace(model)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMCallTotal.WithLabelValues(provider, model, status).Inc()
	metrics.LLMCallDuration.WithLabelValues(provider, model).Observe(time.Since(started).Seconds())
	if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		metrics.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(msg.ResponseMeta.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(msg.ResponseMeta.Usage.CompletionTokens))
	}
}
