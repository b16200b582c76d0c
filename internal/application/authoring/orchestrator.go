// Package authoring 实现章节写作流水线的应用服务
package authoring

import (
	"context"
	"time"

	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	"bookforge-ai-api/internal/infrastructure/messaging"
	wfmodel "bookforge-ai-api/internal/workflow/model"
	apperrors "bookforge-ai-api/pkg/errors"
	"bookforge-ai-api/pkg/logger"
	"bookforge-ai-api/pkg/metrics"
)

// DraftJobSessionID 草稿任务写入内容时使用的会话标识。
// 生成的草稿与手动编辑走同一条版本化保存路径。
const DraftJobSessionID = "draft-worker"

// DraftJobPublisher 草稿任务消息发布端口
type DraftJobPublisher interface {
	PublishDraftJob(ctx context.Context, job *messaging.DraftJobMessage) (string, error)
}

// TOCResult 目录生成结果：章节已物化，或需要先澄清
type TOCResult struct {
	Chapters            []*entity.Chapter `json:"chapters,omitempty"`
	ClarifyingQuestions []string          `json:"clarifying_questions,omitempty"`
}

// ContentPipelineOrchestrator 内容流水线编排器。
// 五个阶段各自幂等、可单独重试；任一阶段失败不破坏已产出的数据。
type ContentPipelineOrchestrator struct {
	books     repository.BookRepository
	chapters  repository.ChapterRepository
	questions repository.QuestionRepository
	jobs      repository.JobRepository
	tx        repository.Transactor

	responses    *QuestionResponseService
	coordinator  *AutoSaveCoordinator
	stateMachine *ChapterStatusStateMachine

	tocGen      *TOCGenerator
	questionGen *QuestionGenerator
	draftSynth  *DraftSynthesizer
	publisher   DraftJobPublisher

	jobCfg config.DraftJobConfig
	llmCfg config.LLMConfig
}

// NewContentPipelineOrchestrator 创建流水线编排器
func NewContentPipelineOrchestrator(
	books repository.BookRepository,
	chapters repository.ChapterRepository,
	questions repository.QuestionRepository,
	jobs repository.JobRepository,
	tx repository.Transactor,
	responses *QuestionResponseService,
	coordinator *AutoSaveCoordinator,
	stateMachine *ChapterStatusStateMachine,
	tocGen *TOCGenerator,
	questionGen *QuestionGenerator,
	draftSynth *DraftSynthesizer,
	publisher DraftJobPublisher,
	jobCfg config.DraftJobConfig,
	llmCfg config.LLMConfig,
) *ContentPipelineOrchestrator {
	return &ContentPipelineOrchestrator{
		books:        books,
		chapters:     chapters,
		questions:    questions,
		jobs:         jobs,
		tx:           tx,
		responses:    responses,
		coordinator:  coordinator,
		stateMachine: stateMachine,
		tocGen:       tocGen,
		questionGen:  questionGen,
		draftSynth:   draftSynth,
		publisher:    publisher,
		jobCfg:       jobCfg,
		llmCfg:       llmCfg,
	}
}

// GenerateTOC 阶段一、二：摘要生成目录并物化章节。
// 摘要不足时返回澄清问题，不创建任何章节——这是分支而非失败。
func (o *ContentPipelineOrchestrator) GenerateTOC(ctx context.Context, bookID string, targetChapterCount int) (*TOCResult, error) {
	ctx, span := tracer.Start(ctx, "authoring.ContentPipelineOrchestrator.GenerateTOC")
	defer span.End()
	started := time.Now()

	book, err := o.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperrors.New(apperrors.CodeBookNotFound, "book not found")
	}

	existing, err := o.chapters.ListIDsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "book already has chapters").
			WithDetail("delete existing chapters before regenerating the table of contents")
	}

	out, err := o.tocGen.Generate(ctx, &wfmodel.TOCGenerateInput{
		BookTitle:          book.Title,
		BookSummary:        book.Summary,
		TargetChapterCount: targetChapterCount,
		Provider:           o.llmCfg.DefaultProvider,
	})
	if err != nil {
		metrics.PipelineStageTotal.WithLabelValues("toc", "error").Inc()
		return nil, err
	}
	metrics.PipelineStageDuration.WithLabelValues("toc").Observe(time.Since(started).Seconds())

	if out.NeedsClarification() {
		metrics.PipelineStageTotal.WithLabelValues("toc", "clarify").Inc()
		logger.Info(ctx, "toc generation needs clarification",
			"book_id", bookID,
			"question_count", len(out.ClarifyingQuestions),
		)
		return &TOCResult{ClarifyingQuestions: out.ClarifyingQuestions}, nil
	}

	chapters := make([]*entity.Chapter, 0, len(out.Chapters))
	for i, c := range out.Chapters {
		chapters = append(chapters, entity.NewChapter(bookID, c.Title, c.Synopsis, i+1))
	}

	err = o.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.chapters.CreateBatch(txCtx, chapters); err != nil {
			return err
		}
		book.MarkOutlined()
		return o.books.Update(txCtx, book)
	})
	if err != nil {
		metrics.PipelineStageTotal.WithLabelValues("materialize", "error").Inc()
		return nil, err
	}

	metrics.PipelineStageTotal.WithLabelValues("toc", "ok").Inc()
	metrics.PipelineStageTotal.WithLabelValues("materialize", "ok").Inc()
	logger.Info(ctx, "toc materialized",
		"book_id", bookID,
		"chapter_count", len(chapters),
	)
	return &TOCResult{Chapters: chapters}, nil
}

// GenerateQuestions 阶段三：为章节生成访谈问题。
// regenerate 为真时替换整个问题集，旧问题的回答成为孤儿被丢弃，
// 不会静默重挂到新问题上。
func (o *ContentPipelineOrchestrator) GenerateQuestions(ctx context.Context, chapterID string, regenerate bool) ([]*entity.Question, error) {
	ctx, span := tracer.Start(ctx, "authoring.ContentPipelineOrchestrator.GenerateQuestions")
	defer span.End()
	started := time.Now()

	chapter, err := o.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, apperrors.ErrChapterNotFound
	}

	current, err := o.questions.ListByChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 && !regenerate {
		return current, nil
	}

	book, err := o.books.GetByID(ctx, chapter.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperrors.New(apperrors.CodeBookNotFound, "book not found")
	}

	out, err := o.questionGen.Generate(ctx, &wfmodel.QuestionGenerateInput{
		BookTitle:       book.Title,
		BookSummary:     book.Summary,
		ChapterTitle:    chapter.Title,
		ChapterSynopsis: chapter.Description,
		Provider:        o.llmCfg.DefaultProvider,
	})
	if err != nil {
		metrics.PipelineStageTotal.WithLabelValues("questions", "error").Inc()
		return nil, err
	}

	questions := make([]*entity.Question, 0, len(out.Questions))
	for i, text := range out.Questions {
		questions = append(questions, entity.NewQuestion(chapterID, text, i+1))
	}

	if err := o.questions.ReplaceForChapter(ctx, chapterID, questions); err != nil {
		metrics.PipelineStageTotal.WithLabelValues("questions", "error").Inc()
		return nil, err
	}

	metrics.PipelineStageTotal.WithLabelValues("questions", "ok").Inc()
	metrics.PipelineStageDuration.WithLabelValues("questions").Observe(time.Since(started).Seconds())
	logger.Info(ctx, "chapter questions generated",
		"chapter_id", chapterID,
		"question_count", len(questions),
		"regenerate", regenerate,
	)
	return questions, nil
}

// RequestDraft 阶段五入口：门禁检查通过后创建任务并投递到队列。
// 任一问题缺少完成的回答时返回 IncompleteResponses，不创建任务。
func (o *ContentPipelineOrchestrator) RequestDraft(ctx context.Context, chapterID string, style entity.WritingStyle) (*entity.DraftGenerationJob, error) {
	ctx, span := tracer.Start(ctx, "authoring.ContentPipelineOrchestrator.RequestDraft")
	defer span.End()

	if !style.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "unsupported writing style").
			WithDetail(string(style))
	}

	chapter, err := o.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, apperrors.ErrChapterNotFound
	}
	if !chapter.IsEditable() {
		return nil, apperrors.New(apperrors.CodeInvalidStateTransition, "published chapter cannot be regenerated")
	}

	// 门禁先于任务创建：未通过时不留下任何任务记录
	if _, err := o.responses.CheckDraftGate(ctx, chapterID); err != nil {
		return nil, err
	}

	if active, err := o.jobs.GetActiveByChapter(ctx, chapterID); err != nil {
		return nil, err
	} else if active != nil {
		return active, nil
	}

	job := entity.NewDraftGenerationJob(chapter.BookID, chapterID, string(style))
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if _, err := o.publisher.PublishDraftJob(ctx, &messaging.DraftJobMessage{
		JobID:        job.ID,
		BookID:       chapter.BookID,
		ChapterID:    chapterID,
		WritingStyle: string(style),
	}); err != nil {
		// 投递失败立即终结任务，用户可重新提交
		if failErr := job.Fail("failed to enqueue draft job: " + err.Error()); failErr == nil {
			if updErr := o.jobs.Update(ctx, job); updErr != nil {
				logger.Error(ctx, "failed to mark unqueued job failed", updErr, "job_id", job.ID)
			}
		}
		return nil, apperrors.Wrap(err, apperrors.CodeTransientIO, "failed to enqueue draft job")
	}

	logger.Info(ctx, "draft job enqueued",
		"job_id", job.ID,
		"chapter_id", chapterID,
		"writing_style", string(style),
	)
	return job, nil
}

// ExecuteDraftJob 阶段五执行：聚合访谈素材合成草稿。
// 成功的草稿通过 AutoSaveCoordinator 写入，与手动编辑遵循同一套
// 版本与冲突规则；失败只标记任务，不触碰章节现有内容。
func (o *ContentPipelineOrchestrator) ExecuteDraftJob(ctx context.Context, jobID string) error {
	ctx, span := tracer.Start(ctx, "authoring.ContentPipelineOrchestrator.ExecuteDraftJob")
	defer span.End()
	started := time.Now()

	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperrors.New(apperrors.CodeJobNotFound, "draft job not found")
	}
	// 终态任务不再执行，消息重放是无操作
	if job.IsTerminal() {
		return nil
	}

	if err := job.Start(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidStateTransition, "draft job cannot start")
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return err
	}

	timeout := o.jobCfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, genErr := o.synthesize(genCtx, job)
	if genErr != nil {
		metrics.PipelineStageTotal.WithLabelValues("draft", "error").Inc()
		if failErr := job.Fail(genErr.Error()); failErr != nil {
			logger.Error(ctx, "draft job already terminal on failure", failErr, "job_id", job.ID)
		} else if updErr := o.jobs.Update(ctx, job); updErr != nil {
			logger.Error(ctx, "failed to persist failed draft job", updErr, "job_id", job.ID)
		}
		return genErr
	}

	chapter, err := o.chapters.GetByID(ctx, job.ChapterID)
	if err != nil {
		return err
	}
	if chapter == nil {
		return apperrors.ErrChapterNotFound
	}

	newVersion, err := o.coordinator.SaveNow(ctx, DraftJobSessionID, job.ChapterID, out.Content, chapter.ContentVersion)
	if err != nil {
		metrics.PipelineStageTotal.WithLabelValues("draft", "error").Inc()
		if failErr := job.Fail("failed to save draft: " + err.Error()); failErr == nil {
			if updErr := o.jobs.Update(ctx, job); updErr != nil {
				logger.Error(ctx, "failed to persist failed draft job", updErr, "job_id", job.ID)
			}
		}
		return err
	}

	if o.stateMachine.OnFirstContentSave(chapter) {
		if err := o.chapters.UpdateStatus(ctx, chapter.ID, chapter.Status); err != nil {
			logger.Warn(ctx, "failed to advance chapter status after draft",
				"chapter_id", chapter.ID,
				"error", err.Error(),
			)
		}
	}

	job.SetLLMMetrics(out.Meta.Provider, out.Meta.Model, out.Meta.PromptTokens, out.Meta.CompletionTokens)
	if err := job.Succeed(job.ChapterID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidStateTransition, "draft job cannot succeed")
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return err
	}

	metrics.PipelineStageTotal.WithLabelValues("draft", "ok").Inc()
	metrics.PipelineStageDuration.WithLabelValues("draft").Observe(time.Since(started).Seconds())
	logger.Info(ctx, "draft job completed",
		"job_id", job.ID,
		"chapter_id", job.ChapterID,
		"new_version", newVersion,
		"duration_ms", job.DurationMs,
	)
	return nil
}

// synthesize 聚合章节访谈素材并调用草稿合成
func (o *ContentPipelineOrchestrator) synthesize(ctx context.Context, job *entity.DraftGenerationJob) (*wfmodel.DraftSynthesizeOutput, error) {
	chapter, err := o.chapters.GetByID(ctx, job.ChapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, apperrors.ErrChapterNotFound
	}
	book, err := o.books.GetByID(ctx, job.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperrors.New(apperrors.CodeBookNotFound, "book not found")
	}

	questions, err := o.questions.ListByChapter(ctx, job.ChapterID)
	if err != nil {
		return nil, err
	}
	responses, err := o.responses.GetResponses(ctx, job.ChapterID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]*entity.QuestionResponse, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	answers := make([]wfmodel.InterviewAnswer, 0, len(questions))
	for _, q := range questions {
		r, ok := byQuestion[q.ID]
		if !ok || !r.IsCompleted() {
			return nil, apperrors.New(apperrors.CodeIncompleteResponses, "incomplete question responses").
				WithDetail("question " + q.ID + " has no completed response")
		}
		answers = append(answers, wfmodel.InterviewAnswer{
			Question: q.Text,
			Answer:   r.ResponseText,
		})
	}

	return o.draftSynth.Synthesize(ctx, &wfmodel.DraftSynthesizeInput{
		BookTitle:       book.Title,
		BookSummary:     book.Summary,
		ChapterTitle:    chapter.Title,
		ChapterSynopsis: chapter.Description,
		Answers:         answers,
		WritingStyle:    job.WritingStyle,
		Provider:        o.llmCfg.DefaultProvider,
	})
}

// FailStaleJobs 将超时仍在运行的任务批量标记失败，由 worker 周期调用
func (o *ContentPipelineOrchestrator) FailStaleJobs(ctx context.Context) (int64, error) {
	timeout := o.jobCfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	n, err := o.jobs.MarkStaleRunningFailed(ctx, int(timeout.Seconds()), "draft generation timed out")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Warn(ctx, "stale draft jobs marked failed", "count", n)
	}
	return n, nil
}
