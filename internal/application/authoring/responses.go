// Package authoring 实现章节写作流水线的应用服务
package authoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	apperrors "bookforge-ai-api/pkg/errors"
	"bookforge-ai-api/pkg/logger"
	"bookforge-ai-api/pkg/metrics"
)

// CompletionProgress 章节访谈完成进度
type CompletionProgress struct {
	Answered int      `json:"answered"`
	Total    int      `json:"total"`
	Missing  []string `json:"missing,omitempty"`
}

// Complete 判断是否全部问题都有已完成的回答
func (p CompletionProgress) Complete() bool {
	return p.Total > 0 && p.Answered == p.Total
}

// QuestionResponseService 问题回答存取服务。
// 回答保存走与章节正文相同的防抖纪律，窗口更短；
// 回答按 question_id 幂等 upsert，不存在版本字段。
type QuestionResponseService struct {
	questions repository.QuestionRepository
	responses repository.ResponseRepository
	debounce  time.Duration

	mu     sync.Mutex
	timers map[string]*responseTimer
}

type responseTimer struct {
	timer   *time.Timer
	pending *entity.QuestionResponse
}

// NewQuestionResponseService 创建回答服务
func NewQuestionResponseService(questions repository.QuestionRepository, responses repository.ResponseRepository, cfg config.AutoSaveConfig) *QuestionResponseService {
	debounce := cfg.ResponseDebounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &QuestionResponseService{
		questions: questions,
		responses: responses,
		debounce:  debounce,
		timers:    make(map[string]*responseTimer),
	}
}

// ScheduleSave 排程一次防抖保存，窗口内只有最新文本会被持久化
func (s *QuestionResponseService) ScheduleSave(ctx context.Context, questionID, chapterID, text string) error {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	if question == nil {
		return apperrors.New(apperrors.CodeQuestionNotFound, "question not found")
	}
	if question.ChapterID != chapterID {
		return apperrors.New(apperrors.CodeValidationFailed, "question does not belong to chapter")
	}

	response := entity.NewQuestionResponse(questionID, chapterID, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.timers[questionID]
	if !ok {
		rt = &responseTimer{}
		s.timers[questionID] = rt
	}
	rt.pending = response
	if rt.timer != nil {
		rt.timer.Stop()
	}
	// 计时器触发在请求生命周期之外：既不能继承取消，
	// 也不能继承请求级事务（触发时事务早已提交）
	flushCtx := repository.WithoutTx(context.WithoutCancel(ctx))
	rt.timer = time.AfterFunc(s.debounce, func() {
		s.flushTimer(flushCtx, questionID)
	})
	return nil
}

// SaveNow 立即 upsert 回答（手动保存、离开页面）
func (s *QuestionResponseService) SaveNow(ctx context.Context, questionID, chapterID, text string) (*entity.QuestionResponse, error) {
	ctx, span := tracer.Start(ctx, "authoring.QuestionResponseService.SaveNow")
	defer span.End()

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, apperrors.New(apperrors.CodeQuestionNotFound, "question not found")
	}
	if question.ChapterID != chapterID {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "question does not belong to chapter")
	}

	s.mu.Lock()
	if rt, ok := s.timers[questionID]; ok {
		if rt.timer != nil {
			rt.timer.Stop()
		}
		rt.pending = nil
	}
	s.mu.Unlock()

	response := entity.NewQuestionResponse(questionID, chapterID, text)
	if err := s.responses.Upsert(ctx, response); err != nil {
		metrics.AutoSaveTotal.WithLabelValues("response", "failed").Inc()
		return nil, err
	}
	metrics.AutoSaveTotal.WithLabelValues("response", "ok").Inc()
	return response, nil
}

func (s *QuestionResponseService) flushTimer(ctx context.Context, questionID string) {
	s.mu.Lock()
	rt, ok := s.timers[questionID]
	if !ok || rt.pending == nil {
		s.mu.Unlock()
		return
	}
	pending := rt.pending
	rt.pending = nil
	s.mu.Unlock()

	if err := s.responses.Upsert(ctx, pending); err != nil {
		metrics.AutoSaveTotal.WithLabelValues("response", "failed").Inc()
		logger.Warn(ctx, "debounced response save failed",
			"question_id", questionID,
			"error", err.Error(),
		)
		return
	}
	metrics.AutoSaveTotal.WithLabelValues("response", "ok").Inc()
}

// GetResponses 返回章节全部回答，用于页面加载时恢复访谈进度
func (s *QuestionResponseService) GetResponses(ctx context.Context, chapterID string) ([]*entity.QuestionResponse, error) {
	ctx, span := tracer.Start(ctx, "authoring.QuestionResponseService.GetResponses")
	defer span.End()

	return s.responses.ListByChapter(ctx, chapterID)
}

// Progress 统计章节访谈完成进度
func (s *QuestionResponseService) Progress(ctx context.Context, chapterID string) (CompletionProgress, error) {
	ctx, span := tracer.Start(ctx, "authoring.QuestionResponseService.Progress")
	defer span.End()

	questions, err := s.questions.ListByChapter(ctx, chapterID)
	if err != nil {
		return CompletionProgress{}, err
	}
	responses, err := s.responses.ListByChapter(ctx, chapterID)
	if err != nil {
		return CompletionProgress{}, err
	}

	completed := make(map[string]bool, len(responses))
	for _, r := range responses {
		if r.IsCompleted() {
			completed[r.QuestionID] = true
		}
	}

	progress := CompletionProgress{Total: len(questions)}
	for _, q := range questions {
		if completed[q.ID] {
			progress.Answered++
		} else {
			progress.Missing = append(progress.Missing, q.ID)
		}
	}
	return progress, nil
}

// CheckDraftGate 草稿生成门禁：全部问题都已完成回答才放行，
// 否则返回 IncompleteResponses 并点名缺失的问题 ID。
func (s *QuestionResponseService) CheckDraftGate(ctx context.Context, chapterID string) (CompletionProgress, error) {
	progress, err := s.Progress(ctx, chapterID)
	if err != nil {
		return progress, err
	}
	if progress.Total == 0 {
		return progress, apperrors.New(apperrors.CodeIncompleteResponses, "chapter has no interview questions")
	}
	if !progress.Complete() {
		return progress, apperrors.New(apperrors.CodeIncompleteResponses, "incomplete question responses").
			WithDetail(fmt.Sprintf("missing responses for questions: %s", strings.Join(progress.Missing, ", ")))
	}
	return progress, nil
}
