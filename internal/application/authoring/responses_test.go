package authoring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	apperrors "bookforge-ai-api/pkg/errors"
)

func newTestResponseService(debounce time.Duration) (*QuestionResponseService, *fakeQuestionRepo, *fakeResponseRepo) {
	responses := newFakeResponseRepo()
	questions := newFakeQuestionRepo(responses)
	svc := NewQuestionResponseService(questions, responses, config.AutoSaveConfig{ResponseDebounce: debounce})
	return svc, questions, responses
}

func seedQuestions(questions *fakeQuestionRepo, chapterID string, texts ...string) []*entity.Question {
	out := make([]*entity.Question, 0, len(texts))
	for i, text := range texts {
		q := entity.NewQuestion(chapterID, text, i+1)
		questions.mu.Lock()
		questions.add(q)
		questions.mu.Unlock()
		out = append(out, q)
	}
	return out
}

func TestSaveNowUpsertsResponse(t *testing.T) {
	svc, questions, responses := newTestResponseService(time.Hour)
	qs := seedQuestions(questions, "ch-1", "这一章的核心观点是什么？")

	resp, err := svc.SaveNow(context.Background(), qs[0].ID, "ch-1", "核心观点是复利效应")
	if err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if !resp.IsCompleted() {
		t.Fatalf("response status = %s, want completed", resp.Status)
	}

	stored, err := responses.GetByQuestion(context.Background(), qs[0].ID)
	if err != nil || stored == nil {
		t.Fatalf("stored response missing: %v", err)
	}
	if stored.ResponseText != "核心观点是复利效应" {
		t.Fatalf("text = %q", stored.ResponseText)
	}
}

func TestSaveNowRejectsUnknownQuestion(t *testing.T) {
	svc, _, _ := newTestResponseService(time.Hour)

	_, err := svc.SaveNow(context.Background(), "q-missing", "ch-1", "text")
	if !apperrors.IsCode(err, apperrors.CodeQuestionNotFound) {
		t.Fatalf("error = %v, want question not found", err)
	}
}

func TestSaveNowRejectsWrongChapter(t *testing.T) {
	svc, questions, _ := newTestResponseService(time.Hour)
	qs := seedQuestions(questions, "ch-1", "问题一？")

	_, err := svc.SaveNow(context.Background(), qs[0].ID, "ch-other", "text")
	if !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
		t.Fatalf("error = %v, want validation failure", err)
	}
}

// 防抖窗口内的连续编辑只持久化最后一次文本。
func TestScheduleSaveDebounces(t *testing.T) {
	svc, questions, responses := newTestResponseService(20 * time.Millisecond)
	qs := seedQuestions(questions, "ch-1", "问题一？")
	ctx := context.Background()

	for _, text := range []string{"第一", "第一版", "第一版答案"} {
		if err := svc.ScheduleSave(ctx, qs[0].ID, "ch-1", text); err != nil {
			t.Fatalf("ScheduleSave: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if stored, _ := responses.GetByQuestion(ctx, qs[0].ID); stored != nil {
			if stored.ResponseText != "第一版答案" {
				t.Fatalf("text = %q, want latest edit", stored.ResponseText)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced response save never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if responses.upsertCount() != 1 {
		t.Fatalf("upsert called %d times, want 1", responses.upsertCount())
	}
}

// 防抖计时器在请求事务提交之后才触发，
// 冲刷上下文必须剥离请求级事务，否则 upsert 会落在已提交的事务上。
func TestScheduleSaveFlushesOutsideRequestTransaction(t *testing.T) {
	svc, questions, responses := newTestResponseService(20 * time.Millisecond)
	qs := seedQuestions(questions, "ch-1", "问题一？")

	reqCtx := context.WithValue(context.Background(), repository.TxKey{}, "request-tx")
	if err := svc.ScheduleSave(reqCtx, qs[0].ID, "ch-1", "防抖答案"); err != nil {
		t.Fatalf("ScheduleSave: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for responses.upsertCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("debounced response save never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	flushCtx := responses.lastUpsertContext()
	if tx := flushCtx.Value(repository.TxKey{}); tx != nil {
		t.Fatalf("debounced upsert context still carries request transaction: %v", tx)
	}
}

// 手动保存取代挂起的防抖保存，不会出现双写。
func TestSaveNowSupersedesPendingDebounce(t *testing.T) {
	svc, questions, responses := newTestResponseService(20 * time.Millisecond)
	qs := seedQuestions(questions, "ch-1", "问题一？")
	ctx := context.Background()

	if err := svc.ScheduleSave(ctx, qs[0].ID, "ch-1", "自动保存文本"); err != nil {
		t.Fatalf("ScheduleSave: %v", err)
	}
	if _, err := svc.SaveNow(ctx, qs[0].ID, "ch-1", "手动保存文本"); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if responses.upsertCount() != 1 {
		t.Fatalf("upsert called %d times, want 1", responses.upsertCount())
	}
	stored, _ := responses.GetByQuestion(ctx, qs[0].ID)
	if stored == nil || stored.ResponseText != "手动保存文本" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestProgressCountsCompletedOnly(t *testing.T) {
	svc, questions, _ := newTestResponseService(time.Hour)
	qs := seedQuestions(questions, "ch-1", "问题一？", "问题二？", "问题三？")
	ctx := context.Background()

	if _, err := svc.SaveNow(ctx, qs[0].ID, "ch-1", "完整的回答"); err != nil {
		t.Fatal(err)
	}
	// 空白文本是草稿回答，不计入完成
	if _, err := svc.SaveNow(ctx, qs[1].ID, "ch-1", "   "); err != nil {
		t.Fatal(err)
	}

	progress, err := svc.Progress(ctx, "ch-1")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress.Answered != 1 || progress.Total != 3 {
		t.Fatalf("progress = %+v, want 1/3", progress)
	}
	if len(progress.Missing) != 2 {
		t.Fatalf("missing = %v", progress.Missing)
	}
	if progress.Complete() {
		t.Fatal("progress should not be complete")
	}
}

// 门禁拒绝时点名缺失回答的问题 ID。
func TestCheckDraftGateNamesMissingQuestions(t *testing.T) {
	svc, questions, _ := newTestResponseService(time.Hour)
	qs := seedQuestions(questions, "ch-1", "问题一？", "问题二？")
	ctx := context.Background()

	if _, err := svc.SaveNow(ctx, qs[0].ID, "ch-1", "已回答"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.CheckDraftGate(ctx, "ch-1")
	if !apperrors.IsCode(err, apperrors.CodeIncompleteResponses) {
		t.Fatalf("error = %v, want incomplete responses", err)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %T is not an AppError", err)
	}
	if !strings.Contains(appErr.Detail, qs[1].ID) {
		t.Fatalf("detail %q does not name missing question %s", appErr.Detail, qs[1].ID)
	}
}

func TestCheckDraftGateRequiresQuestions(t *testing.T) {
	svc, _, _ := newTestResponseService(time.Hour)

	_, err := svc.CheckDraftGate(context.Background(), "ch-empty")
	if !apperrors.IsCode(err, apperrors.CodeIncompleteResponses) {
		t.Fatalf("error = %v, want incomplete responses", err)
	}
}

func TestCheckDraftGatePassesWhenComplete(t *testing.T) {
	svc, questions, _ := newTestResponseService(time.Hour)
	qs := seedQuestions(questions, "ch-1", "问题一？", "问题二？")
	ctx := context.Background()

	for _, q := range qs {
		if _, err := svc.SaveNow(ctx, q.ID, "ch-1", "回答 "+q.ID); err != nil {
			t.Fatal(err)
		}
	}

	progress, err := svc.CheckDraftGate(ctx, "ch-1")
	if err != nil {
		t.Fatalf("CheckDraftGate: %v", err)
	}
	if !progress.Complete() {
		t.Fatalf("progress = %+v, want complete", progress)
	}
}
