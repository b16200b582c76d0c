package authoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	"bookforge-ai-api/internal/infrastructure/messaging"
	apperrors "bookforge-ai-api/pkg/errors"
)

// fakeChapterWriter 内存版本化写入器，可注入失败序列
type fakeChapterWriter struct {
	mu       sync.Mutex
	content  map[string]string
	version  map[string]int
	failures []error
	calls    int
	lastCtx  context.Context
}

func newFakeChapterWriter() *fakeChapterWriter {
	return &fakeChapterWriter{
		content: make(map[string]string),
		version: make(map[string]int),
	}
}

func (w *fakeChapterWriter) seed(chapterID, content string, version int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.content[chapterID] = content
	w.version[chapterID] = version
}

func (w *fakeChapterWriter) failNext(errs ...error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = append(w.failures, errs...)
}

func (w *fakeChapterWriter) UpdateContentVersioned(ctx context.Context, id, content string, expectedVersion int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.lastCtx = ctx

	if len(w.failures) > 0 {
		err := w.failures[0]
		w.failures = w.failures[1:]
		return 0, err
	}

	current, ok := w.version[id]
	if !ok {
		return 0, apperrors.ErrChapterNotFound
	}
	if current != expectedVersion {
		return 0, apperrors.New(apperrors.CodeVersionConflict, "content version conflict").
			WithDetail(fmt.Sprintf("expected version %d, server at %d", expectedVersion, current))
	}
	w.content[id] = content
	w.version[id] = current + 1
	return current + 1, nil
}

func (w *fakeChapterWriter) state(chapterID string) (string, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.content[chapterID], w.version[chapterID]
}

func (w *fakeChapterWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func (w *fakeChapterWriter) lastContext() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastCtx
}

// fakeSnapshotBackend 内存快照存储
type fakeSnapshotBackend struct {
	mu        sync.Mutex
	snapshots map[string]*entity.AutoSaveSnapshot
}

func newFakeSnapshotBackend() *fakeSnapshotBackend {
	return &fakeSnapshotBackend{snapshots: make(map[string]*entity.AutoSaveSnapshot)}
}

func (b *fakeSnapshotBackend) Save(ctx context.Context, snapshot *entity.AutoSaveSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *snapshot
	b.snapshots[snapshot.SessionID+":"+snapshot.ChapterID] = &cp
	return nil
}

func (b *fakeSnapshotBackend) Get(ctx context.Context, sessionID, chapterID string) (*entity.AutoSaveSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.snapshots[sessionID+":"+chapterID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (b *fakeSnapshotBackend) Delete(ctx context.Context, sessionID, chapterID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.snapshots, sessionID+":"+chapterID)
	return nil
}

func (b *fakeSnapshotBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshots)
}

// fakeTabStateBackend 内存标签页状态存储
type fakeTabStateBackend struct {
	mu     sync.Mutex
	states map[string]*entity.TabState
}

func newFakeTabStateBackend() *fakeTabStateBackend {
	return &fakeTabStateBackend{states: make(map[string]*entity.TabState)}
}

func (b *fakeTabStateBackend) Save(ctx context.Context, state *entity.TabState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[state.BookID+":"+state.SessionID] = state.Clone()
	return nil
}

func (b *fakeTabStateBackend) Get(ctx context.Context, bookID, sessionID string) (*entity.TabState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[bookID+":"+sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (b *fakeTabStateBackend) Delete(ctx context.Context, bookID, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, bookID+":"+sessionID)
	return nil
}

// fakeChapterLister 固定章节 ID 集合
type fakeChapterLister struct {
	ids []string
}

func (l *fakeChapterLister) ListIDsByBook(ctx context.Context, bookID string) ([]string, error) {
	return append([]string(nil), l.ids...), nil
}

// fakeBookRepo 内存书籍仓储
type fakeBookRepo struct {
	mu    sync.Mutex
	books map[string]*entity.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: make(map[string]*entity.Book)}
}

func (r *fakeBookRepo) Create(ctx context.Context, book *entity.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.ID] = book
	return nil
}

func (r *fakeBookRepo) GetByID(ctx context.Context, id string) (*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.books[id], nil
}

func (r *fakeBookRepo) Update(ctx context.Context, book *entity.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.ID] = book
	return nil
}

func (r *fakeBookRepo) ListByOwner(ctx context.Context, ownerID string, p repository.Pagination) (*repository.PagedResult[*entity.Book], error) {
	return repository.NewPagedResult[*entity.Book](nil, 0, repository.NewPagination(p.Page, p.PageSize)), nil
}

// fakeChapterRepo 内存章节仓储
type fakeChapterRepo struct {
	mu       sync.Mutex
	chapters map[string]*entity.Chapter
	nextID   int
}

func newFakeChapterRepo() *fakeChapterRepo {
	return &fakeChapterRepo{chapters: make(map[string]*entity.Chapter)}
}

func (r *fakeChapterRepo) add(chapter *entity.Chapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chapter.ID == "" {
		r.nextID++
		chapter.ID = fmt.Sprintf("ch-%d", r.nextID)
	}
	r.chapters[chapter.ID] = chapter
}

func (r *fakeChapterRepo) Create(ctx context.Context, chapter *entity.Chapter) error {
	r.add(chapter)
	return nil
}

func (r *fakeChapterRepo) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	for _, c := range chapters {
		r.add(c)
	}
	return nil
}

func (r *fakeChapterRepo) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chapters[id], nil
}

func (r *fakeChapterRepo) Update(ctx context.Context, chapter *entity.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chapters[chapter.ID] = chapter
	return nil
}

func (r *fakeChapterRepo) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chapters, id)
	return nil
}

func (r *fakeChapterRepo) ListByBook(ctx context.Context, bookID string, filter *repository.ChapterFilter) ([]*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Chapter
	for _, c := range r.chapters {
		if c.BookID == bookID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqNum < out[j].SeqNum })
	return out, nil
}

func (r *fakeChapterRepo) ListIDsByBook(ctx context.Context, bookID string) ([]string, error) {
	chapters, _ := r.ListByBook(ctx, bookID, nil)
	ids := make([]string, 0, len(chapters))
	for _, c := range chapters {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r *fakeChapterRepo) UpdateContentVersioned(ctx context.Context, id, content string, expectedVersion int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chapters[id]
	if !ok {
		return 0, apperrors.ErrChapterNotFound
	}
	if c.ContentVersion != expectedVersion {
		return 0, apperrors.New(apperrors.CodeVersionConflict, "content version conflict")
	}
	c.SetContent(content)
	c.ContentVersion++
	return c.ContentVersion, nil
}

func (r *fakeChapterRepo) UpdateStatus(ctx context.Context, id string, status entity.ChapterStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chapters[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeChapterRepo) GetNextSeqNum(ctx context.Context, bookID string) (int, error) {
	chapters, _ := r.ListByBook(ctx, bookID, nil)
	return len(chapters) + 1, nil
}

// fakeQuestionRepo 内存问题仓储
type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions map[string]*entity.Question
	responses *fakeResponseRepo
	nextID    int
}

func newFakeQuestionRepo(responses *fakeResponseRepo) *fakeQuestionRepo {
	return &fakeQuestionRepo{
		questions: make(map[string]*entity.Question),
		responses: responses,
	}
}

func (r *fakeQuestionRepo) add(q *entity.Question) {
	if q.ID == "" {
		r.nextID++
		q.ID = fmt.Sprintf("q-%d", r.nextID)
	}
	r.questions[q.ID] = q
}

func (r *fakeQuestionRepo) ReplaceForChapter(ctx context.Context, chapterID string, questions []*entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, q := range r.questions {
		if q.ChapterID == chapterID {
			delete(r.questions, id)
		}
	}
	if r.responses != nil {
		_ = r.responses.DeleteByChapter(ctx, chapterID)
	}
	for _, q := range questions {
		r.add(q)
	}
	return nil
}

func (r *fakeQuestionRepo) ListByChapter(ctx context.Context, chapterID string) ([]*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Question
	for _, q := range r.questions {
		if q.ChapterID == chapterID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqNum < out[j].SeqNum })
	return out, nil
}

func (r *fakeQuestionRepo) GetByID(ctx context.Context, id string) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questions[id], nil
}

func (r *fakeQuestionRepo) CountByChapter(ctx context.Context, chapterID string) (int64, error) {
	qs, _ := r.ListByChapter(ctx, chapterID)
	return int64(len(qs)), nil
}

// fakeResponseRepo 内存回答仓储
type fakeResponseRepo struct {
	mu            sync.Mutex
	responses     map[string]*entity.QuestionResponse
	upserts       int
	lastUpsertCtx context.Context
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{responses: make(map[string]*entity.QuestionResponse)}
}

func (r *fakeResponseRepo) Upsert(ctx context.Context, response *entity.QuestionResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.lastUpsertCtx = ctx
	cp := *response
	r.responses[response.QuestionID] = &cp
	return nil
}

func (r *fakeResponseRepo) GetByQuestion(ctx context.Context, questionID string) (*entity.QuestionResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[questionID]
	if !ok {
		return nil, nil
	}
	cp := *resp
	return &cp, nil
}

func (r *fakeResponseRepo) ListByChapter(ctx context.Context, chapterID string) ([]*entity.QuestionResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.QuestionResponse
	for _, resp := range r.responses {
		if resp.ChapterID == chapterID {
			cp := *resp
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeResponseRepo) DeleteByChapter(ctx context.Context, chapterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, resp := range r.responses {
		if resp.ChapterID == chapterID {
			delete(r.responses, id)
		}
	}
	return nil
}

func (r *fakeResponseRepo) upsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

func (r *fakeResponseRepo) lastUpsertContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpsertCtx
}

// fakeJobRepo 内存任务仓储
type fakeJobRepo struct {
	mu     sync.Mutex
	jobs   map[string]*entity.DraftGenerationJob
	nextID int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*entity.DraftGenerationJob)}
}

func (r *fakeJobRepo) Create(ctx context.Context, job *entity.DraftGenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == "" {
		r.nextID++
		job.ID = fmt.Sprintf("job-%d", r.nextID)
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id string) (*entity.DraftGenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) Update(ctx context.Context, job *entity.DraftGenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) ListByBook(ctx context.Context, bookID string, filter *repository.JobFilter, p repository.Pagination) (*repository.PagedResult[*entity.DraftGenerationJob], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.DraftGenerationJob
	for _, j := range r.jobs {
		if j.BookID == bookID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return repository.NewPagedResult(out, int64(len(out)), repository.NewPagination(p.Page, p.PageSize)), nil
}

func (r *fakeJobRepo) GetActiveByChapter(ctx context.Context, chapterID string) (*entity.DraftGenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ChapterID == chapterID && !j.IsTerminal() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRepo) MarkStaleRunningFailed(ctx context.Context, olderThanSeconds int, reason string) (int64, error) {
	return 0, nil
}

func (r *fakeJobRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// fakeTransactor 直接执行闭包，不做真实事务
type fakeTransactor struct{}

func (fakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakePublisher 记录投递的任务消息
type fakePublisher struct {
	mu       sync.Mutex
	messages []*messaging.DraftJobMessage
	err      error
}

func (p *fakePublisher) PublishDraftJob(ctx context.Context, job *messaging.DraftJobMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, job)
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

// fakeChatModel 返回预置内容的 ChatModel
type fakeChatModel struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
}

func (m *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls++
	content, err := m.content, m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

func (m *fakeChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeChatModel) setContent(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
}

func (m *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported in tests")
}

// fakeModelFactory 始终返回同一个 fakeChatModel
type fakeModelFactory struct {
	model *fakeChatModel
}

func (f *fakeModelFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return f.model, nil
}

func transientErr(msg string) error {
	return apperrors.New(apperrors.CodeTransientIO, strings.TrimSpace(msg))
}
