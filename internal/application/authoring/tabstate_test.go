package authoring

import (
	"context"
	"reflect"
	"testing"

	apperrors "bookforge-ai-api/pkg/errors"
)

func newTestTabManager(chapterIDs ...string) (*TabStateManager, *fakeTabStateBackend) {
	backend := newFakeTabStateBackend()
	lister := &fakeChapterLister{ids: chapterIDs}
	return NewTabStateManager(backend, lister), backend
}

func TestOpenChapterAppendsAndActivates(t *testing.T) {
	m, backend := newTestTabManager("ch-a", "ch-b")
	ctx := context.Background()

	state, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-a")
	if err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if !reflect.DeepEqual(state.TabOrder, []string{"ch-a"}) || state.ActiveChapterID != "ch-a" {
		t.Fatalf("state = %+v", state)
	}

	state, err = m.OpenChapter(ctx, "book-1", "sess-1", "ch-b")
	if err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if !reflect.DeepEqual(state.TabOrder, []string{"ch-a", "ch-b"}) || state.ActiveChapterID != "ch-b" {
		t.Fatalf("state = %+v", state)
	}

	// 重复打开不产生重复标签，只切换活跃
	state, err = m.OpenChapter(ctx, "book-1", "sess-1", "ch-a")
	if err != nil {
		t.Fatalf("OpenChapter: %v", err)
	}
	if !reflect.DeepEqual(state.TabOrder, []string{"ch-a", "ch-b"}) || state.ActiveChapterID != "ch-a" {
		t.Fatalf("state = %+v", state)
	}

	// 状态已镜像到后端
	saved, err := backend.Get(ctx, "book-1", "sess-1")
	if err != nil || saved == nil {
		t.Fatalf("backend state missing: %v", err)
	}
	if !reflect.DeepEqual(saved.TabOrder, []string{"ch-a", "ch-b"}) {
		t.Fatalf("backend order = %v", saved.TabOrder)
	}
}

// 关闭活跃标签后，活跃权落到左邻标签。
func TestCloseActiveChapterActivatesLeftNeighbor(t *testing.T) {
	m, _ := newTestTabManager("ch-a", "ch-b", "ch-c")
	ctx := context.Background()

	for _, id := range []string{"ch-a", "ch-b", "ch-c"} {
		if _, err := m.OpenChapter(ctx, "book-1", "sess-1", id); err != nil {
			t.Fatalf("OpenChapter(%s): %v", id, err)
		}
	}
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-b"); err != nil {
		t.Fatalf("activate ch-b: %v", err)
	}

	state, err := m.CloseChapter(ctx, "book-1", "sess-1", "ch-b")
	if err != nil {
		t.Fatalf("CloseChapter: %v", err)
	}
	if !reflect.DeepEqual(state.TabOrder, []string{"ch-a", "ch-c"}) {
		t.Fatalf("order = %v", state.TabOrder)
	}
	if state.ActiveChapterID != "ch-a" {
		t.Fatalf("active = %s, want left neighbor ch-a", state.ActiveChapterID)
	}
}

func TestCloseFirstActiveChapterActivatesNewFirst(t *testing.T) {
	m, _ := newTestTabManager("ch-a", "ch-b")
	ctx := context.Background()

	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-b"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-a"); err != nil {
		t.Fatal(err)
	}

	state, err := m.CloseChapter(ctx, "book-1", "sess-1", "ch-a")
	if err != nil {
		t.Fatalf("CloseChapter: %v", err)
	}
	if state.ActiveChapterID != "ch-b" {
		t.Fatalf("active = %s, want ch-b", state.ActiveChapterID)
	}
}

func TestCloseLastChapterClearsActive(t *testing.T) {
	m, _ := newTestTabManager("ch-a")
	ctx := context.Background()

	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-a"); err != nil {
		t.Fatal(err)
	}
	state, err := m.CloseChapter(ctx, "book-1", "sess-1", "ch-a")
	if err != nil {
		t.Fatalf("CloseChapter: %v", err)
	}
	if len(state.TabOrder) != 0 || state.ActiveChapterID != "" {
		t.Fatalf("state = %+v, want empty", state)
	}
}

func TestCloseInactiveChapterKeepsActive(t *testing.T) {
	m, _ := newTestTabManager("ch-a", "ch-b", "ch-c")
	ctx := context.Background()

	for _, id := range []string{"ch-a", "ch-b", "ch-c"} {
		if _, err := m.OpenChapter(ctx, "book-1", "sess-1", id); err != nil {
			t.Fatal(err)
		}
	}

	state, err := m.CloseChapter(ctx, "book-1", "sess-1", "ch-a")
	if err != nil {
		t.Fatalf("CloseChapter: %v", err)
	}
	if state.ActiveChapterID != "ch-c" {
		t.Fatalf("active = %s, want ch-c unchanged", state.ActiveChapterID)
	}
}

func TestReorderAcceptsPermutation(t *testing.T) {
	m, _ := newTestTabManager("ch-a", "ch-b", "ch-c")
	ctx := context.Background()

	for _, id := range []string{"ch-a", "ch-b", "ch-c"} {
		if _, err := m.OpenChapter(ctx, "book-1", "sess-1", id); err != nil {
			t.Fatal(err)
		}
	}

	state, err := m.Reorder(ctx, "book-1", "sess-1", []string{"ch-c", "ch-a", "ch-b"})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if !reflect.DeepEqual(state.TabOrder, []string{"ch-c", "ch-a", "ch-b"}) {
		t.Fatalf("order = %v", state.TabOrder)
	}
}

// 非排列的重排请求被拒绝，原顺序保持不变。
func TestReorderRejectsNonPermutation(t *testing.T) {
	m, backend := newTestTabManager("ch-a", "ch-b")
	ctx := context.Background()

	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-b"); err != nil {
		t.Fatal(err)
	}

	// 缺元素、多元素、未知章节、重复元素都不是合法排列
	cases := [][]string{
		{"ch-a"},
		{"ch-a", "ch-b", "ch-x"},
		{"ch-a", "ch-x"},
		{"ch-a", "ch-a"},
	}
	for _, newOrder := range cases {
		if _, err := m.Reorder(ctx, "book-1", "sess-1", newOrder); !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
			t.Fatalf("Reorder(%v) error = %v, want validation failure", newOrder, err)
		}
	}

	saved, _ := backend.Get(ctx, "book-1", "sess-1")
	if !reflect.DeepEqual(saved.TabOrder, []string{"ch-a", "ch-b"}) {
		t.Fatalf("order changed after rejected reorder: %v", saved.TabOrder)
	}
}

// 恢复时剔除已删除章节、追加新章节，保证序列始终是现存章节的排列。
func TestRestorePrunesStaleAndAppendsMissing(t *testing.T) {
	backend := newFakeTabStateBackend()
	lister := &fakeChapterLister{ids: []string{"ch-a", "ch-b", "ch-new"}}
	m := NewTabStateManager(backend, lister)
	ctx := context.Background()

	// 缓存的状态包含已删除的 ch-stale，且活跃标签也是它
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-stale"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-b"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.OpenChapter(ctx, "book-1", "sess-1", "ch-stale"); err != nil {
		t.Fatal(err)
	}

	state, err := m.Restore(ctx, "book-1", "sess-1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(state.TabOrder, []string{"ch-a", "ch-b", "ch-new"}) {
		t.Fatalf("order = %v, want [ch-a ch-b ch-new]", state.TabOrder)
	}
	if state.ActiveChapterID != "ch-a" {
		t.Fatalf("active = %s, want first remaining tab", state.ActiveChapterID)
	}
}

func TestRestoreWithEmptyCacheOpensAllChapters(t *testing.T) {
	m, _ := newTestTabManager("ch-a", "ch-b")
	ctx := context.Background()

	state, err := m.Restore(ctx, "book-1", "sess-new")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(state.TabOrder, []string{"ch-a", "ch-b"}) {
		t.Fatalf("order = %v", state.TabOrder)
	}
}
