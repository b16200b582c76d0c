package entity

import "testing"

func TestDraftJobLifecycle(t *testing.T) {
	job := NewDraftGenerationJob("book-1", "ch-1", string(WritingStyleNarrative))
	if job.Status != JobStatusPending {
		t.Fatalf("initial status = %s, want pending", job.Status)
	}
	if job.IsTerminal() {
		t.Fatal("pending job should not be terminal")
	}

	if err := job.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != JobStatusRunning || job.StartedAt == nil {
		t.Fatalf("after start: status=%s startedAt=%v", job.Status, job.StartedAt)
	}

	if err := job.Succeed("ch-1"); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if !job.IsTerminal() || job.ResultRef != "ch-1" {
		t.Fatalf("after succeed: %+v", job)
	}
}

// 状态只能单向推进，终态不可再变。
func TestDraftJobRejectsBackwardTransitions(t *testing.T) {
	job := NewDraftGenerationJob("book-1", "ch-1", string(WritingStyleNarrative))

	// pending 不能直接成功或失败后再启动
	if err := job.Succeed("ch-1"); err == nil {
		t.Fatal("pending job must not succeed without running")
	}

	if err := job.Start(); err != nil {
		t.Fatal(err)
	}
	if err := job.Start(); err == nil {
		t.Fatal("running job must not start twice")
	}

	if err := job.Fail("generation timed out"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if job.Status != JobStatusFailed || job.ErrorMessage == "" {
		t.Fatalf("after fail: %+v", job)
	}

	if err := job.Start(); err == nil {
		t.Fatal("failed job must not restart")
	}
	if err := job.Succeed("ch-1"); err == nil {
		t.Fatal("failed job must not flip to succeeded")
	}
}

func TestDraftJobFailFromPending(t *testing.T) {
	job := NewDraftGenerationJob("book-1", "ch-1", string(WritingStyleNarrative))
	if err := job.Fail("enqueue failed"); err != nil {
		t.Fatalf("Fail from pending: %v", err)
	}
	if job.Status != JobStatusFailed || job.CompletedAt == nil {
		t.Fatalf("after fail: %+v", job)
	}
}
