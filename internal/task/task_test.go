package task

import (
	"context"
	"testing"
	"time"
)

func TestRunAndWait_Success(t *testing.T) {
	tk := New("true", 0, "ok", nil)
	if err := tk.RunAndWait(context.Background()); err != nil {
		t.Fatalf("RunAndWait: %v", err)
	}
	if !tk.IsComplete() {
		t.Fatalf("expected complete")
	}
	if got := tk.WasSuccessful(); got != Success {
		t.Fatalf("got %v, want Success", got)
	}
}

func TestRunAndWait_Failure(t *testing.T) {
	tk := New("false", 0, "fail", nil)
	if err := tk.RunAndWait(context.Background()); err != nil {
		t.Fatalf("RunAndWait: %v", err)
	}
	if got := tk.WasSuccessful(); got != Failure {
		t.Fatalf("got %v, want Failure", got)
	}
}

func TestWasSuccessful_UnknownBeforeCompletion(t *testing.T) {
	tk := New("sleep 5", 0, "slow", nil)
	if got := tk.WasSuccessful(); got != Unknown {
		t.Fatalf("got %v, want Unknown before run", got)
	}
}

func TestRunAndWait_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	tk := New("sleep 5", 0, "slow", nil)
	start := time.Now()
	_ = tk.RunAndWait(ctx)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("RunAndWait did not return promptly on context cancellation")
	}
}

func TestCompletionCheck_ShortCircuitsWithoutSpawning(t *testing.T) {
	tk := New("sleep 5", 0, "already done", func() bool { return true })
	if !tk.IsComplete() {
		t.Fatalf("expected complete via check")
	}
	if got := tk.WasSuccessful(); got != Success {
		t.Fatalf("got %v, want Success for a predicate-only completion", got)
	}
	if err := tk.RunAndWait(context.Background()); err != nil {
		t.Fatalf("RunAndWait: %v", err)
	}
}

func TestEqual_ByCommandOnly(t *testing.T) {
	a := New("echo hi", 1, "a", nil)
	b := New("echo hi", 2, "b", nil)
	c := New("echo bye", 1, "a", nil)
	if !a.Equal(b) {
		t.Fatalf("expected tasks with the same command to be equal regardless of priority/label")
	}
	if a.Equal(c) {
		t.Fatalf("expected tasks with different commands to not be equal")
	}
	if a.Equal(nil) {
		t.Fatalf("expected Equal(nil) to be false")
	}
}

func TestRun_NoopWhenAlreadyStarted(t *testing.T) {
	tk := New("sleep 1", 0, "once", nil)
	ctx := context.Background()
	if err := tk.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := tk.Run(ctx); err != nil {
		t.Fatalf("second Run should be a no-op, got err: %v", err)
	}
}
