package journal

import (
	"context"
	"testing"
	"time"
)

func TestJournalRunLifecycle(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	steps := []string{"alert-topic", "role", "fn-collector"}
	if err := store.CreateRun(ctx, "run-1", "football-stats", "eu-west-1", "deploy", steps); err != nil {
		t.Fatalf("create run: %v", err)
	}
	now := time.Now().UTC()
	if err := store.SetStepStatus(ctx, "run-1", "alert-topic", "succeeded", "", now, now); err != nil {
		t.Fatalf("set step: %v", err)
	}
	if err := store.SetStepStatus(ctx, "run-1", "role", "failed", "ProvisionError: denied", now, now); err != nil {
		t.Fatalf("set step: %v", err)
	}
	if err := store.SetStepStatus(ctx, "run-1", "fn-collector", "skipped", "", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("set step: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", "failed", map[string]any{"firstFailure": "role"}); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != "failed" || got.Succeeded != 1 || got.Failed != 1 || got.Skipped != 1 || got.Planned != 3 {
		t.Fatalf("unexpected entry %+v", got)
	}

	recs, err := store.RunSteps(ctx, "run-1")
	if err != nil {
		t.Fatalf("run steps: %v", err)
	}
	if len(recs) != 3 || recs[1].Error == "" {
		t.Fatalf("step records %+v", recs)
	}
}

func TestJournalListsNewestFirst(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.CreateRun(ctx, "run-old", "app", "eu-west-1", "deploy", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := store.CreateRun(ctx, "run-new", "app", "eu-west-1", "deploy", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-new" {
		t.Fatalf("want newest run first, got %+v", runs)
	}
}
