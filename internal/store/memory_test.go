package store

import (
	"context"
	"testing"
	"time"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

func TestMemoryTasks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec := types.TaskRecord{TaskID: "t1", Kind: types.KindDeep, Status: types.StatusAccepted, Query: "q"}
	if err := m.SaveTask(ctx, rec); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	// Save is an upsert: a second save overwrites the record.
	rec.Status = types.StatusRunning
	_ = m.SaveTask(ctx, rec)

	got, ok, err := m.GetTask(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("GetTask: ok=%v err=%v", ok, err)
	}
	if got.Status != types.StatusRunning {
		t.Errorf("status = %s, want running", got.Status)
	}

	if _, ok, _ := m.GetTask(ctx, "missing"); ok {
		t.Error("unknown task reported as found")
	}
}

func TestMemoryReports(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rep := Report{TaskID: "t1", Query: "q", Markdown: "# Report", CreatedAt: time.Now()}
	if err := m.SaveReport(ctx, rep); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	got, ok, _ := m.GetReport(ctx, "t1")
	if !ok || got.Markdown != "# Report" {
		t.Errorf("GetReport = %+v, ok=%v", got, ok)
	}
	if _, ok, _ := m.GetReport(ctx, "missing"); ok {
		t.Error("unknown report reported as found")
	}
}

func TestMemoryLogs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, et := range []types.EventType{types.EventStarted, types.EventPlanning, types.EventCompleted} {
		_ = m.AppendLog(ctx, types.ProgressEvent{TaskID: "t1", EventType: et})
	}
	logs := m.Logs()
	if len(logs) != 3 {
		t.Fatalf("got %d log entries, want 3", len(logs))
	}
	// Append order is preserved.
	if logs[0].EventType != types.EventStarted || logs[2].EventType != types.EventCompleted {
		t.Errorf("log order broken: %v", logs)
	}
}
