// Package task owns the lifecycle of research tasks: submission, the
// background run, status transitions, and the handoff of finished reports
// to durable storage.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saptiva-ai/alethia-deepresearch/internal/orchestrator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/progress"
	"github.com/saptiva-ai/alethia-deepresearch/internal/store"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// ErrInvalidTransition reports an attempted illegal status change. It
// indicates a bug in the caller, not a user error.
var ErrInvalidTransition = fmt.Errorf("task: invalid status transition")

// Manager runs research tasks in the background and tracks their records.
// The in-memory map is authoritative for the process; the durable store
// mirrors it for restarts and external consumers.
type Manager struct {
	orch        *orchestrator.Orchestrator
	durable     store.Durable
	bus         *progress.Bus
	runDeadline time.Duration

	mu      sync.RWMutex
	tasks   map[string]types.TaskRecord
	cancels map[string]context.CancelFunc
}

// NewManager creates a Manager. durable may be nil when no backend is
// configured; runDeadline bounds each background run. The bus is closed per
// task once its terminal event is out, and every event is mirrored into the
// durable log partition.
func NewManager(orch *orchestrator.Orchestrator, durable store.Durable, bus *progress.Bus, runDeadline time.Duration) *Manager {
	if runDeadline <= 0 {
		runDeadline = 10 * time.Minute
	}
	return &Manager{
		orch:        orch,
		durable:     durable,
		bus:         bus,
		runDeadline: runDeadline,
		tasks:       make(map[string]types.TaskRecord),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Submit accepts a research task and starts its background run. The
// returned ID is immediately queryable via Status.
func (m *Manager) Submit(query string, kind types.TaskKind, params orchestrator.Params) string {
	taskID := uuid.New().String()
	now := time.Now().UTC()
	rec := types.TaskRecord{
		TaskID:    taskID,
		Kind:      kind,
		Status:    types.StatusAccepted,
		Query:     query,
		Budget:    params.Budget,
		CreatedAt: now,
		UpdatedAt: now,
	}

	runCtx, cancel := context.WithTimeout(context.Background(), m.runDeadline)

	m.mu.Lock()
	m.tasks[taskID] = rec
	m.cancels[taskID] = cancel
	m.mu.Unlock()
	m.persist(rec)

	// Mirror the run's progress into the durable log partition. Subscribing
	// before the run starts means no event is missed.
	if m.bus != nil && m.durable != nil {
		go m.pumpLogs(taskID, m.bus.Subscribe(taskID))
	}

	log.Printf("[TASK] accepted task_id=%s kind=%s", taskID, kind)
	go m.run(runCtx, taskID, query, kind, params)
	return taskID
}

// pumpLogs appends every progress event for one task to the durable store.
// It exits when the bus closes the task's channel.
func (m *Manager) pumpLogs(taskID string, ch <-chan types.ProgressEvent) {
	for ev := range ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.durable.AppendLog(ctx, ev); err != nil {
			log.Printf("[TASK] WARNING: append log task_id=%s: %v", taskID, err)
		}
		cancel()
	}
}

func (m *Manager) run(ctx context.Context, taskID, query string, kind types.TaskKind, params orchestrator.Params) {
	defer func() {
		m.mu.Lock()
		if cancel, ok := m.cancels[taskID]; ok {
			cancel()
			delete(m.cancels, taskID)
		}
		m.mu.Unlock()
		// The final event is published by now; detach the subscribers.
		if m.bus != nil {
			m.bus.Close(taskID)
		}
	}()

	if err := m.transition(taskID, types.StatusRunning, "", ""); err != nil {
		log.Printf("[TASK] ERROR: %v", err)
		return
	}

	switch kind {
	case types.KindDeep:
		result, err := m.orch.DeepResearch(ctx, taskID, query, params)
		if err != nil {
			m.finishFailed(taskID, err)
			return
		}
		m.finishDeep(taskID, query, result)
	default:
		report, sources, err := m.orch.Research(ctx, taskID, query, params)
		if err != nil {
			m.finishFailed(taskID, err)
			return
		}
		m.finishSimple(taskID, query, report, sources)
	}
}

func (m *Manager) finishDeep(taskID, query string, result types.DeepResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		m.finishFailed(taskID, fmt.Errorf("task: marshal result: %w", err))
		return
	}
	if err := m.transition(taskID, types.StatusCompleted, string(payload), ""); err != nil {
		log.Printf("[TASK] ERROR: %v", err)
		return
	}
	m.saveReport(store.Report{
		TaskID:    taskID,
		Query:     query,
		Markdown:  result.FinalReport,
		CreatedAt: time.Now().UTC(),
	})
	log.Printf("[TASK] completed task_id=%s iterations=%d evidence=%d", taskID, len(result.Iterations), len(result.FinalEvidence))
}

func (m *Manager) finishSimple(taskID, query, report string, sources []string) {
	if err := m.transition(taskID, types.StatusCompleted, report, ""); err != nil {
		log.Printf("[TASK] ERROR: %v", err)
		return
	}
	m.saveReport(store.Report{
		TaskID:    taskID,
		Query:     query,
		Markdown:  report,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	})
	log.Printf("[TASK] completed task_id=%s sources=%d", taskID, len(sources))
}

func (m *Manager) finishFailed(taskID string, cause error) {
	msg := cause.Error()
	// Cancellation (explicit or via the run deadline) is reported with a
	// stable reason string.
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		msg = "cancelled"
	}
	if err := m.transition(taskID, types.StatusFailed, "", msg); err != nil {
		log.Printf("[TASK] ERROR: %v", err)
		return
	}
	log.Printf("[TASK] failed task_id=%s: %s", taskID, msg)
}

// transition moves a task to its next status, enforcing the legal chain.
//
// Expectations:
//   - result is stored only with completed, error only with failed
//   - an illegal transition leaves the record untouched and returns
//     ErrInvalidTransition
func (m *Manager) transition(taskID string, to types.TaskStatus, result, errMsg string) error {
	m.mu.Lock()
	rec, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task: unknown task %s", taskID)
	}
	if !types.ValidTransition(rec.Status, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s: %s -> %s", ErrInvalidTransition, taskID, rec.Status, to)
	}
	rec.Status = to
	rec.Result = result
	rec.Error = errMsg
	rec.UpdatedAt = time.Now().UTC()
	m.tasks[taskID] = rec
	m.mu.Unlock()

	m.persist(rec)
	return nil
}

// Status returns the current record for taskID.
func (m *Manager) Status(taskID string) (types.TaskRecord, bool) {
	m.mu.RLock()
	rec, ok := m.tasks[taskID]
	m.mu.RUnlock()
	if ok {
		return rec, true
	}
	// A restart loses the in-memory map; fall back to the durable mirror.
	if m.durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rec, found, err := m.durable.GetTask(ctx, taskID); err == nil && found {
			return rec, true
		}
	}
	return types.TaskRecord{}, false
}

// Report returns the finished report for taskID, if the task completed.
func (m *Manager) Report(taskID string) (store.Report, bool) {
	if m.durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rep, found, err := m.durable.GetReport(ctx, taskID); err == nil && found {
			return rep, true
		}
	}
	// No durable backend: rebuild from the completed record.
	rec, ok := m.Status(taskID)
	if !ok || rec.Status != types.StatusCompleted {
		return store.Report{}, false
	}
	markdown := rec.Result
	if rec.Kind == types.KindDeep {
		var result types.DeepResult
		if err := json.Unmarshal([]byte(rec.Result), &result); err == nil {
			markdown = result.FinalReport
		}
	}
	return store.Report{TaskID: taskID, Query: rec.Query, Markdown: markdown, CreatedAt: rec.UpdatedAt}, true
}

// Result returns the full deep-research result for a completed deep task.
func (m *Manager) Result(taskID string) (types.DeepResult, bool) {
	rec, ok := m.Status(taskID)
	if !ok || rec.Kind != types.KindDeep || rec.Status != types.StatusCompleted {
		return types.DeepResult{}, false
	}
	var result types.DeepResult
	if err := json.Unmarshal([]byte(rec.Result), &result); err != nil {
		return types.DeepResult{}, false
	}
	return result, true
}

// Cancel aborts a running task. The run observes the cancellation at its
// next suspension point and fails with the context error.
func (m *Manager) Cancel(taskID string) bool {
	m.mu.Lock()
	cancel, ok := m.cancels[taskID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (m *Manager) persist(rec types.TaskRecord) {
	if m.durable == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.durable.SaveTask(ctx, rec); err != nil {
		log.Printf("[TASK] WARNING: persist task_id=%s: %v", rec.TaskID, err)
	}
}

func (m *Manager) saveReport(rep store.Report) {
	if m.durable == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.durable.SaveReport(ctx, rep); err != nil {
		log.Printf("[TASK] WARNING: persist report task_id=%s: %v", rep.TaskID, err)
	}
}
