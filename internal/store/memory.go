package store

import (
	"context"
	"sync"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// Memory is the in-process fallback used when MONGODB_URL is not configured.
type Memory struct {
	mu      sync.RWMutex
	tasks   map[string]types.TaskRecord
	reports map[string]Report
	logs    []types.ProgressEvent
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		tasks:   make(map[string]types.TaskRecord),
		reports: make(map[string]Report),
	}
}

func (m *Memory) SaveTask(_ context.Context, rec types.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[rec.TaskID] = rec
	return nil
}

func (m *Memory) GetTask(_ context.Context, taskID string) (types.TaskRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tasks[taskID]
	return rec, ok, nil
}

func (m *Memory) SaveReport(_ context.Context, rep Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[rep.TaskID] = rep
	return nil
}

func (m *Memory) GetReport(_ context.Context, taskID string) (Report, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rep, ok := m.reports[taskID]
	return rep, ok, nil
}

func (m *Memory) AppendLog(_ context.Context, ev types.ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, ev)
	return nil
}

// Logs returns a copy of all recorded events, in append order.
func (m *Memory) Logs() []types.ProgressEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ProgressEvent, len(m.logs))
	copy(out, m.logs)
	return out
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }
