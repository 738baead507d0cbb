// Package store provides durable persistence for task records, finished
// reports, and run logs. Runs stay fully functional without a backend: the
// in-process fallback keeps everything for the lifetime of the server.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// ErrStore wraps backend failures.
var ErrStore = errors.New("store: backend error")

// Report is a finished research report keyed by its task.
type Report struct {
	TaskID    string    `json:"task_id" bson:"task_id"`
	Query     string    `json:"query" bson:"query"`
	Markdown  string    `json:"markdown" bson:"markdown"`
	Sources   []string  `json:"sources,omitempty" bson:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Durable is the persistence port. SaveTask is an upsert keyed on the task
// ID, so status transitions overwrite the previous record.
type Durable interface {
	SaveTask(ctx context.Context, rec types.TaskRecord) error
	GetTask(ctx context.Context, taskID string) (types.TaskRecord, bool, error)

	SaveReport(ctx context.Context, rep Report) error
	GetReport(ctx context.Context, taskID string) (Report, bool, error)

	// AppendLog records one progress event for later inspection.
	AppendLog(ctx context.Context, ev types.ProgressEvent) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
