package types

import "time"

// SourceKind identifies where a sub-query is allowed to look for evidence.
type SourceKind string

const (
	SourceWeb      SourceKind = "web"
	SourceNews     SourceKind = "news"
	SourceAcademic SourceKind = "academic"
	SourceDocument SourceKind = "document"
)

// SearchableSources are the kinds the researcher can fan out to a search
// provider. Document sources go through the extractor instead.
var SearchableSources = []SourceKind{SourceWeb, SourceNews, SourceAcademic}

// SubQuery is one decomposed search intent, produced by the planner or by
// refinement. IDs are unique within one plan.
type SubQuery struct {
	ID      string       `json:"id"`
	Text    string       `json:"query"`
	Sources []SourceKind `json:"sources"`
}

// HasSource reports whether the sub-query names kind in its sources.
func (sq SubQuery) HasSource(kind SourceKind) bool {
	for _, s := range sq.Sources {
		if s == kind {
			return true
		}
	}
	return false
}

// Plan is the decomposition of the main query. It is created once per task;
// refinement iterations wrap their queries in a fresh Plan.
type Plan struct {
	MainQuery  string     `json:"main_query"`
	SubQueries []SubQuery `json:"sub_queries"`
}

// CompletionLevel buckets an overall completion score.
type CompletionLevel string

const (
	LevelInsufficient  CompletionLevel = "insufficient"
	LevelPartial       CompletionLevel = "partial"
	LevelAdequate      CompletionLevel = "adequate"
	LevelComprehensive CompletionLevel = "comprehensive"
)

// LevelForScore assigns the completion level for an overall score:
// <0.4 insufficient, <0.7 partial, <0.9 adequate, else comprehensive.
func LevelForScore(overall float64) CompletionLevel {
	switch {
	case overall < 0.4:
		return LevelInsufficient
	case overall < 0.7:
		return LevelPartial
	case overall < 0.9:
		return LevelAdequate
	default:
		return LevelComprehensive
	}
}

// CompletionScore is the evaluator's estimate of how well the accumulated
// evidence answers the original query.
type CompletionScore struct {
	Overall    float64            `json:"overall_score"`
	Level      CompletionLevel    `json:"completion_level"`
	Coverage   map[string]float64 `json:"coverage_areas,omitempty"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
}

// InformationGap is a named deficiency in research coverage.
type InformationGap struct {
	GapType        string `json:"gap_type"`
	Description    string `json:"description"`
	Priority       int    `json:"priority"` // 1..5, 5 highest
	SuggestedQuery string `json:"suggested_query"`
}

// RefinementQuery is a follow-up sub-query generated to close a gap.
// It is executed in the next iteration.
type RefinementQuery struct {
	Text            string       `json:"query"`
	GapAddressed    string       `json:"gap_addressed"`
	Priority        int          `json:"priority"`
	ExpectedSources []SourceKind `json:"expected_sources"`
}

// Iteration records one pass of the research loop.
type Iteration struct {
	Number            int               `json:"iteration_number"` // 1-based
	QueriesExecuted   []string          `json:"queries_executed"`
	EvidenceCollected []Evidence        `json:"evidence_collected"`
	Completion        CompletionScore   `json:"completion_score"`
	Gaps              []InformationGap  `json:"gaps_identified,omitempty"`
	Refinements       []RefinementQuery `json:"refinement_queries,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

// DeepResult is the complete outcome of an iterative deep research run.
type DeepResult struct {
	OriginalQuery   string          `json:"original_query"`
	Iterations      []Iteration     `json:"iterations"`
	FinalEvidence   []Evidence      `json:"final_evidence"`
	FinalReport     string          `json:"final_report"`
	CompletionLevel CompletionLevel `json:"completion_level"`
	QualityScore    float64         `json:"quality_score"`
	DurationSeconds float64         `json:"duration_seconds"`
}

// TaskKind distinguishes the two research pipelines.
type TaskKind string

const (
	KindSimple TaskKind = "simple"
	KindDeep   TaskKind = "deep"
)

// TaskStatus is the lifecycle state of a research task.
type TaskStatus string

const (
	StatusAccepted  TaskStatus = "accepted"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// ValidTransition reports whether from → to is a legal status change.
// The only legal chain is accepted → running → (completed|failed).
//
// Expectations:
//   - accepted → running is valid
//   - running → completed and running → failed are valid
//   - every other pair, including self-transitions, is invalid
func ValidTransition(from, to TaskStatus) bool {
	switch from {
	case StatusAccepted:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// TaskRecord is the persisted identity and state of one research task.
// Result is present exactly when status is completed; Error exactly when
// status is failed.
type TaskRecord struct {
	TaskID    string     `json:"task_id" bson:"task_id"`
	Kind      TaskKind   `json:"kind" bson:"kind"`
	Status    TaskStatus `json:"status" bson:"status"`
	Query     string     `json:"query" bson:"query"`
	Budget    int        `json:"budget,omitempty" bson:"budget,omitempty"` // opaque; passed to collaborators
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
	Result    string     `json:"result,omitempty" bson:"result,omitempty"`
	Error     string     `json:"error,omitempty" bson:"error,omitempty"`
}

// EventType labels one progress event in a research run.
type EventType string

const (
	EventStarted            EventType = "started"
	EventPlanning           EventType = "planning"
	EventIterationStarted   EventType = "iteration_started"
	EventIterationCompleted EventType = "iteration_completed"
	EventEvidence           EventType = "evidence"
	EventEvaluation         EventType = "evaluation"
	EventGapAnalysis        EventType = "gap_analysis"
	EventRefinement         EventType = "refinement"
	EventReportGeneration   EventType = "report_generation"
	EventCompleted          EventType = "completed"
	EventFailed             EventType = "failed"
)

// ProgressEvent is the frame delivered to progress subscribers and appended
// to the session event log. Timestamp is RFC 3339 on the wire.
type ProgressEvent struct {
	TaskID    string         `json:"task_id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}
