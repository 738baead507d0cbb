package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/saptiva-ai/alethia-deepresearch/internal/guard"
	"github.com/saptiva-ai/alethia-deepresearch/internal/llm"
	"github.com/saptiva-ai/alethia-deepresearch/internal/progress"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/evaluator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/planner"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/researcher"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/writer"
	"github.com/saptiva-ai/alethia-deepresearch/internal/search"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
	"github.com/saptiva-ai/alethia-deepresearch/internal/vector"
)

type erroringClient struct{}

func (erroringClient) Complete(context.Context, string, []llm.Message, llm.Options) (llm.Response, error) {
	return llm.Response{}, errors.New("provider down")
}

func (erroringClient) Health(context.Context) bool { return false }

func newTestOrchestrator(client llm.Client) (*Orchestrator, *progress.Bus) {
	store := vector.NewMemory()
	bus := progress.NewBus()
	p := planner.New(client, "planner")
	r := researcher.New(search.NewMockSearcher(), store, guard.NewBasic(), nil, 5, 5)
	e := evaluator.New(client, "analyst")
	w := writer.New(client, store, "analyst")
	return New(p, r, e, w, store, bus, nil, 12), bus
}

func drain(ch <-chan types.ProgressEvent) []types.ProgressEvent {
	var out []types.ProgressEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(events []types.ProgressEvent) []types.EventType {
	out := make([]types.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func TestDeepResearchConvergesFirstIteration(t *testing.T) {
	// The offline evaluator scores 0.8, above the default 0.75 threshold.
	o, bus := newTestOrchestrator(llm.NewMock())
	ch := bus.Subscribe("t1")

	result, err := o.DeepResearch(context.Background(), "t1", "solar energy outlook", Params{})
	if err != nil {
		t.Fatalf("DeepResearch: %v", err)
	}

	if len(result.Iterations) != 1 {
		t.Fatalf("got %d iterations, want 1", len(result.Iterations))
	}
	if result.QualityScore != 0.8 || result.CompletionLevel != types.LevelAdequate {
		t.Errorf("score=%v level=%s", result.QualityScore, result.CompletionLevel)
	}
	if len(result.FinalEvidence) == 0 {
		t.Error("no evidence collected")
	}
	if !strings.Contains(result.FinalReport, "## Executive Summary") {
		t.Error("final report missing section skeleton")
	}
	// A converged first iteration never runs gap analysis.
	if len(result.Iterations[0].Gaps) != 0 || len(result.Iterations[0].Refinements) != 0 {
		t.Errorf("converged iteration carries gaps/refinements: %+v", result.Iterations[0])
	}

	got := eventTypes(drain(ch))
	want := []types.EventType{
		types.EventStarted, types.EventPlanning, types.EventIterationStarted,
		types.EventEvidence, types.EventEvaluation, types.EventIterationCompleted,
		types.EventReportGeneration, types.EventCompleted,
	}
	if len(got) != len(want) {
		t.Fatalf("event sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDeepResearchExhaustsBudget(t *testing.T) {
	// With an unreachable threshold the loop refines once, then stops at the
	// iteration cap.
	o, _ := newTestOrchestrator(llm.NewMock())

	result, err := o.DeepResearch(context.Background(), "t1", "solar energy outlook", Params{
		MaxIterations: 2,
		MinScore:      0.95,
	})
	if err != nil {
		t.Fatalf("DeepResearch: %v", err)
	}
	if len(result.Iterations) != 2 {
		t.Fatalf("got %d iterations, want 2", len(result.Iterations))
	}

	// Iteration 1 was below threshold: it names gaps and refinements.
	first := result.Iterations[0]
	if len(first.Gaps) == 0 || len(first.Refinements) == 0 {
		t.Errorf("first iteration missing gap analysis: %+v", first)
	}
	// Iteration 2 runs the refinement queries.
	second := result.Iterations[1]
	if len(second.QueriesExecuted) != len(first.Refinements) {
		t.Errorf("second iteration executed %v, want the %d refinements", second.QueriesExecuted, len(first.Refinements))
	}
	if second.QueriesExecuted[0] != first.Refinements[0].Text {
		t.Errorf("second iteration query = %q, want %q", second.QueriesExecuted[0], first.Refinements[0].Text)
	}
	// The final pass at the cap does not analyse gaps again.
	if len(second.Gaps) != 0 {
		t.Errorf("final iteration carries gaps: %+v", second.Gaps)
	}
}

func TestDeepResearchSingleIterationBudget(t *testing.T) {
	o, _ := newTestOrchestrator(llm.NewMock())
	result, err := o.DeepResearch(context.Background(), "t1", "q", Params{MaxIterations: 1, MinScore: 0.95})
	if err != nil {
		t.Fatalf("DeepResearch: %v", err)
	}
	if len(result.Iterations) != 1 {
		t.Errorf("got %d iterations, want 1", len(result.Iterations))
	}
}

func TestDeepResearchPlanningFailureIsFatal(t *testing.T) {
	o, bus := newTestOrchestrator(erroringClient{})
	ch := bus.Subscribe("t1")

	if _, err := o.DeepResearch(context.Background(), "t1", "q", Params{}); err == nil {
		t.Fatal("expected planning failure")
	}
	events := eventTypes(drain(ch))
	if events[len(events)-1] != types.EventFailed {
		t.Errorf("last event = %s, want failed", events[len(events)-1])
	}
}

func TestDeepResearchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, _ := newTestOrchestrator(llm.NewMock())
	if _, err := o.DeepResearch(ctx, "t1", "q", Params{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDeepResearchClampsParams(t *testing.T) {
	o, bus := newTestOrchestrator(llm.NewMock())
	ch := bus.Subscribe("t1")

	if _, err := o.DeepResearch(context.Background(), "t1", "q", Params{MaxIterations: 50, MinScore: 7}); err != nil {
		t.Fatalf("DeepResearch: %v", err)
	}
	events := drain(ch)
	if events[0].EventType != types.EventStarted {
		t.Fatalf("first event = %s", events[0].EventType)
	}
	if got := events[0].Data["max_iterations"]; got != 10 {
		t.Errorf("max_iterations = %v, want clamped 10", got)
	}
	if got := events[0].Data["min_score"]; got != 1.0 {
		t.Errorf("min_score = %v, want clamped 1.0", got)
	}
}

func TestResearchSimpleMode(t *testing.T) {
	o, bus := newTestOrchestrator(llm.NewMock())
	ch := bus.Subscribe("t1")

	report, sources, err := o.Research(context.Background(), "t1", "solar energy outlook", Params{})
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if !strings.Contains(report, "## Executive Summary") {
		t.Error("report missing section skeleton")
	}
	if len(sources) == 0 {
		t.Error("no sources produced")
	}

	events := eventTypes(drain(ch))
	if events[len(events)-1] != types.EventCompleted {
		t.Errorf("last event = %s, want completed", events[len(events)-1])
	}
	// Simple mode never evaluates or refines.
	for _, et := range events {
		if et == types.EventEvaluation || et == types.EventGapAnalysis || et == types.EventRefinement {
			t.Errorf("simple mode emitted %s", et)
		}
	}
}
