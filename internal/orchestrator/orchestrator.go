// Package orchestrator drives the research loop: plan once, then iterate
// search, evaluation, and refinement until the evidence is good enough or
// the iteration budget runs out, and finally write the cited report.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/montanaflynn/stats"
	"go.opentelemetry.io/otel/attribute"

	"github.com/saptiva-ai/alethia-deepresearch/internal/events"
	"github.com/saptiva-ai/alethia-deepresearch/internal/progress"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/evaluator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/planner"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/researcher"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/writer"
	"github.com/saptiva-ai/alethia-deepresearch/internal/telemetry"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
	"github.com/saptiva-ai/alethia-deepresearch/internal/vector"
)

// Params tunes one research run. Zero values take the defaults; out-of-range
// values are clamped.
type Params struct {
	MaxIterations int     // default 3, clamped to 1..10
	MinScore      float64 // default 0.75, clamped to 0.1..1.0
	Budget        int     // opaque; recorded on the task, not interpreted here
	Documents     []string
}

func (p Params) normalized() Params {
	if p.MaxIterations == 0 {
		p.MaxIterations = 3
	}
	if p.MaxIterations < 1 {
		p.MaxIterations = 1
	}
	if p.MaxIterations > 10 {
		p.MaxIterations = 10
	}
	if p.MinScore == 0 {
		p.MinScore = 0.75
	}
	if p.MinScore < 0.1 {
		p.MinScore = 0.1
	}
	if p.MinScore > 1.0 {
		p.MinScore = 1.0
	}
	return p
}

// Orchestrator wires the roles together for one server process.
type Orchestrator struct {
	planner       *planner.Planner
	researcher    *researcher.Researcher
	evaluator     *evaluator.Evaluator
	writer        *writer.Writer
	store         vector.Store
	bus           *progress.Bus
	sink          *events.Sink
	maxSubQueries int
}

// New creates an Orchestrator. sink may be nil.
func New(p *planner.Planner, r *researcher.Researcher, e *evaluator.Evaluator, w *writer.Writer, store vector.Store, bus *progress.Bus, sink *events.Sink, maxSubQueries int) *Orchestrator {
	if maxSubQueries <= 0 {
		maxSubQueries = 12
	}
	return &Orchestrator{planner: p, researcher: r, evaluator: e, writer: w, store: store, bus: bus, sink: sink, maxSubQueries: maxSubQueries}
}

// emit publishes one progress event to live subscribers and the session log.
func (o *Orchestrator) emit(taskID string, et types.EventType, msg string, data map[string]any) {
	ev := types.ProgressEvent{
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		EventType: et,
		Message:   msg,
		Data:      data,
	}
	o.bus.Publish(ev)
	o.sink.Append(ev)
}

// DeepResearch runs the full iterative loop for query.
//
// Expectations:
//   - the plan is created exactly once; later iterations run refinements
//   - the loop exits when the score reaches MinScore, the iteration budget
//     is exhausted, or a below-threshold pass yields no refinements
//   - a planning failure fails the run; search, evaluation, and store
//     failures degrade but never abort it
//   - context cancellation is honoured between phases
func (o *Orchestrator) DeepResearch(ctx context.Context, taskID, query string, p Params) (types.DeepResult, error) {
	p = p.normalized()
	started := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "deep_research",
		attribute.String("task_id", taskID),
		attribute.Int("max_iterations", p.MaxIterations))
	defer span.End()

	o.emit(taskID, types.EventStarted, "deep research accepted", map[string]any{
		"query":          query,
		"max_iterations": p.MaxIterations,
		"min_score":      p.MinScore,
	})

	o.emit(taskID, types.EventPlanning, "decomposing query", nil)
	plan, err := o.planner.CreatePlan(ctx, query, o.maxSubQueries)
	if err != nil {
		o.fail(taskID, "deep", err)
		return types.DeepResult{}, err
	}

	collection := vector.CollectionFor(query)
	result := types.DeepResult{OriginalQuery: query}
	currentPlan := plan
	cit := 0
	docs := p.Documents

	for k := 1; k <= p.MaxIterations; k++ {
		if err := ctx.Err(); err != nil {
			o.fail(taskID, "deep", err)
			return types.DeepResult{}, err
		}
		o.emit(taskID, types.EventIterationStarted, fmt.Sprintf("iteration %d of %d", k, p.MaxIterations), map[string]any{
			"iteration":   k,
			"sub_queries": len(currentPlan.SubQueries),
		})

		outcome, err := o.researcher.Execute(ctx, collection, currentPlan, cit, docs)
		if err != nil {
			o.fail(taskID, "deep", err)
			return types.DeepResult{}, err
		}
		docs = nil // local documents are ingested once
		cit += len(outcome.Evidence)
		result.FinalEvidence = append(result.FinalEvidence, outcome.Evidence...)
		o.emit(taskID, types.EventEvidence, "evidence collected", map[string]any{
			"iteration":  k,
			"accepted":   len(outcome.Evidence),
			"duplicates": outcome.Duplicates,
			"guarded":    outcome.Guarded,
			"failed":     outcome.Failed,
		})

		if err := ctx.Err(); err != nil {
			o.fail(taskID, "deep", err)
			return types.DeepResult{}, err
		}
		score, err := o.evaluator.Score(ctx, query, result.FinalEvidence)
		if err != nil {
			log.Printf("[ORCHESTRATOR] WARNING: evaluation unavailable, assuming incomplete: %v", err)
			score = types.CompletionScore{Overall: 0.5, Level: types.LevelPartial, Confidence: 0.0, Reasoning: "evaluator_unavailable"}
		}
		telemetry.IterationsTotal.Inc()
		o.emit(taskID, types.EventEvaluation, "evidence evaluated", map[string]any{
			"iteration":        k,
			"overall_score":    score.Overall,
			"completion_level": string(score.Level),
		})

		iteration := types.Iteration{
			Number:            k,
			QueriesExecuted:   outcome.Executed,
			EvidenceCollected: outcome.Evidence,
			Completion:        score,
			Timestamp:         time.Now().UTC(),
		}

		if score.Overall >= p.MinScore || k == p.MaxIterations {
			result.Iterations = append(result.Iterations, iteration)
			o.emit(taskID, types.EventIterationCompleted, fmt.Sprintf("iteration %d complete", k), map[string]any{
				"iteration": k,
				"converged": score.Overall >= p.MinScore,
			})
			break
		}

		gaps := o.evaluator.Gaps(ctx, query, result.FinalEvidence, score)
		o.emit(taskID, types.EventGapAnalysis, "gaps identified", map[string]any{
			"iteration": k,
			"gaps":      len(gaps),
		})

		var refinements []types.RefinementQuery
		if len(gaps) > 0 {
			refinements = o.evaluator.Refine(ctx, query, gaps)
		}
		o.emit(taskID, types.EventRefinement, "refinement queries generated", map[string]any{
			"iteration":   k,
			"refinements": len(refinements),
		})

		iteration.Gaps = gaps
		iteration.Refinements = refinements
		result.Iterations = append(result.Iterations, iteration)
		o.emit(taskID, types.EventIterationCompleted, fmt.Sprintf("iteration %d complete", k), map[string]any{
			"iteration": k,
			"converged": false,
		})

		// Nothing left to chase: stop early rather than repeat the same pass.
		if len(refinements) == 0 {
			break
		}
		currentPlan = refinementPlan(query, refinements, k+1)
	}

	if err := ctx.Err(); err != nil {
		o.fail(taskID, "deep", err)
		return types.DeepResult{}, err
	}
	o.emit(taskID, types.EventReportGeneration, "writing report", map[string]any{
		"evidence": len(result.FinalEvidence),
	})
	report, _ := o.writer.Report(ctx, collection, query, result.FinalEvidence)

	last := result.Iterations[len(result.Iterations)-1].Completion
	result.FinalReport = report
	result.QualityScore = last.Overall
	result.CompletionLevel = last.Level
	result.DurationSeconds = time.Since(started).Seconds()

	telemetry.RunsTotal.WithLabelValues("deep", "completed").Inc()
	o.emit(taskID, types.EventCompleted, "deep research complete", map[string]any{
		"iterations":       len(result.Iterations),
		"evidence":         len(result.FinalEvidence),
		"quality_score":    result.QualityScore,
		"completion_level": string(result.CompletionLevel),
		"duration_seconds": result.DurationSeconds,
		"relevance":        relevanceSummary(result.FinalEvidence),
	})
	return result, nil
}

// Research is the single-pass pipeline: plan, one research pass, report.
func (o *Orchestrator) Research(ctx context.Context, taskID, query string, p Params) (string, []string, error) {
	p = p.normalized()

	ctx, span := telemetry.StartSpan(ctx, "research", attribute.String("task_id", taskID))
	defer span.End()

	o.emit(taskID, types.EventStarted, "research accepted", map[string]any{"query": query})

	o.emit(taskID, types.EventPlanning, "decomposing query", nil)
	plan, err := o.planner.CreatePlan(ctx, query, o.maxSubQueries)
	if err != nil {
		o.fail(taskID, "simple", err)
		return "", nil, err
	}

	collection := vector.CollectionFor(query)
	outcome, err := o.researcher.Execute(ctx, collection, plan, 0, p.Documents)
	if err != nil {
		o.fail(taskID, "simple", err)
		return "", nil, err
	}
	o.emit(taskID, types.EventEvidence, "evidence collected", map[string]any{
		"accepted":   len(outcome.Evidence),
		"duplicates": outcome.Duplicates,
		"guarded":    outcome.Guarded,
	})

	if err := ctx.Err(); err != nil {
		o.fail(taskID, "simple", err)
		return "", nil, err
	}
	o.emit(taskID, types.EventReportGeneration, "writing report", nil)
	report, sources := o.writer.Report(ctx, collection, query, outcome.Evidence)

	telemetry.RunsTotal.WithLabelValues("simple", "completed").Inc()
	o.emit(taskID, types.EventCompleted, "research complete", map[string]any{
		"evidence": len(outcome.Evidence),
		"sources":  len(sources),
	})
	return report, sources, nil
}

func (o *Orchestrator) fail(taskID, kind string, err error) {
	telemetry.RunsTotal.WithLabelValues(kind, "failed").Inc()
	o.emit(taskID, types.EventFailed, "research failed", map[string]any{"error": err.Error()})
}

// refinementPlan wraps refinement queries in a plan for the next iteration.
// IDs are regenerated per iteration so evidence identity stays unambiguous
// across passes.
func refinementPlan(mainQuery string, refinements []types.RefinementQuery, iteration int) types.Plan {
	plan := types.Plan{MainQuery: mainQuery}
	for i, r := range refinements {
		plan.SubQueries = append(plan.SubQueries, types.SubQuery{
			ID:      fmt.Sprintf("refinement_%d_%d", iteration, i+1),
			Text:    r.Text,
			Sources: r.ExpectedSources,
		})
	}
	return plan
}

// Summary condenses a deep result into the structured overview served by the
// API: per-iteration detail rows plus aggregate score statistics.
func Summary(result types.DeepResult) map[string]any {
	rows := make([]map[string]any, 0, len(result.Iterations))
	scores := make([]float64, 0, len(result.Iterations))
	for _, it := range result.Iterations {
		rows = append(rows, map[string]any{
			"iteration":  it.Number,
			"queries":    len(it.QueriesExecuted),
			"evidence":   len(it.EvidenceCollected),
			"score":      it.Completion.Overall,
			"gaps_found": len(it.Gaps),
		})
		scores = append(scores, it.Completion.Overall)
	}
	summary := map[string]any{
		"query":             result.OriginalQuery,
		"iterations":        len(result.Iterations),
		"total_evidence":    len(result.FinalEvidence),
		"quality_score":     result.QualityScore,
		"completion_level":  string(result.CompletionLevel),
		"execution_time":    result.DurationSeconds,
		"iteration_details": rows,
	}
	if len(scores) > 0 {
		mean, _ := stats.Mean(scores)
		max, _ := stats.Max(scores)
		min, _ := stats.Min(scores)
		summary["score_statistics"] = map[string]float64{"mean": mean, "max": max, "min": min}
	}
	return summary
}

// relevanceSummary condenses the relevance scores of the final evidence for
// the completion event.
func relevanceSummary(evidence []types.Evidence) map[string]float64 {
	if len(evidence) == 0 {
		return nil
	}
	scores := make([]float64, 0, len(evidence))
	for _, ev := range evidence {
		scores = append(scores, ev.Relevance())
	}
	mean, _ := stats.Mean(scores)
	max, _ := stats.Max(scores)
	min, _ := stats.Min(scores)
	return map[string]float64{"mean": mean, "max": max, "min": min}
}
