// Command deepresearch runs one research task from the command line and
// prints the cited report to stdout.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/saptiva-ai/alethia-deepresearch/internal/config"
	"github.com/saptiva-ai/alethia-deepresearch/internal/events"
	"github.com/saptiva-ai/alethia-deepresearch/internal/extract"
	"github.com/saptiva-ai/alethia-deepresearch/internal/guard"
	"github.com/saptiva-ai/alethia-deepresearch/internal/llm"
	"github.com/saptiva-ai/alethia-deepresearch/internal/orchestrator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/progress"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/evaluator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/planner"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/researcher"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/writer"
	"github.com/saptiva-ai/alethia-deepresearch/internal/search"
	"github.com/saptiva-ai/alethia-deepresearch/internal/store"
	"github.com/saptiva-ai/alethia-deepresearch/internal/task"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
	"github.com/saptiva-ai/alethia-deepresearch/internal/vector"
)

func main() {
	iterations := flag.Int("iterations", 3, "maximum research iterations (1-10)")
	minScore := flag.Float64("min-score", 0.75, "completion score that stops the loop (0.1-1.0)")
	simple := flag.Bool("simple", false, "single-pass research without the evaluation loop")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: deepresearch [flags] <research question>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	_ = godotenv.Load(".env")
	cfg := config.FromEnv()
	log.SetOutput(os.Stderr)

	var llmClient llm.Client
	if cfg.HasModelCredentials() {
		llmClient = llm.NewSaptiva(cfg)
	} else {
		color.Yellow("no SAPTIVA_API_KEY configured, mock model mode")
		llmClient = llm.NewMock()
	}
	var searcher search.Searcher
	if cfg.HasSearchCredentials() {
		searcher = search.NewTavily(cfg.TavilyAPIKey)
	} else {
		color.Yellow("no TAVILY_API_KEY configured, mock search mode")
		searcher = search.NewMockSearcher()
	}

	evidence := vector.NewMemory()
	bus := progress.NewBus()

	sink, err := events.Open(cfg.ArtifactsDir, uuid.New().String()[:8])
	if err != nil {
		color.Yellow("event log disabled: %v", err)
		sink = nil
	} else {
		defer sink.Close()
	}

	plan := planner.New(llmClient, cfg.PlannerModel)
	res := researcher.New(searcher, evidence, guard.NewBasic(), extract.NewDocument(), cfg.MaxWorkers, 5)
	eval := evaluator.New(llmClient, cfg.AnalystModel)
	wr := writer.New(llmClient, evidence, cfg.AnalystModel)
	orch := orchestrator.New(plan, res, eval, wr, evidence, bus, sink, cfg.MaxSubQueries)
	tasks := task.NewManager(orch, store.NewMemory(), bus, cfg.RunDeadline)

	kind := types.KindDeep
	params := orchestrator.Params{MaxIterations: *iterations, MinScore: *minScore}
	if *simple {
		kind = types.KindSimple
	}

	taskID := tasks.Submit(query, kind, params)
	ch := bus.Subscribe(taskID)

	color.Cyan("task %s: %s", taskID, query)
	watchProgress(tasks, taskID, ch)

	rec, ok := tasks.Status(taskID)
	if !ok || rec.Status != types.StatusCompleted {
		color.Red("research failed: %s", rec.Error)
		os.Exit(1)
	}

	rep, _ := tasks.Report(taskID)
	fmt.Println(rep.Markdown)

	if result, ok := tasks.Result(taskID); ok {
		color.Green("done: %d iterations, %d evidence items, score %.2f, %.1fs",
			len(result.Iterations), len(result.FinalEvidence), result.QualityScore, result.DurationSeconds)
	}
}

// watchProgress renders bus events until the task reaches a terminal state.
// The status poll covers the window between submission and subscription,
// where terminal events can be missed.
func watchProgress(tasks *task.Manager, taskID string, ch <-chan types.ProgressEvent) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(15 * time.Minute)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			render(ev)
			if ev.EventType == types.EventCompleted || ev.EventType == types.EventFailed {
				return
			}
		case <-ticker.C:
			if rec, ok := tasks.Status(taskID); ok {
				if rec.Status == types.StatusCompleted || rec.Status == types.StatusFailed {
					return
				}
			}
		case <-deadline:
			color.Red("timed out waiting for progress")
			return
		}
	}
}

func render(ev types.ProgressEvent) {
	switch ev.EventType {
	case types.EventPlanning, types.EventIterationStarted, types.EventReportGeneration:
		color.Cyan("• %s", ev.Message)
	case types.EventEvidence:
		color.White("  %s accepted=%v duplicates=%v", ev.Message, ev.Data["accepted"], ev.Data["duplicates"])
	case types.EventEvaluation:
		color.Magenta("  score=%v level=%v", ev.Data["overall_score"], ev.Data["completion_level"])
	case types.EventGapAnalysis, types.EventRefinement:
		color.Yellow("  %s (%d gaps/refinements)", ev.Message, countOf(ev.Data))
	case types.EventCompleted:
		color.Green("✓ %s", ev.Message)
	case types.EventFailed:
		color.Red("✗ %s: %v", ev.Message, ev.Data["error"])
	}
}

func countOf(data map[string]any) int {
	for _, key := range []string{"gaps", "refinements"} {
		if v, ok := data[key].(int); ok {
			return v
		}
	}
	return 0
}
