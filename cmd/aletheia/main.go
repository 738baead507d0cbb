// Command aletheia runs the research service HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/saptiva-ai/alethia-deepresearch/internal/api"
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
	"github.com/saptiva-ai/alethia-deepresearch/internal/vector"
)

func main() {
	// Load env
	_ = godotenv.Load(".env")
	cfg := config.FromEnv()

	// Model client shared by every LLM-backed role.
	var llmClient llm.Client
	if cfg.HasModelCredentials() {
		llmClient = llm.NewSaptiva(cfg)
	} else {
		log.Printf("[MAIN] no SAPTIVA_API_KEY configured, running in mock model mode")
		llmClient = llm.NewMock()
	}

	// Search provider
	var searcher search.Searcher
	if cfg.HasSearchCredentials() {
		searcher = search.NewTavily(cfg.TavilyAPIKey)
	} else {
		log.Printf("[MAIN] no TAVILY_API_KEY configured, running in mock search mode")
		searcher = search.NewMockSearcher()
	}

	// Evidence store: Weaviate when reachable, in-process otherwise
	evidence, vectorBackend := buildVector(cfg)
	log.Printf("[MAIN] evidence store backend=%s", vectorBackend)

	// Durable store: MongoDB when configured, in-process otherwise
	durable := buildDurable(cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = durable.Close(ctx)
	}()

	// Session event log
	sink, err := events.Open(cfg.ArtifactsDir, uuid.New().String()[:8])
	if err != nil {
		log.Printf("[MAIN] WARNING: event log disabled: %v", err)
		sink = nil
	} else {
		defer sink.Close()
		log.Printf("[MAIN] event log %s", sink.Path())
	}

	bus := progress.NewBus()
	g := guard.NewBasic()
	ex := extract.NewDocument()

	plan := planner.New(llmClient, cfg.PlannerModel)
	res := researcher.New(searcher, evidence, g, ex, cfg.MaxWorkers, 5)
	eval := evaluator.New(llmClient, cfg.AnalystModel)
	wr := writer.New(llmClient, evidence, cfg.AnalystModel)

	orch := orchestrator.New(plan, res, eval, wr, evidence, bus, sink, cfg.MaxSubQueries)
	tasks := task.NewManager(orch, durable, bus, cfg.RunDeadline)

	server := api.NewServer(tasks, bus, llmClient, durable, cfg.HasSearchCredentials(), vectorBackend)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("[MAIN] shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}()

	log.Printf("[MAIN] listening on %s", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[MAIN] server: %v", err)
	}
}

// buildVector picks the evidence store backend. An unreachable Weaviate
// degrades to the in-process store rather than failing startup.
func buildVector(cfg config.Config) (vector.Store, string) {
	if cfg.VectorBackend != "weaviate" {
		return vector.NewMemory(), "memory"
	}
	w := vector.NewWeaviate(cfg.WeaviateHost)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !w.Live(ctx) {
		log.Printf("[MAIN] WARNING: weaviate at %s not reachable, using in-process evidence store", cfg.WeaviateHost)
		return vector.NewMemory(), "memory"
	}
	return w, "weaviate"
}

// buildDurable picks the durable store backend, degrading to in-process
// records when MongoDB is absent or unreachable.
func buildDurable(cfg config.Config) store.Durable {
	if cfg.MongoURL == "" {
		return store.NewMemory()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m, err := store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		log.Printf("[MAIN] WARNING: mongodb not reachable, task records are in-process only: %v", err)
		return store.NewMemory()
	}
	log.Printf("[MAIN] mongodb connected database=%s", cfg.MongoDatabase)
	return m
}
