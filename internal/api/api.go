// Package api exposes the research service over HTTP: task submission,
// status and report lookups, live progress over WebSocket, health, and
// metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/saptiva-ai/alethia-deepresearch/internal/llm"
	"github.com/saptiva-ai/alethia-deepresearch/internal/orchestrator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/progress"
	"github.com/saptiva-ai/alethia-deepresearch/internal/store"
	"github.com/saptiva-ai/alethia-deepresearch/internal/task"
	"github.com/saptiva-ai/alethia-deepresearch/internal/telemetry"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

const (
	healthCacheTTL = 30 * time.Second
	version        = "1.0.0"
)

// Server holds the handler dependencies.
type Server struct {
	tasks   *task.Manager
	bus     *progress.Bus
	llm     llm.Client
	durable store.Durable // nil when no backend is configured

	searchConfigured bool
	vectorBackend    string

	healthMu sync.Mutex
	healthAt time.Time
	health   map[string]any

	upgrader websocket.Upgrader
}

// NewServer creates the API server.
func NewServer(tasks *task.Manager, bus *progress.Bus, llmClient llm.Client, durable store.Durable, searchConfigured bool, vectorBackend string) *Server {
	return &Server{
		tasks:            tasks,
		bus:              bus,
		llm:              llmClient,
		durable:          durable,
		searchConfigured: searchConfigured,
		vectorBackend:    vectorBackend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", telemetry.MetricsHandler())

	r.Post("/research", s.handleResearch)
	r.Post("/deep-research", s.handleDeepResearch)
	r.Get("/deep-research/{taskID}", s.handleDeepResult)
	r.Get("/tasks/{taskID}/status", s.handleStatus)
	r.Post("/tasks/{taskID}/cancel", s.handleCancel)
	r.Get("/reports/{taskID}", s.handleReport)
	r.Get("/ws/progress/{taskID}", s.handleProgress)
	return r
}

type researchRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents,omitempty"`
}

type deepResearchRequest struct {
	Query         string   `json:"query"`
	MaxIterations int      `json:"max_iterations,omitempty"`
	MinScore      *float64 `json:"min_completion_score,omitempty"`
	Budget        int      `json:"budget,omitempty"`
	Documents     []string `json:"documents,omitempty"`
}

type acceptedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// reportResponse is the envelope served by GET /reports/{id}. Fields beyond
// status are present once the task completed.
type reportResponse struct {
	Status      string `json:"status"`
	ReportMD    string `json:"report_md,omitempty"`
	SourcesBib  string `json:"sources_bib,omitempty"`
	MetricsJSON string `json:"metrics_json,omitempty"`
}

// deepReportResponse is the envelope served by GET /deep-research/{id}.
type deepReportResponse struct {
	Status          string         `json:"status"`
	ReportMD        string         `json:"report_md,omitempty"`
	SourcesBib      string         `json:"sources_bib,omitempty"`
	ResearchSummary map[string]any `json:"research_summary,omitempty"`
	QualityMetrics  map[string]any `json:"quality_metrics,omitempty"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	taskID := s.tasks.Submit(req.Query, types.KindSimple, orchestrator.Params{Documents: req.Documents})
	writeJSON(w, http.StatusAccepted, acceptedResponse{TaskID: taskID, Status: string(types.StatusAccepted)})
}

func (s *Server) handleDeepResearch(w http.ResponseWriter, r *http.Request) {
	var req deepResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.MaxIterations < 0 || req.MaxIterations > 10 {
		writeError(w, http.StatusBadRequest, "max_iterations must be between 1 and 10")
		return
	}
	// An explicit zero is rejected, not treated as unset.
	var minScore float64
	if req.MinScore != nil {
		if *req.MinScore < 0.1 || *req.MinScore > 1.0 {
			writeError(w, http.StatusBadRequest, "min_completion_score must be between 0.1 and 1.0")
			return
		}
		minScore = *req.MinScore
	}

	taskID := s.tasks.Submit(req.Query, types.KindDeep, orchestrator.Params{
		MaxIterations: req.MaxIterations,
		MinScore:      minScore,
		Budget:        req.Budget,
		Documents:     req.Documents,
	})
	writeJSON(w, http.StatusAccepted, acceptedResponse{TaskID: taskID, Status: string(types.StatusAccepted)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	rec, ok := s.tasks.Status(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	// Status responses stay lean; full results have their own endpoints.
	rec.Result = ""
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if !s.tasks.Cancel(taskID) {
		writeError(w, http.StatusNotFound, "no running task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "cancelling"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	rec, ok := s.tasks.Status(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "no report for task")
		return
	}
	if rec.Status != types.StatusCompleted {
		writeJSON(w, http.StatusOK, reportResponse{Status: string(rec.Status)})
		return
	}

	rep, ok := s.tasks.Report(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "no report for task")
		return
	}
	resp := reportResponse{
		Status:     string(types.StatusCompleted),
		ReportMD:   rep.Markdown,
		SourcesBib: strings.Join(rep.Sources, "\n"),
	}
	if rec.Kind == types.KindDeep {
		if result, ok := s.tasks.Result(taskID); ok {
			resp.SourcesBib = fmt.Sprintf("Generated from %d evidence sources", len(result.FinalEvidence))
			if metrics, err := json.Marshal(qualityMetrics(result)); err == nil {
				resp.MetricsJSON = string(metrics)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeepResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	rec, ok := s.tasks.Status(taskID)
	if !ok || rec.Kind != types.KindDeep {
		writeError(w, http.StatusNotFound, "no deep research task")
		return
	}

	switch rec.Status {
	case types.StatusCompleted:
		result, ok := s.tasks.Result(taskID)
		if !ok {
			writeError(w, http.StatusNotFound, "no deep research result for task")
			return
		}
		writeJSON(w, http.StatusOK, deepReportResponse{
			Status:          string(types.StatusCompleted),
			ReportMD:        result.FinalReport,
			SourcesBib:      fmt.Sprintf("Generated from %d evidence sources", len(result.FinalEvidence)),
			ResearchSummary: orchestrator.Summary(result),
			QualityMetrics:  qualityMetrics(result),
		})
	case types.StatusFailed:
		writeJSON(w, http.StatusOK, deepReportResponse{
			Status:   string(types.StatusFailed),
			ReportMD: "Deep research failed: " + rec.Error,
		})
	default:
		writeJSON(w, http.StatusOK, deepReportResponse{Status: string(rec.Status)})
	}
}

func qualityMetrics(result types.DeepResult) map[string]any {
	return map[string]any{
		"completion_level": string(result.CompletionLevel),
		"quality_score":    result.QualityScore,
		"evidence_count":   len(result.FinalEvidence),
		"execution_time":   result.DurationSeconds,
	}
}

// handleProgress streams progress events for one task over a WebSocket.
// Subscription starts at the next published event; there is no replay of
// earlier ones.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if _, ok := s.tasks.Status(taskID); !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[API] WARNING: websocket upgrade failed task_id=%s: %v", taskID, err)
		return
	}
	defer conn.Close()

	ch := s.bus.Subscribe(taskID)
	defer s.bus.Unsubscribe(taskID, ch)

	// Drain client frames so close is noticed; nothing inbound is expected.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.EventType == types.EventCompleted || ev.EventType == types.EventFailed {
				return
			}
		case <-clientGone:
			return
		}
	}
}

// handleHealth reports provider availability. Probes are cached for 30
// seconds so the endpoint stays cheap under poll pressure.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	if time.Since(s.healthAt) > healthCacheTTL {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		providers := map[string]any{
			"llm":    s.llm.Health(ctx),
			"search": s.searchConfigured,
			"vector": s.vectorBackend,
		}
		if s.durable != nil {
			providers["store"] = s.durable.Ping(ctx) == nil
		}

		status := "ok"
		if healthy, ok := providers["llm"].(bool); ok && !healthy {
			status = "degraded"
		}
		s.health = map[string]any{"status": status, "version": version, "providers": providers}
		s.healthAt = time.Now()
	}
	writeJSON(w, http.StatusOK, s.health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] WARNING: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
