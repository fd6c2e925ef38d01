// Package ui serves the read-only results API. Plotting and review tooling
// consume the metric table, model results, and the batch report over HTTP;
// nothing here mutates pipeline state.
package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
	"gaitlab/internal"
	"gaitlab/internal/errors"
	"gaitlab/internal/pipeline"
	"gaitlab/internal/report"
)

// App is the results API application.
type App struct {
	router *chi.Mux
	logger *internal.Logger
	table  *metrics.Table
	report *report.Generator

	mu     sync.RWMutex
	result *pipeline.Result
}

// Config holds API configuration.
type Config struct {
	Port string
}

// NewApp creates the results API over a metric table.
func NewApp(table *metrics.Table, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	app := &App{
		router: chi.NewRouter(),
		logger: logger,
		table:  table,
		report: report.NewGenerator(),
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app
}

// SetResult publishes the latest batch result to the API.
func (a *App) SetResult(result *pipeline.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = result
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
	a.router.Use(middleware.Timeout(30 * time.Second))
}

func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)
	a.router.Get("/api/batch", a.handleBatch)
	a.router.Get("/api/metrics", a.handleMetrics)
	a.router.Get("/api/metrics/{subject}", a.handleSubjectMetrics)
	a.router.Get("/api/models", a.handleModels)
	a.router.Get("/api/report", a.handleReport)
}

// Router exposes the handler for tests and embedding.
func (a *App) Router() http.Handler {
	return a.router
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *App) Serve(ctx context.Context, cfg Config) error {
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Results API listening on :%s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encoding response: %v", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBatch returns the latest run manifest.
func (a *App) handleBatch(w http.ResponseWriter, _ *http.Request) {
	a.mu.RLock()
	result := a.result
	a.mu.RUnlock()
	if result == nil {
		a.writeError(w, http.StatusNotFound, "no batch has completed yet")
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

// handleMetrics returns the full metric table, optionally filtered by
// trial_type, metric, and condition query parameters.
func (a *App) handleMetrics(w http.ResponseWriter, r *http.Request) {
	records := a.table.Records()

	trialType := r.URL.Query().Get("trial_type")
	metric := r.URL.Query().Get("metric")
	condition := r.URL.Query().Get("condition")

	if trialType != "" && !gait.IsValidTrialType(trialType) {
		a.writeError(w, http.StatusBadRequest,
			errors.InvalidInput(fmt.Sprintf("unknown trial_type %q", trialType)).Error())
		return
	}
	switch metrics.Condition(condition) {
	case "", metrics.ConditionAll, metrics.ConditionMax, metrics.ConditionMin:
	default:
		a.writeError(w, http.StatusBadRequest,
			errors.InvalidInput(fmt.Sprintf("unknown condition %q", condition)).Error())
		return
	}

	filtered := make([]metrics.Record, 0, len(records))
	for _, rec := range records {
		if trialType != "" && string(rec.Key.TrialType) != trialType {
			continue
		}
		if metric != "" && string(rec.Key.Metric) != metric {
			continue
		}
		if condition != "" && string(rec.Key.Condition) != condition {
			continue
		}
		filtered = append(filtered, rec)
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(filtered),
		"records": filtered,
	})
}

func (a *App) handleSubjectMetrics(w http.ResponseWriter, r *http.Request) {
	subjectID := core.SubjectID(chi.URLParam(r, "subject"))
	records := a.table.SubjectRecords(subjectID)
	if len(records) == 0 {
		a.writeError(w, http.StatusNotFound, fmt.Sprintf("no metrics for subject %s", subjectID))
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"subject_id": subjectID,
		"records":    records,
	})
}

func (a *App) handleModels(w http.ResponseWriter, _ *http.Request) {
	a.mu.RLock()
	result := a.result
	a.mu.RUnlock()
	if result == nil {
		a.writeError(w, http.StatusNotFound, "no batch has completed yet")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": result.Models,
		"skips":  result.ModelSkips,
	})
}

// handleReport renders the batch report. format=md returns raw markdown,
// anything else the HTML rendering.
func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	result := a.result
	a.mu.RUnlock()
	if result == nil {
		a.writeError(w, http.StatusNotFound, "no batch has completed yet")
		return
	}

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, a.report.Markdown(result, a.table))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(a.report.HTML(result, a.table))
}
