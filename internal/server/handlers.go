package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/engine"
	"github.com/riskrun/riskrun/internal/plan"
)

// maxBodyBytes caps accepted request bodies.
const maxBodyBytes = 4 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// handleSimulate runs a single scenario document posted as YAML. Query
// parameters: trials, seed, envelope (return the engine-agnostic envelope
// instead of the raw result).
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	doc, err := document.ParseScenario(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	opts, ok := s.runOptions(w, r)
	if !ok {
		return
	}

	started := time.Now()
	result := engine.RunScenario(doc, opts)
	if s.metrics != nil {
		s.metrics.ObserveSimulation("scenario", result.Success, opts.Trials, time.Since(started))
	}
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	if r.URL.Query().Get("envelope") == "1" {
		writeJSON(w, http.StatusOK, result.Envelope())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// planRequest is an inlined document bundle: the portfolio plus every
// document it references, keyed by the paths the portfolio uses.
type planRequest struct {
	Portfolio string            `json:"portfolio"`
	Documents map[string]string `json:"documents"`
	Run       bool              `json:"run"`
}

// handlePlan plans (and optionally runs) a portfolio from an inlined bundle,
// so the API never touches the server's filesystem.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	var req planRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "request must be a JSON document bundle")
		return
	}
	if req.Portfolio == "" {
		writeError(w, http.StatusBadRequest, "bundle is missing the portfolio document")
		return
	}

	files := document.MapFileReader{"portfolio.yaml": []byte(req.Portfolio)}
	for path, content := range req.Documents {
		files[path] = []byte(content)
	}

	report := plan.NewPlanner(files).PlanFile("portfolio.yaml")
	if s.metrics != nil {
		s.metrics.ObservePlan(report.OK)
	}
	if !report.OK || !req.Run {
		status := http.StatusOK
		if !report.OK {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, report)
		return
	}

	opts, ok := s.runOptions(w, r)
	if !ok {
		return
	}
	started := time.Now()
	result := engine.RunPortfolio(report.Plan, opts)
	if s.metrics != nil {
		s.metrics.ObserveSimulation("portfolio", result.Success, opts.Trials, time.Since(started))
	}
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// runOptions extracts trials and seed from query parameters, enforcing the
// configured trial cap. Reports false after writing an error response.
func (s *Server) runOptions(w http.ResponseWriter, r *http.Request) (engine.Options, bool) {
	opts := engine.Options{FX: s.config.FX}

	if v := r.URL.Query().Get("trials"); v != "" {
		trials, err := strconv.Atoi(v)
		if err != nil || trials <= 0 {
			writeError(w, http.StatusBadRequest, "trials must be a positive integer")
			return opts, false
		}
		if trials > s.config.MaxTrials {
			writeError(w, http.StatusBadRequest,
				"trials exceeds the server limit of "+strconv.Itoa(s.config.MaxTrials))
			return opts, false
		}
		opts.Trials = trials
	}
	if v := r.URL.Query().Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "seed must be a non-negative integer")
			return opts, false
		}
		opts.Seed = seed
	}
	if opts.Trials == 0 {
		opts.Trials = engine.DefaultTrials
	}
	return opts, true
}
