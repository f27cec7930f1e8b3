// Package httpapi exposes the budget-window orchestrator over HTTP so a
// presentation layer can drive analyses without linking the Go core.
// Credentials arrive in the request body, are used for that one analysis, and
// are never stored or logged.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/joelkehle/budgetwindow/internal/budgetwindow"
)

type analyzeFunc func(r *http.Request, req budgetwindow.AnalysisRequest) (budgetwindow.ResponseEnvelope, error)

type Server struct {
	analyze analyzeFunc
}

// NewServer wires the handler mux around an orchestrator.
func NewServer(orc *budgetwindow.Orchestrator) http.Handler {
	return newServer(func(r *http.Request, req budgetwindow.AnalysisRequest) (budgetwindow.ResponseEnvelope, error) {
		return orc.Analyze(r.Context(), req)
	})
}

func newServer(analyze analyzeFunc) http.Handler {
	s := &Server{analyze: analyze}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if details != nil {
		body["error"].(map[string]any)["details"] = details
	}
	writeJSON(w, status, body)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

type analyzeRequest struct {
	Domain      string                `json:"domain"`
	Strategy    budgetwindow.Strategy `json:"strategy"`
	Model       string                `json:"model"`
	Credentials struct {
		EnrichmentKey string `json:"enrichment_key"`
		SearchKey     string `json:"search_key"`
		GenerationKey string `json:"generation_key"`
	} `json:"credentials"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "read request body: "+err.Error(), nil)
		return
	}
	var req analyzeRequest
	if err := json.Unmarshal(blob, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "decode request body: "+err.Error(), nil)
		return
	}

	env, err := s.analyze(r, budgetwindow.AnalysisRequest{
		Domain:   strings.TrimSpace(req.Domain),
		Strategy: req.Strategy,
		Model:    req.Model,
		Credentials: budgetwindow.Credentials{
			EnrichmentKey: req.Credentials.EnrichmentKey,
			SearchKey:     req.Credentials.SearchKey,
			GenerationKey: req.Credentials.GenerationKey,
		},
	})
	if err != nil {
		writeAnalyzeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func writeAnalyzeError(w http.ResponseWriter, err error) {
	var cfgErr *budgetwindow.ConfigError
	if errors.As(err, &cfgErr) {
		writeError(w, http.StatusBadRequest, "config", cfgErr.Error(), map[string]any{
			"missing_credentials": cfgErr.MissingCredentials,
			"empty_domain":        cfgErr.EmptyDomain,
		})
		return
	}
	var dataErr *budgetwindow.DataAvailabilityError
	if errors.As(err, &dataErr) {
		writeError(w, http.StatusBadGateway, "data_unavailable", dataErr.Error(), nil)
		return
	}
	var stageErr *budgetwindow.StageError
	if errors.As(err, &stageErr) {
		writeError(w, http.StatusBadGateway, "stage_failed", stageErr.Error(), map[string]any{
			"stage": stageErr.Stage,
		})
		return
	}
	if strings.Contains(err.Error(), "unknown strategy") {
		writeError(w, http.StatusBadRequest, "validation", err.Error(), nil)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
