// Package api exposes the matching engine over HTTP and MCP. Both transports
// dispatch to the same kit.Endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calaix/esmena/pkg/engine"
	"github.com/calaix/esmena/pkg/glossary"
	"github.com/calaix/esmena/pkg/kit"
	"github.com/calaix/esmena/pkg/store"
)

// NewRouter returns an http.Handler with all esmena API routes. submissions
// may be nil; accepted glossary batches are then not persisted.
func NewRouter(eng *engine.Engine, submissions *store.DB, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	h := &handler{
		vectorize:   vectorizeEndpoint(eng),
		detect:      detectEndpoint(eng),
		search:      searchEndpoint(eng),
		status:      statusEndpoint(eng),
		submissions: submissions,
		logger:      logger,
	}

	mux.HandleFunc("POST /v1/vectorize", h.handleVectorize)
	mux.HandleFunc("POST /v1/detect-candidates", h.handleDetect)
	mux.HandleFunc("POST /v1/search", h.handleSearch)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(mux)
}

type handler struct {
	vectorize   kit.Endpoint
	detect      kit.Endpoint
	search      kit.Endpoint
	status      kit.Endpoint
	submissions *store.DB
	logger      *slog.Logger
}

// --- vectorize glossary ---

type httpVectorizeRequest struct {
	Glossary []glossary.Submission `json:"glossary"`
}

func (h *handler) handleVectorize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20) // 8 MiB max
	var req httpVectorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if h.submissions != nil && len(req.Glossary) > 0 {
		if id, err := h.submissions.SaveBatch(req.Glossary); err != nil {
			h.logger.Error("submission persistence failed", "error", err)
		} else {
			h.logger.Info("submission batch stored", "id", id, "entries", len(req.Glossary))
		}
	}

	resp, err := h.vectorize(r.Context(), &vectorizeReq{Glossary: req.Glossary})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	report := resp.(engine.BuildReport)
	if !report.Success {
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- detect candidates ---

type httpDetectRequest struct {
	Text          string `json:"text"`
	ContextWindow *int   `json:"context_window,omitempty"`
}

func (h *handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB max
	var req httpDetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	window := -1
	if req.ContextWindow != nil {
		window = *req.ContextWindow
	}
	resp, err := h.detect(r.Context(), &detectReq{Text: req.Text, ContextWindow: window})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- search ---

type httpSearchRequest struct {
	Candidates []string `json:"candidates"`
	TopK       int      `json:"top_k"`
	Threshold  float32  `json:"threshold"`
}

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req httpSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.search(r.Context(), &searchReq{
		Candidates: req.Candidates,
		TopK:       req.TopK,
		Threshold:  req.Threshold,
	})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type engineStatus = engine.Status

type healthResponse struct {
	Status string `json:"status"`
	engineStatus
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := h.status(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", engineStatus: resp.(engine.Status)})
}

// --- helpers ---

// errorStatus maps engine sentinel errors to HTTP status codes. Validation
// failures from the endpoints fall through to 400.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrEmptyGlossary):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
