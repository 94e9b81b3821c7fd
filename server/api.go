package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/idea"
	"github.com/lexcodex/wayforward/persistence"
)

// IdeaAnalyzer is the analysis boundary; *idea.Analyzer satisfies it.
type IdeaAnalyzer interface {
	AnalyzeDetailed(ctx context.Context, description string) *idea.Result
}

// TextImprover rewrites idea text; *idea.Improver satisfies it.
type TextImprover interface {
	Improve(ctx context.Context, text string) (string, error)
}

// RunHistory lists recorded analyses; *persistence.RunStore satisfies it.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]persistence.Run, error)
	Stats(ctx context.Context) (*persistence.Stats, error)
}

// APIServer exposes the analysis pipeline over HTTP.
type APIServer struct {
	Analyzer       IdeaAnalyzer
	Improver       TextImprover
	Runs           RunHistory
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// AnalyzeRequest is the analyze-idea payload.
type AnalyzeRequest struct {
	Description string `json:"description"`
}

// AnalyzeResponse wraps the completed form.
type AnalyzeResponse struct {
	FormData idea.Draft `json:"form_data"`
	RunID    string     `json:"run_id,omitempty"`
	Strategy string     `json:"strategy,omitempty"`
}

// ImproveRequest is the improve-text payload.
type ImproveRequest struct {
	Text string `json:"text"`
}

// ImproveResponse carries the rewritten text.
type ImproveResponse struct {
	ImprovedText string `json:"improved_text"`
}

// RunsResponse lists recent analyses.
type RunsResponse struct {
	Runs  []persistence.Run  `json:"runs"`
	Stats *persistence.Stats `json:"stats,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger().Info("API listening", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler returns the routed handler with CORS and request logging applied.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/agents/analyze-idea", s.handleAnalyze)
	mux.HandleFunc("POST /api/v1/llms/improve-text", s.handleImprove)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s.withCORS(s.withLogging(mux))
}

func (s *APIServer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *APIServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusOK, AnalyzeResponse{FormData: idea.EmptyDescription()})
		return
	}
	if s.Analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analyzer not configured")
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	res := s.Analyzer.AnalyzeDetailed(ctx, req.Description)
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		FormData: res.Draft,
		RunID:    res.RunID,
		Strategy: string(res.Strategy),
	})
}

func (s *APIServer) handleImprove(w http.ResponseWriter, r *http.Request) {
	var req ImproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if s.Improver == nil {
		writeError(w, http.StatusServiceUnavailable, "improver not configured")
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	improved, err := s.Improver.Improve(ctx, req.Text)
	if err != nil {
		s.logger().Error("improve text failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ImproveResponse{ImprovedText: improved})
}

func (s *APIServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.Runs == nil {
		writeError(w, http.StatusNotFound, "run history disabled")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.Runs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.Runs.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Stats: stats})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.RequestTimeout)
}

// withCORS echoes allowed origins and answers preflight requests.
func (s *APIServer) withCORS(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.AllowedOrigins))
	for _, o := range s.AllowedOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			h := w.Header()
			if allowed[origin] {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			} else {
				// wildcard origins never get credentials
				h.Set("Access-Control-Allow-Origin", "*")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *APIServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
