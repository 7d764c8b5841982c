// Package chi exposes the incident API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain"
	dominc "github.com/kailas-cloud/incidex/internal/domain/incident"
	domsearch "github.com/kailas-cloud/incidex/internal/domain/search"
	"github.com/kailas-cloud/incidex/internal/metrics"
	healthuc "github.com/kailas-cloud/incidex/internal/usecase/health"
	incidentuc "github.com/kailas-cloud/incidex/internal/usecase/incident"
	"github.com/kailas-cloud/incidex/internal/usecase/ingest"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeInvalidQuery     = "invalid_query"
	CodeVectorDim        = "vector_dim_mismatch"
	CodeRateLimited      = "rate_limited"
	CodeProviderError    = "embedding_provider_error"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternalError    = "internal_error"
)

// IncidentService is the application service behind the incident routes.
type IncidentService interface {
	Ingest(ctx context.Context, container string) (ingest.Report, error)
	SearchSimilar(ctx context.Context, params incidentuc.SimilarParams) (*incidentuc.SimilarResult, error)
	SearchText(ctx context.Context, container, field, text string, limit int) ([]domsearch.Hit[dominc.Incident], error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the incident API.
type Server struct {
	incidents     IncidentService
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(incidents IncidentService, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{incidents: incidents, health: health, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDim),
		sentinelHandler(db.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrStore, http.StatusServiceUnavailable, CodeStoreUnavailable),
	}
	return s
}

// Handler builds the router with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Route("/api/incidents", func(r gochi.Router) {
		r.Post("/ingest", s.Ingest)
		r.Post("/search-similar", s.SearchSimilar)
		r.Get("/search", s.Search)
	})
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Ingest handles POST /api/incidents/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	container := r.URL.Query().Get("collectionName")

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.incidents.Ingest(ctx, container)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	if report.Ingested == 0 {
		writeJSON(w, http.StatusOK, ingestResponse{Message: "No incidents found in source", CollectionName: container})
		return
	}
	writeJSON(w, http.StatusOK, ingestResponseFrom(report, container))
}

// SearchSimilar handles POST /api/incidents/search-similar.
func (s *Server) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req searchSimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Incident == nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Incident is required")
		return
	}

	where, err := filterFromRequest(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.incidents.SearchSimilar(ctx, incidentuc.SimilarParams{
		Incident:      req.Incident.toDomain(),
		Container:     req.CollectionName,
		TitleWeight:   req.TitleWeight,
		SummaryWeight: req.SummaryWeight,
		MaxResults:    req.MaxResults,
		Filter:        where,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	writeJSON(w, http.StatusOK, searchSimilarResponseFrom(res))
}

// Search handles GET /api/incidents/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.incidents.SearchText(ctx, q.Get("collectionName"), q.Get("field"), q.Get("q"), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	results := resultsFrom(hits)
	writeJSON(w, http.StatusOK, searchResponse{Query: q.Get("q"), Results: results, Count: len(results)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
		w.Header().Set("X-Embedding-Calls", strconv.Itoa(usage.Calls))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation errors keep their field and reason.
func safeDomainMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	sentinels := []error{
		domain.ErrVectorDimMismatch,
		db.ErrInvalidQuery,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrStore,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
