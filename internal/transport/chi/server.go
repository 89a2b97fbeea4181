// Package chi exposes the retrieval service over HTTP for the query-style
// consumer. The engine itself never depends on this package.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
	logpkg "github.com/kontext-io/kontext/internal/logger"
	"github.com/kontext-io/kontext/internal/usecase/retrieval"
)

// Server wires retrieval operations onto chi routes. Request-scoped logging
// comes out of the request context, so the server carries no logger of its own.
type Server struct {
	retrieval *retrieval.Service
}

// NewServer creates an HTTP API server.
func NewServer(svc *retrieval.Service) *Server {
	return &Server{retrieval: svc}
}

// Register mounts all routes onto r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/contexts", func(r chi.Router) {
			r.Get("/", s.queryContexts)
			r.Post("/", s.createContext)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getContext)
				r.Patch("/", s.updateContext)
				r.Delete("/", s.deleteContext)
				r.Get("/similar", s.similarContexts)
			})
		})
		r.Get("/stats", s.stats)
		r.Post("/enhance", s.enhanceQuery)
	})
}

// --- wire types ---

type contextBody struct {
	Kind           string   `json:"kind"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Content        string   `json:"content"`
	Tags           []string `json:"tags,omitempty"`
	Language       string   `json:"language,omitempty"`
	DomainCategory string   `json:"domain_category,omitempty"`
	BaseScore      float64  `json:"base_score"`
	RelatedIDs     []string `json:"related_ids,omitempty"`
}

type contextResponse struct {
	ID string `json:"id"`
	contextBody
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type pageResponse struct {
	Contexts []contextResponse `json:"contexts"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type patchBody struct {
	Kind           *string   `json:"kind"`
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Content        *string   `json:"content"`
	Tags           *[]string `json:"tags"`
	Language       *string   `json:"language"`
	DomainCategory *string   `json:"domain_category"`
	BaseScore      *float64  `json:"base_score"`
	RelatedIDs     *[]string `json:"related_ids"`
}

type enhanceRequest struct {
	Text        string `json:"text"`
	MaxSnippets int    `json:"max_snippets"`
}

type enhanceResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- handlers ---

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createContext(w http.ResponseWriter, r *http.Request) {
	var body contextBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	rec, err := s.retrieval.Create(r.Context(), createInputFromBody(body))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordToResponse(&rec))
}

func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	rec, err := s.retrieval.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(&rec))
}

func (s *Server) updateContext(w http.ResponseWriter, r *http.Request) {
	var body patchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	p, err := patchFromBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	rec, err := s.retrieval.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(&rec))
}

func (s *Server) deleteContext(w http.ResponseWriter, r *http.Request) {
	removed, err := s.retrieval.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", "context not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) queryContexts(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	records, total, err := s.retrieval.Query(r.Context(), f)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	page := pageResponse{
		Contexts: make([]contextResponse, len(records)),
		Total:    total,
		Limit:    f.Limit,
		Offset:   f.Offset,
	}
	for i := range records {
		page.Contexts[i] = recordToResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) similarContexts(w http.ResponseWriter, r *http.Request) {
	topK := 5
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid k: "+raw)
			return
		}
		topK = parsed
	}

	records, err := s.retrieval.Similar(r.Context(), chi.URLParam(r, "id"), topK)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	out := make([]contextResponse, len(records))
	for i := range records {
		out[i] = recordToResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"contexts": out})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.retrieval.Stats(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   stats.Total,
		"by_kind": stats.ByKind,
		"by_tag":  stats.ByTag,
	})
}

func (s *Server) enhanceQuery(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	text, err := s.retrieval.EnhanceQuery(r.Context(), req.Text, req.MaxSnippets)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enhanceResponse{Text: text})
}

// --- conversions ---

func createInputFromBody(body contextBody) retrieval.CreateInput {
	return retrieval.CreateInput{
		Kind:           record.Kind(body.Kind),
		Title:          body.Title,
		Description:    body.Description,
		Content:        body.Content,
		Tags:           body.Tags,
		Language:       body.Language,
		DomainCategory: body.DomainCategory,
		BaseScore:      body.BaseScore,
		RelatedIDs:     body.RelatedIDs,
	}
}

func recordToResponse(rec *record.Record) contextResponse {
	return contextResponse{
		ID: rec.ID(),
		contextBody: contextBody{
			Kind:           rec.Kind().String(),
			Title:          rec.Title(),
			Description:    rec.Description(),
			Content:        rec.Content(),
			Tags:           rec.Tags(),
			Language:       rec.Language(),
			DomainCategory: rec.DomainCategory(),
			BaseScore:      rec.BaseScore(),
			RelatedIDs:     rec.RelatedIDs(),
		},
		CreatedAt: rec.CreatedAt(),
		UpdatedAt: rec.UpdatedAt(),
	}
}

func patchFromBody(body patchBody) (patch.Patch, error) {
	b := patch.NewBuilder()
	if body.Kind != nil {
		b.Kind(record.Kind(*body.Kind))
	}
	if body.Title != nil {
		b.Title(*body.Title)
	}
	if body.Description != nil {
		b.Description(*body.Description)
	}
	if body.Content != nil {
		b.Content(*body.Content)
	}
	if body.Tags != nil {
		b.Tags(*body.Tags)
	}
	if body.Language != nil {
		b.Language(*body.Language)
	}
	if body.DomainCategory != nil {
		b.DomainCategory(*body.DomainCategory)
	}
	if body.BaseScore != nil {
		b.BaseScore(*body.BaseScore)
	}
	if body.RelatedIDs != nil {
		b.RelatedIDs(*body.RelatedIDs)
	}
	return b.Build()
}

func filterFromQuery(r *http.Request) (filter.Filter, error) {
	q := r.URL.Query()
	var f filter.Filter

	for _, raw := range splitCSV(q.Get("kinds")) {
		f.Kinds = append(f.Kinds, record.Kind(raw))
	}
	f.Tags = splitCSV(q.Get("tags"))
	f.DomainCategory = q.Get("category")
	f.TextQuery = q.Get("q")

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter.Filter{}, errors.New("invalid limit: " + raw)
		}
		f.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter.Filter{}, errors.New("invalid offset: " + raw)
		}
		f.Offset = offset
	}
	return f, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// --- error mapping ---

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusInsufficientStorage, "capacity_exceeded", err.Error())
	case errors.Is(err, domain.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", "storage backend unavailable")
	default:
		logpkg.FromContext(r.Context()).Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
