package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

// DefaultRequestTimeout bounds one HTTP request.
const DefaultRequestTimeout = 10 * time.Second

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Suggester is the part of suggest.Service the HTTP surface drives.
type Suggester interface {
	GetSuggestions(ctx context.Context, projects []string, q suggest.Query, text suggest.TextQuery) []suggest.LookupResult
	OnSearch(projects []string, text suggest.TextQuery)
	IncreaseSearchCount(project string, term suggest.Term, weight int)
	Config() *config.Config
	Status() suggest.Status
}

// PopularityRequest adds weight to a term's most-popular count, typically
// after the user picked a suggestion.
type PopularityRequest struct {
	Project string `json:"project"`
	Field   string `json:"field"`
	Term    string `json:"term"`
	// Weight defaults to 1.
	Weight int `json:"weight,omitempty"`
}

// SearchEventRequest reports an executed search.
type SearchEventRequest struct {
	Projects []string `json:"projects"`
	Query    string   `json:"q"`
}

type handler struct {
	svc Suggester
	now func() time.Time
}

// NewHandler returns the suggester HTTP routes.
func NewHandler(svc Suggester) http.Handler {
	h := &handler{svc: svc, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(DefaultRequestTimeout))

	r.Get("/healthz", h.handleHealth)
	r.Route("/api/v1/suggest", func(r chi.Router) {
		r.Get("/", h.handleSuggest)
		r.Get("/config", h.handleConfig)
		r.Post("/popularity", h.handlePopularity)
		r.Post("/search-events", h.handleSearchEvent)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := h.svc.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  st.State,
	})
}

// handleSuggest answers GET /api/v1/suggest?projects=a&projects=b&field=content&prefix=par&q=...
// Disallowed or too-short requests yield an empty list, not an error.
func (h *handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	sc := &h.svc.Config().Suggester
	if !sc.Enabled {
		writeError(w, http.StatusNotFound, "suggester is disabled")
		return
	}

	q := suggest.Query{
		Field:  params.Get("field"),
		Prefix: params.Get("prefix"),
	}
	if q.Field == "" {
		q.Field = "content"
	}
	queryText := params.Get("q")
	text := ParseQueryText(queryText)

	started := h.now()
	results := h.svc.GetSuggestions(r.Context(), projectsParam(params["projects"]), q, text)
	writeJSON(w, http.StatusOK, NewReply(sc, results, queryText, h.now().Sub(started)))
}

// projectsParam accepts repeated and comma-separated values.
func projectsParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (h *handler) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewConfigView(&h.svc.Config().Suggester))
}

func (h *handler) handlePopularity(w http.ResponseWriter, r *http.Request) {
	var req PopularityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Term) == "" {
		writeError(w, http.StatusBadRequest, "term is required")
		return
	}
	cfg := h.svc.Config()
	if cfg.ProjectsEnabled && !cfg.HasProject(req.Project) {
		writeError(w, http.StatusBadRequest, "unknown project "+strconv.Quote(req.Project))
		return
	}
	if !cfg.Suggester.AllowMostPopular {
		writeError(w, http.StatusConflict, "most popular statistics are disabled")
		return
	}
	if req.Weight == 0 {
		req.Weight = 1
	}

	h.svc.IncreaseSearchCount(req.Project, suggest.Term{Field: req.Field, Text: req.Term}, req.Weight)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleSearchEvent(w http.ResponseWriter, r *http.Request) {
	var req SearchEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.svc.OnSearch(req.Projects, ParseQueryText(req.Query))
	w.WriteHeader(http.StatusAccepted)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(started)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
