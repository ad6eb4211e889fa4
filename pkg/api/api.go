// Package api serves the host's view of the boards over HTTP: latest status,
// stored readings, alarm episodes, CSV export, pump predictions, the supply
// inventory and metrics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/itohio/fieldwatch/pkg/history"
	"github.com/itohio/fieldwatch/pkg/metrics"
	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// LatestCache is the read side of the latest-status cache.
type LatestCache interface {
	Latest(ctx context.Context, kind telemetry.Kind) (telemetry.Report, error)
}

// Status is the body of GET /api/v1/status/{kind}.
type Status struct {
	Source string           `json:"source"`
	Active bool             `json:"active"`
	Report telemetry.Report `json:"report"`
}

type Server struct {
	store    store.Store
	supplies store.Supplies
	history  history.Recorder
	cache    LatestCache
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// New creates a server. cache and m may be nil.
func New(st store.Store, h history.Recorder, cache LatestCache, m *metrics.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{store: st, history: h, cache: cache, metrics: m, log: log, now: time.Now}
}

// Router returns the routes without middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.Handle("/health", s.wrap("/health", s.health)).Methods(http.MethodGet)
	api := r.PathPrefix("/api/v1").Subrouter()
	// A subrouter reports a method mismatch as not found unless it has its own handler.
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.Handle("/status/{kind}", s.wrap("/api/v1/status", s.status)).Methods(http.MethodGet)
	api.Handle("/readings", s.wrap("/api/v1/readings", s.listReadings)).Methods(http.MethodGet)
	api.Handle("/readings/{id:[0-9]+}", s.wrap("/api/v1/readings/id", s.getReading)).Methods(http.MethodGet)
	api.Handle("/readings/{id:[0-9]+}", s.wrap("/api/v1/readings/id", s.patchReading)).Methods(http.MethodPatch)
	api.Handle("/readings/{id:[0-9]+}", s.wrap("/api/v1/readings/id", s.deleteReading)).Methods(http.MethodDelete)
	api.Handle("/episodes", s.wrap("/api/v1/episodes", s.episodes)).Methods(http.MethodGet)
	api.Handle("/export.csv", s.wrap("/api/v1/export.csv", s.exportCSV)).Methods(http.MethodGet)
	api.Handle("/predict", s.wrap("/api/v1/predict", s.predict)).Methods(http.MethodGet)
	if s.supplies != nil {
		s.supplyRoutes(api)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// Handler returns the router with access logging to out and panic recovery.
func (s *Server) Handler(out io.Writer) http.Handler {
	return handlers.LoggingHandler(out, handlers.RecoveryHandler()(s.Router()))
}

func (s *Server) wrap(route string, h http.HandlerFunc) http.Handler {
	return s.metrics.WrapHandler(route, h)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.store.List(ctx, store.Filter{Limit: 1}); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	kind := telemetry.Kind(mux.Vars(r)["kind"])
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	if s.cache != nil {
		rep, err := s.cache.Latest(r.Context(), kind)
		if err == nil {
			s.metrics.CacheHit()
			writeJSON(w, http.StatusOK, Status{Source: "cache", Active: rep.Active(), Report: rep})
			return
		}
		s.metrics.CacheMiss()
		s.log.Debug("cache lookup failed", "kind", kind, "error", err)
	}

	rep, ok := s.history.Latest(kind)
	if !ok {
		writeError(w, http.StatusNotFound, "no report yet")
		return
	}
	writeJSON(w, http.StatusOK, Status{Source: "history", Active: rep.Active(), Report: rep})
}

func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.store.List(r.Context(), f)
	if err != nil {
		s.internalError(w, "list failed", err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(records), "items": records})
}

func (s *Server) getReading(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type patchRequest struct {
	Notes *string `json:"notes"`
}

func (s *Server) patchReading(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var req patchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Notes == nil {
		writeError(w, http.StatusBadRequest, "notes is required")
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	rec.Notes = *req.Notes
	if err := s.store.Update(r.Context(), rec); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteReading(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) episodes(w http.ResponseWriter, r *http.Request) {
	kind := telemetry.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	items := []history.Episode{}
	for _, e := range s.history.Episodes() {
		if kind == "" || e.Kind == kind {
			items = append(items, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(items), "items": items})
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if _, err := store.ExportCSV(r.Context(), s.store, &buf, f); err != nil {
		s.internalError(w, "export failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.internalError(w, "store failed", err)
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// parseFilter reads kind, since, until (RFC3339), active and limit.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter

	if k := q.Get("kind"); k != "" {
		f.Kind = telemetry.Kind(k)
		if !f.Kind.Valid() {
			return f, errors.New("unknown kind")
		}
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid " + p.name + "; use RFC3339")
		}
		*p.dst = t
	}
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("invalid active")
		}
		f.ActiveOnly = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
