// Package api exposes a watchlist over HTTP as JSON, plus liveness and
// Prometheus endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/watchlist/internal/metrics"
	"github.com/mesh-intelligence/watchlist/internal/view"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// Service is the watchlist surface served over HTTP.
type Service interface {
	ListView(genre string, order view.SortOrder) []types.Record
	Genres() []string
	Get(id string) (types.Record, error)
	Loaded() bool
	AddRecord(ctx context.Context, title, genre, review, rating string) (types.Record, error)
	UpdateRecord(ctx context.Context, id string, changes types.Changes) (types.Record, error)
	ToggleWatched(ctx context.Context, id string) (types.Record, error)
	RemoveRecord(ctx context.Context, id string) error
	Refresh(ctx context.Context) error
	PosterURL(ctx context.Context, id string) (string, error)
}

// Handler serves the watchlist API.
type Handler struct {
	svc Service
	log logrus.FieldLogger
}

// NewHandler returns a handler for svc.
func NewHandler(svc Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log.WithField("component", "api")}
}

// Router builds the chi router with logging and metrics middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(h.log), instrument)

	r.Get("/health/live", h.live)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", h.list)
		r.Post("/records", h.add)
		r.Get("/records/{id}", h.get)
		r.Patch("/records/{id}", h.update)
		r.Delete("/records/{id}", h.remove)
		r.Post("/records/{id}/toggle", h.toggle)
		r.Get("/records/{id}/poster", h.poster)
		r.Post("/refresh", h.refresh)
		r.Get("/genres", h.genres)
	})
	return r
}

type listResponse struct {
	Records []types.Record `json:"records"`
	Loaded  bool           `json:"loaded"`
}

// addRequest carries raw form input. Rating may be a JSON number or string.
type addRequest struct {
	Title  string `json:"title"`
	Genre  string `json:"genre"`
	Review string `json:"review"`
	Rating any    `json:"rating"`
}

type posterResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	order, err := view.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Records: h.svc.ListView(r.URL.Query().Get("genre"), order),
		Loaded:  h.svc.Loaded(),
	})
}

func (h *Handler) genres(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"genres": h.svc.Genres()})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "malformed JSON body")
		return
	}
	rec, err := h.svc.AddRecord(r.Context(), req.Title, req.Genre, req.Review, ratingInput(req.Rating))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "malformed JSON body")
		return
	}
	changes := make(types.Changes, len(body))
	for k, v := range body {
		changes[types.Field(k)] = v
	}
	rec, err := h.svc.UpdateRecord(r.Context(), chi.URLParam(r, "id"), changes)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ToggleWatched(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Records: h.svc.ListView("", view.SortDefault),
		Loaded:  h.svc.Loaded(),
	})
}

func (h *Handler) poster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.svc.PosterURL(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posterResponse{ID: id, URL: u})
}

// fail writes the error body for err.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("code", code).Warn("request failed")
	}
	writeError(w, status, code, err.Error())
}

// ratingInput turns a decoded JSON rating into the raw text the watchlist
// parses.
func ratingInput(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	default:
		return fmt.Sprint(r)
	}
}
