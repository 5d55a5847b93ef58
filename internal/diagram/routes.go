package diagram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers serves the diagram catalog, stateless renders and remote viewers.
type Handlers struct {
	Catalog  *Catalog
	Exporter *Exporter
	Sessions *Sessions
	// OnExport, if set, is called with the format of every successful export.
	OnExport func(format string)
	Log      zerolog.Logger
}

// RegisterRoutes mounts the diagram API routes.
func RegisterRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/diagrams", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{slug}", h.handleConfig)
		r.Get("/{slug}/render.{format}", h.handleRender)
		r.Post("/{slug}/viewer", h.handleCreateViewer)
	})
	r.Route("/api/viewers/{id}", func(r chi.Router) {
		r.Get("/", h.handleViewerState)
		r.Post("/events", h.handleEvents)
		r.Get("/render.{format}", h.handleViewerRender)
		r.Delete("/", h.handleRelease)
	})
}

func (h *Handlers) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"diagrams": h.Catalog.Slugs()})
}

func (h *Handlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.lookup(w, chi.URLParam(r, "slug"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) handleRender(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, ok := h.lookup(w, chi.URLParam(r, "slug"))
	if !ok {
		return
	}

	q := r.URL.Query()
	view := DefaultView()
	view.X = floatParam(q.Get("x"), view.X)
	view.Y = floatParam(q.Get("y"), view.Y)
	view.Scale = ClampScale(floatParam(q.Get("scale"), view.Scale))
	width, height := canvasSize(r)

	s := NewScene(cfg, view, width, height)
	if q.Has("layers") {
		vis, err := ParseVisibility(q.Get("layers"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s = s.WithLayers(vis)
	}
	if active := q.Get("active"); active != "" {
		s = s.WithActive(active)
	}
	h.export(w, r, f, s)
}

func (h *Handlers) handleCreateViewer(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.lookup(w, chi.URLParam(r, "slug"))
	if !ok {
		return
	}
	sess := h.Sessions.Create(cfg.Slug, cfg)
	h.Log.Debug().Str("viewer", sess.ID).Str("slug", cfg.Slug).Msg("viewer created")
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    sess.ID,
		"slug":  sess.Slug,
		"state": sess.Viewer.State(),
	})
}

func (h *Handlers) handleViewerState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": sess.ID, "slug": sess.Slug, "state": sess.Viewer.State()})
}

type eventsRequest struct {
	Events []Event `json:"events"`
}

func (h *Handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req eventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "Provide events[]")
		return
	}

	var st State
	for i, ev := range req.Events {
		var err error
		if st, err = sess.Viewer.Apply(ev); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("event %d: %v", i, err))
			return
		}
	}

	resp := map[string]any{"state": st}
	if target := sess.TakeNavigation(); target != "" {
		resp["navigate"] = target
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleViewerRender(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	width, height := canvasSize(r)
	h.export(w, r, f, sess.Viewer.Scene(width, height))
}

func (h *Handlers) handleRelease(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Sessions.Release(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) lookup(w http.ResponseWriter, slug string) (*Config, bool) {
	cfg, err := h.Catalog.Get(slug)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return cfg, true
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

// export buffers the whole file so a rasterizer failure can still be
// reported as a JSON error.
func (h *Handlers) export(w http.ResponseWriter, r *http.Request, f Format, s *Scene) {
	var buf bytes.Buffer
	if err := h.Exporter.Export(r.Context(), f, s, &buf); err != nil {
		h.Log.Error().Err(err).Str("format", string(f)).Msg("diagram export failed")
		writeError(w, http.StatusInternalServerError, "export failed: "+err.Error())
		return
	}
	if h.OnExport != nil {
		h.OnExport(string(f))
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, f.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func canvasSize(r *http.Request) (int, int) {
	q := r.URL.Query()
	return intParam(q.Get("width"), DefaultWidth), intParam(q.Get("height"), DefaultHeight)
}

func floatParam(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func intParam(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 || v > 4096 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
