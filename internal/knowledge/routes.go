package knowledge

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers serves the knowledge endpoints.
type Handlers struct {
	Asker *Asker
	Index *Index
}

// RegisterRoutes mounts the knowledge API routes.
func RegisterRoutes(r chi.Router, h *Handlers) {
	r.Post("/api/knowledge/ask", h.handleAsk)
	r.Post("/api/knowledge/search", h.handleSearch)
	r.Post("/api/knowledge/index", h.handleIndex)
	r.Get("/api/knowledge/sources", h.handleSources)
}

type askRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (h *Handlers) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	ans, err := h.Asker.Ask(r.Context(), req.Query, req.K)
	if errors.Is(err, ErrMissingQuery) {
		writeError(w, http.StatusBadRequest, "Missing query")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	ans, err := h.Index.Search(r.Context(), req)
	switch {
	case errors.Is(err, ErrMissingQuery):
		writeError(w, http.StatusBadRequest, "Missing q")
	case errors.Is(err, ErrVectorUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, ans)
	}
}

type indexRequest struct {
	Docs []Doc `json:"docs"`
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	n, err := h.Index.Upsert(r.Context(), req.Docs)
	switch {
	case errors.Is(err, ErrNoDocs):
		writeError(w, http.StatusBadRequest, "Provide docs[]")
	case errors.Is(err, ErrVectorUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": n})
	}
}

func (h *Handlers) handleSources(w http.ResponseWriter, r *http.Request) {
	type source struct {
		Key   string `json:"key"`
		Title string `json:"title"`
		URL   string `json:"url"`
		Type  string `json:"type"`
	}
	out := []source{}
	for _, s := range h.Asker.sources {
		out = append(out, source{Key: SourceKey(s.Source), Title: s.Title, URL: s.URL, Type: s.Type})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out, "indexed": h.Index.Count()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
