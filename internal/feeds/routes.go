package feeds

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the feed API routes.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/api/rss", func(r chi.Router) {
		r.Get("/all", handleAll(svc))
		r.Post("/read", handleMarkRead(svc, false))
		r.Post("/items/{id}/read", handleMarkItemRead(svc))
		r.Get("/{category}", handleCategory(svc))
		r.Post("/{category}/read", handleMarkRead(svc, true))
	})
}

func forceRefresh(r *http.Request) bool {
	return r.URL.Query().Get("refresh") == "1" || r.URL.Query().Get("refresh") == "true"
}

func handleCategory(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Category(r.Context(), chi.URLParam(r, "category"), forceRefresh(r))
		if errors.Is(err, ErrUnknownCategory) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleAll(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := svc.All(r.Context(), forceRefresh(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func handleMarkRead(svc *Service, scoped bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := ""
		if scoped {
			category = chi.URLParam(r, "category")
		}
		n, err := svc.MarkRead(r.Context(), category)
		if errors.Is(err, ErrUnknownCategory) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": n})
	}
}

func handleMarkItemRead(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := svc.MarkItemRead(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
