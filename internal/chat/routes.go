package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// RegisterRoutes mounts the chat API routes.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", handleChat(svc))
		r.Post("/config", handleConfig(svc))
		r.Get("/info", handleInfo(svc))
		r.Get("/ws", handleWebSocket(svc))
		r.Get("/sessions/{id}/messages", handleMessages(svc))
	})
}

func handleChat(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		reply, err := svc.Reply(r.Context(), req)
		if err != nil {
			writeReplyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func writeReplyError(w http.ResponseWriter, err error) {
	status, msg := HTTPError(err)
	if status == http.StatusServiceUnavailable {
		writeJSON(w, status, map[string]string{"error": msg, "hint": unavailableHint})
		return
	}
	writeError(w, status, msg)
}

type configRequest struct {
	APIKey string `json:"apiKey"`
}

func handleConfig(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req configRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if err := svc.Slot().Configure(req.APIKey); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Provide apiKey"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "chat": svc.Available()})
	}
}

func handleInfo(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": svc.Available(),
			"provider":  svc.Slot().Name(),
			"limits": map[string]int{
				"maxOutputTokens": svc.opts.MaxTokens,
			},
		})
	}
}

func handleMessages(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := svc.Transcript(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if msgs == nil {
			msgs = []StoredMessage{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the WebSocket frame format in both directions.
type wsMessage struct {
	Type      string  `json:"type"` // "message", "response" or "error"
	SessionID string  `json:"session_id,omitempty"`
	Content   string  `json:"content,omitempty"`
	HTML      string  `json:"html,omitempty"`
	Context   Context `json:"context,omitempty"`
}

// handleWebSocket keeps a running conversation per connection. Each
// "message" frame appends a user turn and is answered with a "response"
// frame carrying the assistant turn. Only the latest Options.HistoryTurns
// turns are sent to the model.
func handleWebSocket(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			svc.log.Warn().Err(err).Msg("websocket upgrade")
			return
		}
		defer conn.Close()
		if svc.opts.ReadLimit > 0 {
			conn.SetReadLimit(svc.opts.ReadLimit)
		}

		var history []Turn
		sessionID := ""
		for {
			svc.extendDeadline(conn.SetReadDeadline, svc.opts.IdleTimeout)
			var in wsMessage
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					svc.log.Warn().Err(err).Msg("websocket read")
				}
				return
			}
			if in.Type != "message" {
				svc.send(conn, wsMessage{Type: "error", SessionID: sessionID, Content: "unknown message type: " + in.Type})
				continue
			}
			if in.Content == "" {
				svc.send(conn, wsMessage{Type: "error", SessionID: sessionID, Content: "content is required"})
				continue
			}
			if sessionID == "" {
				sessionID = in.SessionID
			}

			history = trimHistory(append(history, Turn{Role: "user", Content: in.Content}), svc.opts.HistoryTurns)
			reply, err := svc.Reply(r.Context(), Request{SessionID: sessionID, Messages: history, Context: in.Context})
			if err != nil {
				history = history[:len(history)-1]
				_, msg := HTTPError(err)
				svc.send(conn, wsMessage{Type: "error", SessionID: sessionID, Content: msg})
				continue
			}
			if reply.SessionID != "" {
				sessionID = reply.SessionID
			}
			history = append(history, Turn{Role: "assistant", Content: reply.Answer})
			svc.send(conn, wsMessage{Type: "response", SessionID: sessionID, Content: reply.Answer, HTML: reply.HTML})
		}
	}
}

// trimHistory keeps the last limit turns, starting on a user turn.
func trimHistory(history []Turn, limit int) []Turn {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	history = history[len(history)-limit:]
	for len(history) > 0 && history[0].Role != "user" {
		history = history[1:]
	}
	return history
}

// extendDeadline sets a deadline d from now, or clears it when d is zero.
func (s *Service) extendDeadline(set func(time.Time) error, d time.Duration) {
	var at time.Time
	if d > 0 {
		at = time.Now().Add(d)
	}
	if err := set(at); err != nil {
		s.log.Debug().Err(err).Msg("websocket deadline")
	}
}

func (s *Service) send(conn *websocket.Conn, m wsMessage) {
	s.extendDeadline(conn.SetWriteDeadline, s.opts.WriteTimeout)
	if err := conn.WriteJSON(m); err != nil {
		s.log.Warn().Err(err).Msg("websocket write")
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
