package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annexlab/cleanroom/internal/db"
	"github.com/annexlab/cleanroom/internal/llm"
)

type fakeProvider struct {
	mu    sync.Mutex
	reqs  []llm.CompletionRequest
	reply string
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply, Model: "fake-1", InputTokens: 40, OutputTokens: 2}, nil
}

func newTestService(t *testing.T, p llm.Provider) (*Service, *Store) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	slot := llm.NewSlot(p, func(string) (llm.Provider, error) { return &fakeProvider{reply: "configured"}, nil })
	return NewService(slot, store, nil, zerolog.Nop(), DefaultOptions()), store
}

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, svc)
	return r
}

func TestBuildMessages(t *testing.T) {
	long := strings.Repeat("x", 400)
	msgs := BuildMessages([]Turn{
		{Role: "user", Content: "What is Grade A?"},
		{Role: "assistant", Content: "ISO 5."},
		{Role: "user", Content: "And at rest?"},
	}, Context{
		Sources: []Source{{Source: "annex1", Title: "EU GMP Annex 1", Text: long}},
		Lesson:  "Cleanroom classification",
	})

	require.Len(t, msgs, 4)
	sys := msgs[0]
	assert.Equal(t, llm.RoleSystem, sys.Role)
	assert.True(t, strings.HasPrefix(sys.Content, "You are Professor Annex"))
	assert.Contains(t, sys.Content, "1. [ANNEX1] EU GMP Annex 1")
	assert.Contains(t, sys.Content, strings.Repeat("x", 300)+"...")
	assert.NotContains(t, sys.Content, strings.Repeat("x", 301))
	assert.Contains(t, sys.Content, "Current lesson: Cleanroom classification")

	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "And at rest?", msgs[3].Content)
}

func TestBuildMessagesWithoutContext(t *testing.T) {
	msgs := BuildMessages([]Turn{{Role: "user", Content: "hi"}}, Context{})
	assert.NotContains(t, msgs[0].Content, "Relevant sources")
	assert.NotContains(t, msgs[0].Content, "Current lesson")
}

func TestReplyUsesGenerationSettings(t *testing.T) {
	p := &fakeProvider{reply: "  **Grade A** is ISO 5.  "}
	svc, _ := newTestService(t, p)

	reply, err := svc.Reply(context.Background(), Request{Messages: []Turn{{Role: "user", Content: "Grade A?"}}})
	require.NoError(t, err)

	assert.Equal(t, "**Grade A** is ISO 5.", reply.Answer)
	assert.Contains(t, reply.HTML, "<strong>Grade A</strong>")
	assert.Equal(t, "fake-1", reply.Model)
	assert.Equal(t, 42, reply.TokensUsed)

	req := p.reqs[0]
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 0.9, req.TopP)
	assert.Equal(t, 40, req.TopK)
	assert.Equal(t, 2048, req.MaxTokens)
}

func TestReplyHighlightsCode(t *testing.T) {
	p := &fakeProvider{reply: "Use:\n\n```go\nfmt.Println(\"ok\")\n```\n\n| Grade | ISO |\n|---|---|\n| A | 5 |"}
	svc, _ := newTestService(t, p)

	reply, err := svc.Reply(context.Background(), Request{Messages: []Turn{{Role: "user", Content: "code?"}}})
	require.NoError(t, err)
	assert.Contains(t, reply.HTML, "<pre")
	assert.Contains(t, reply.HTML, "style=")
	assert.Contains(t, reply.HTML, "<table>")
}

func TestReplyPersistsTranscript(t *testing.T) {
	svc, store := newTestService(t, &fakeProvider{reply: "Answer one"})
	ctx := context.Background()

	reply, err := svc.Reply(ctx, Request{
		Messages: []Turn{{Role: "user", Content: "Question one"}},
		Context:  Context{Lesson: "Airlocks"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, reply.SessionID)

	sess, err := store.GetSession(ctx, reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Airlocks", sess.Lesson)

	_, err = svc.Reply(ctx, Request{
		SessionID: reply.SessionID,
		Messages: []Turn{
			{Role: "user", Content: "Question one"},
			{Role: "assistant", Content: "Answer one"},
			{Role: "user", Content: "Question two"},
		},
	})
	require.NoError(t, err)

	msgs, err := svc.Transcript(ctx, reply.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[2].Role)
	assert.Equal(t, "Question two", msgs[2].Content)

	_, err = svc.Transcript(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{ErrNoMessages, 400, "Missing messages array"},
		{llm.ErrNotConfigured, 503, "Chat mode not available"},
		{errors.Join(llm.ErrRateLimited, errors.New("429")), 429, "Too many requests"},
		{llm.ErrQuotaExceeded, 429, "Daily limit"},
		{errors.New("boom"), 500, "Chat error: boom"},
	}
	for _, tt := range tests {
		status, msg := HTTPError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Contains(t, msg, tt.msg)
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	h := newTestRouter(func() *Service { s, _ := newTestService(t, &fakeProvider{reply: "ok"}); return s }())

	w := postJSON(t, h, "/api/chat", map[string]any{"messages": []Turn{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing messages array")

	w = postJSON(t, h, "/api/chat", map[string]any{"messages": []Turn{{Role: "user", Content: "hi"}}})
	require.Equal(t, http.StatusOK, w.Code)
	var reply Reply
	require.NoError(t, json.NewDecoder(w.Body).Decode(&reply))
	assert.Equal(t, "ok", reply.Answer)
}

func TestChatEndpointUnavailableThenConfigured(t *testing.T) {
	svc, _ := newTestService(t, nil)
	h := newTestRouter(svc)

	w := postJSON(t, h, "/api/chat", map[string]any{"messages": []Turn{{Role: "user", Content: "hi"}}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotEmpty(t, body["hint"])

	w = postJSON(t, h, "/api/chat/config", map[string]string{"apiKey": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Provide apiKey")

	w = postJSON(t, h, "/api/chat/config", map[string]string{"apiKey": "a-much-longer-key"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true, "chat": true}`, w.Body.String())

	w = postJSON(t, h, "/api/chat", map[string]any{"messages": []Turn{{Role: "user", Content: "hi"}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "configured")
}

func TestChatEndpointRateLimited(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{err: llm.ErrRateLimited})
	w := postJSON(t, newTestRouter(svc), "/api/chat", map[string]any{"messages": []Turn{{Role: "user", Content: "hi"}}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "15 requests per minute")
}

func TestChatEndpointThrottlesSixteenthRequest(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	svc, _ := newTestService(t, llm.NewThrottled(p, 15))
	h := newTestRouter(svc)
	body := map[string]any{"messages": []Turn{{Role: "user", Content: "hi"}}}

	for i := 0; i < 15; i++ {
		require.Equal(t, http.StatusOK, postJSON(t, h, "/api/chat", body).Code, "request %d", i+1)
	}
	w := postJSON(t, h, "/api/chat", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "15 requests per minute")
	assert.Len(t, p.reqs, 15)
}

func TestWebSocketConversation(t *testing.T) {
	p := &fakeProvider{reply: "Hello from the tutor"}
	svc, _ := newTestService(t, p)
	srv := httptest.NewServer(newTestRouter(svc))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "message", Content: "first"}))
	var out wsMessage
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "response", out.Type)
	assert.Equal(t, "Hello from the tutor", out.Content)
	assert.NotEmpty(t, out.SessionID)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "message", Content: "second"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "response", out.Type)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "bogus"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "error", out.Type)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.reqs, 2)
	// system + first + answer + second
	assert.Len(t, p.reqs[1].Messages, 4)
}

func TestTrimHistory(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "1"}, {Role: "assistant", Content: "a1"},
		{Role: "user", Content: "2"}, {Role: "assistant", Content: "a2"},
		{Role: "user", Content: "3"}, {Role: "assistant", Content: "a3"},
	}
	assert.Equal(t, turns[2:], trimHistory(turns, 4))
	assert.Equal(t, turns[4:], trimHistory(turns, 3))
	assert.Equal(t, turns, trimHistory(turns, 0))
	assert.Equal(t, turns, trimHistory(turns, 10))
}

func newWebSocketTutor(t *testing.T, p llm.Provider, opts Options) *websocket.Conn {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	svc := NewService(llm.NewSlot(p, nil), NewStore(database), nil, zerolog.Nop(), opts)
	srv := httptest.NewServer(newTestRouter(svc))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/chat/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketHistoryIsCapped(t *testing.T) {
	p := &fakeProvider{reply: "noted"}
	opts := DefaultOptions()
	opts.HistoryTurns = 4
	conn := newWebSocketTutor(t, p, opts)

	var out wsMessage
	for _, q := range []string{"one", "two", "three", "four"} {
		require.NoError(t, conn.WriteJSON(wsMessage{Type: "message", Content: q}))
		require.NoError(t, conn.ReadJSON(&out))
		require.Equal(t, "response", out.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.reqs, 4)
	last := p.reqs[3].Messages
	// system + two earlier turns + the new question
	require.Len(t, last, 4)
	assert.Equal(t, "three", last[1].Content)
	assert.Equal(t, "four", last[3].Content)
}

func TestWebSocketRejectsOversizedFrame(t *testing.T) {
	opts := DefaultOptions()
	opts.ReadLimit = 512
	conn := newWebSocketTutor(t, &fakeProvider{reply: "ok"}, opts)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "message", Content: strings.Repeat("x", 2048)}))
	var out wsMessage
	assert.Error(t, conn.ReadJSON(&out))
}

func TestWebSocketIdleTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.IdleTimeout = 50 * time.Millisecond
	conn := newWebSocketTutor(t, &fakeProvider{reply: "ok"}, opts)

	start := time.Now()
	require.NoError(t, conn.SetReadDeadline(start.Add(5*time.Second)))
	var out wsMessage
	assert.Error(t, conn.ReadJSON(&out))
	assert.Less(t, time.Since(start), 2*time.Second)
}
