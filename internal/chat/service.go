package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"

	"github.com/annexlab/cleanroom/internal/llm"
	"github.com/annexlab/cleanroom/internal/metrics"
)

// ErrNoMessages is returned for a request without conversation turns.
var ErrNoMessages = errors.New("missing messages array")

const (
	rateLimitMessage = "Too many requests. The free tier allows 15 requests per minute; try again in a minute."
	quotaMessage     = "Daily limit reached. Try again tomorrow or use simple mode."
	unavailableHint  = "Get a free key at https://aistudio.google.com/app/apikey"
)

// Options tune the generation settings of a Service.
type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int

	// Websocket limits: turns of history kept per connection, largest
	// accepted frame, and how long to wait for the next frame or a write.
	HistoryTurns int
	ReadLimit    int64
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultOptions returns the tutor's generation settings.
func DefaultOptions() Options {
	return Options{
		Temperature:  0.7,
		TopP:         0.9,
		TopK:         40,
		MaxTokens:    2048,
		HistoryTurns: 20,
		ReadLimit:    64 << 10,
		IdleTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Second,
	}
}

// Service answers chat requests with the provider in its slot.
type Service struct {
	slot    *llm.Slot
	store   *Store
	metrics *metrics.Metrics
	log     zerolog.Logger
	opts    Options
	md      goldmark.Markdown
}

// NewService creates a chat service. store and m may be nil.
func NewService(slot *llm.Slot, store *Store, m *metrics.Metrics, log zerolog.Logger, opts Options) *Service {
	return &Service{
		slot:    slot,
		store:   store,
		metrics: m,
		log:     log.With().Str("component", "chat").Logger(),
		opts:    opts,
		md: goldmark.New(goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle("github")),
		)),
	}
}

// Slot returns the provider slot so callers can reconfigure it.
func (s *Service) Slot() *llm.Slot { return s.slot }

// Available reports whether a provider is configured.
func (s *Service) Available() bool { return s.slot.Available() }

// Reply generates the next assistant turn for req. When a store is attached
// and req names a session, the newest user turn and the answer are appended
// to it; an empty session id starts a new session.
func (s *Service) Reply(ctx context.Context, req Request) (*Reply, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}
	if !s.slot.Available() {
		s.metrics.IncChat("unavailable")
		return nil, llm.ErrNotConfigured
	}

	resp, err := s.slot.Complete(ctx, llm.CompletionRequest{
		Messages:    BuildMessages(req.Messages, req.Context),
		Temperature: s.opts.Temperature,
		TopP:        s.opts.TopP,
		TopK:        s.opts.TopK,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		s.metrics.IncChat(outcome(err))
		s.log.Error().Err(err).Msg("generation failed")
		return nil, err
	}
	s.metrics.IncChat("ok")

	answer := strings.TrimSpace(resp.Content)
	tokens := resp.TotalTokens()
	if tokens == 0 {
		tokens = llm.EstimateTokens(answer)
	}
	reply := &Reply{
		Answer:     answer,
		HTML:       s.renderHTML(answer),
		Model:      resp.Model,
		TokensUsed: tokens,
	}

	if s.store != nil {
		id, err := s.record(ctx, req, answer)
		if err != nil {
			s.log.Warn().Err(err).Msg("saving transcript")
		}
		reply.SessionID = id
	}
	return reply, nil
}

func (s *Service) record(ctx context.Context, req Request, answer string) (string, error) {
	id := req.SessionID
	if id == "" {
		sess, err := s.store.CreateSession(ctx, req.Context.Lesson)
		if err != nil {
			return "", err
		}
		id = sess.ID
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role == "user" {
		if _, err := s.store.AddMessage(ctx, id, "user", last.Content); err != nil {
			return id, err
		}
	}
	_, err := s.store.AddMessage(ctx, id, "assistant", answer)
	return id, err
}

// Transcript returns the stored messages of a session.
func (s *Service) Transcript(ctx context.Context, id string) ([]StoredMessage, error) {
	if s.store == nil {
		return nil, ErrSessionNotFound
	}
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, id)
}

func (s *Service) renderHTML(md string) string {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(md), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, llm.ErrQuotaExceeded):
		return "quota"
	default:
		return "error"
	}
}

// HTTPError maps a Reply failure to a status code and a user-facing message.
func HTTPError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNoMessages):
		return http.StatusBadRequest, "Missing messages array"
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Chat mode not available. Set GOOGLE_GEMINI_API_KEY or configure a key via /api/chat/config"
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, rateLimitMessage
	case errors.Is(err, llm.ErrQuotaExceeded):
		return http.StatusTooManyRequests, quotaMessage
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The model did not answer in time"
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Chat error: %v", err)
	}
}
