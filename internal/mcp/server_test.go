package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/annexlab/cleanroom/internal/config"
	"github.com/annexlab/cleanroom/internal/diagram"
	"github.com/annexlab/cleanroom/internal/feeds"
	"github.com/annexlab/cleanroom/internal/knowledge"
	"github.com/annexlab/cleanroom/internal/vectordb"
)

// mockStore implements vectordb.VectorStore for testing.
type mockStore struct {
	docs []vectordb.Document
}

func (m *mockStore) AddDocuments(_ context.Context, docs []vectordb.Document) error {
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *mockStore) Search(_ context.Context, _ string, limit int, _ *vectordb.SearchFilter) ([]vectordb.SearchResult, error) {
	var results []vectordb.SearchResult
	for _, doc := range m.docs {
		results = append(results, vectordb.SearchResult{Document: doc, Similarity: 0.95})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (m *mockStore) Delete(_ context.Context, _ ...string) error { return nil }
func (m *mockStore) Persist(_ context.Context, _ string) error   { return nil }
func (m *mockStore) Load(_ context.Context, _ string) error      { return nil }
func (m *mockStore) Count() int                                  { return len(m.docs) }

func callArgs(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := r.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content %T", c)
		return ""
	}
}

func testCatalog() *diagram.Catalog {
	cat := diagram.NewCatalog(zerolog.Nop())
	cat.Put(&diagram.Config{
		Slug:  "cleanroom",
		Title: "Cleanroom cascade",
		Hotspots: []diagram.Hotspot{
			{ID: "hepa", X: 100, Y: 100, Label: "HEPA filter", Description: "Terminal H14 filter.", Anchor: "filtration"},
			{ID: "door", X: 300, Y: 200, Label: "Door"},
		},
	})
	return cat
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool     mcp.Tool
		wantName string
	}{
		{askSourcesTool, "ask_sources"},
		{searchKnowledgeTool, "search_knowledge"},
		{listDiagramsTool, "list_diagrams"},
		{describeHotspotTool, "describe_hotspot"},
		{renderDiagramTool, "render_diagram"},
		{latestNewsTool, "latest_news"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	cat := testCatalog()
	srv := NewServer(Deps{Catalog: cat}, "test")
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.deps.Catalog != cat {
		t.Error("catalog not set correctly")
	}
}

func TestHandleAskSources(t *testing.T) {
	page := `<html><body><p>The cleanroom differential pressure between Grade B and Grade C areas should be monitored continuously and alarmed when it drops below the limit set in the contamination control strategy.</p></body></html>`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer upstream.Close()

	asker := knowledge.NewAsker([]config.KnowledgeSource{{Title: "EMA guidance", URL: upstream.URL, Type: "html", Source: "EMA"}}, zerolog.Nop())
	srv := NewServer(Deps{Asker: asker}, "test")

	result, err := srv.handleAskSources(context.Background(), callArgs(map[string]any{"query": "differential pressure"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "differential pressure") {
		t.Errorf("answer does not quote the passage: %q", text)
	}
	if !strings.Contains(text, "- EMA guidance <"+upstream.URL+">") {
		t.Errorf("citation missing: %q", text)
	}

	result, _ = srv.handleAskSources(context.Background(), callArgs(map[string]any{}))
	if !result.IsError {
		t.Error("expected error for missing query")
	}
}

func TestHandleSearchKnowledge(t *testing.T) {
	store := &mockStore{docs: []vectordb.Document{{
		ID:       "1",
		Content:  "Airlocks separate grades of different cleanliness.",
		Metadata: vectordb.DocumentMetadata{Source: "mhra", Title: "GMP guidance", URL: "https://example.org/gmp"},
	}}}
	srv := NewServer(Deps{Index: knowledge.NewIndex(store, "public", "", zerolog.Nop())}, "test")
	ctx := context.Background()

	t.Run("basic search", func(t *testing.T) {
		result, err := srv.handleSearchKnowledge(ctx, callArgs(map[string]any{"query": "airlock", "sources": "MHRA, EMA"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		if text := resultText(t, result); !strings.Contains(text, "MHRA - GMP guidance") {
			t.Errorf("citation missing: %q", text)
		}
	})

	t.Run("empty index", func(t *testing.T) {
		empty := NewServer(Deps{Index: knowledge.NewIndex(&mockStore{}, "public", "", zerolog.Nop())}, "test")
		result, _ := empty.handleSearchKnowledge(ctx, callArgs(map[string]any{"query": "anything"}))
		if result.IsError {
			t.Fatal("empty index should not be a tool error")
		}
		if !strings.Contains(resultText(t, result), "No results found") {
			t.Error("expected no-results message")
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		none := NewServer(Deps{}, "test")
		result, _ := none.handleSearchKnowledge(ctx, callArgs(map[string]any{"query": "anything"}))
		if !result.IsError {
			t.Error("expected error without a vector store")
		}
	})
}

func TestHandleDiagrams(t *testing.T) {
	srv := NewServer(Deps{Catalog: testCatalog()}, "test")
	ctx := context.Background()

	result, _ := srv.handleListDiagrams(ctx, callArgs(nil))
	if text := resultText(t, result); !strings.Contains(text, "cleanroom: Cleanroom cascade") || !strings.Contains(text, "- hepa (HEPA filter)") {
		t.Errorf("unexpected listing: %q", text)
	}

	result, _ = srv.handleDescribeHotspot(ctx, callArgs(map[string]any{"slug": "cleanroom", "id": "hepa"}))
	if text := resultText(t, result); text != "HEPA filter\n\nTerminal H14 filter.\n\nAnchor: filtration" {
		t.Errorf("unexpected panel: %q", text)
	}

	result, _ = srv.handleDescribeHotspot(ctx, callArgs(map[string]any{"slug": "cleanroom", "id": "door"}))
	if text := resultText(t, result); !strings.Contains(text, diagram.NoDescription) || !strings.HasSuffix(text, "Anchor: Door") {
		t.Errorf("unexpected panel: %q", text)
	}

	result, _ = srv.handleDescribeHotspot(ctx, callArgs(map[string]any{"slug": "cleanroom", "id": "nope"}))
	if !result.IsError {
		t.Error("expected error for unknown hotspot")
	}

	result, _ = srv.handleRenderDiagram(ctx, callArgs(map[string]any{"slug": "cleanroom", "scale": 2.0, "active": "hepa"}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	text := resultText(t, result)
	if !strings.HasPrefix(text, "<svg") || !strings.Contains(text, "scale(2)") || !strings.Contains(text, `data-id="hepa"`) {
		t.Errorf("unexpected svg: %.200s", text)
	}

	result, _ = srv.handleRenderDiagram(ctx, callArgs(map[string]any{"slug": "missing"}))
	if !result.IsError {
		t.Error("expected error for unknown diagram without default")
	}
}

func TestHandleLatestNews(t *testing.T) {
	rss := `<?xml version="1.0"?><rss version="2.0"><channel><title>EMA</title>
<item><title>Annex 1 Q&amp;A published</title><link>https://example.org/a</link><pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate></item>
<item><title>Older update</title><link>https://example.org/b</link><pubDate>Sun, 01 Mar 2026 10:00:00 GMT</pubDate></item>
</channel></rss>`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer upstream.Close()

	svc := feeds.NewService(config.FeedsConfig{
		TimeoutSeconds: 5,
		Categories:     map[string][]config.FeedSource{"annex1": {{Name: "EMA", URL: upstream.URL}}},
	}, nil, nil, zerolog.Nop())
	srv := NewServer(Deps{Feeds: svc}, "test")

	result, _ := srv.handleLatestNews(context.Background(), callArgs(map[string]any{"category": "annex1", "limit": 1}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	text := resultText(t, result)
	if !strings.HasPrefix(text, "1. Annex 1 Q&A published (EMA, 2026-03-02)") {
		t.Errorf("unexpected news: %q", text)
	}
	if strings.Contains(text, "Older update") {
		t.Error("limit not applied")
	}

	result, _ = srv.handleLatestNews(context.Background(), callArgs(map[string]any{"category": "unknown"}))
	if !result.IsError {
		t.Error("expected error for unknown category")
	}
}
