package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/annexlab/cleanroom/internal/diagram"
	"github.com/annexlab/cleanroom/internal/knowledge"
)

// handleAskSources ranks source passages against the query by keyword score.
func (s *Server) handleAskSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	if s.deps.Asker == nil {
		return mcp.NewToolResultError("source lookup is not configured"), nil
	}

	ans, err := s.deps.Asker.Ask(ctx, query, request.GetInt("k", knowledge.DefaultK))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAnswer(ans)), nil
}

// handleSearchKnowledge performs semantic search over the passage index.
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	var sources []string
	for _, src := range strings.Split(request.GetString("sources", ""), ",") {
		if src = strings.TrimSpace(src); src != "" {
			sources = append(sources, src)
		}
	}

	ans, err := s.deps.Index.Search(ctx, knowledge.SearchRequest{
		Q:       query,
		K:       request.GetInt("k", knowledge.DefaultK),
		Sources: sources,
	})
	if errors.Is(err, knowledge.ErrVectorUnavailable) {
		return mcp.NewToolResultError("Vector search is not available. Configure an embedding API key and run `cleanroom knowledge index`."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(ans.Citations) == 0 {
		return mcp.NewToolResultText("No results found. The index may be empty; run `cleanroom knowledge index` to build it."), nil
	}
	return mcp.NewToolResultText(formatAnswer(ans)), nil
}

// handleListDiagrams lists every loaded diagram with its hotspots.
func (s *Server) handleListDiagrams(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Catalog == nil {
		return mcp.NewToolResultError("no diagrams loaded"), nil
	}
	slugs := s.deps.Catalog.Slugs()
	if len(slugs) == 0 {
		return mcp.NewToolResultText("No diagrams loaded."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d diagram(s):\n", len(slugs))
	for _, slug := range slugs {
		d, err := s.deps.Catalog.Get(slug)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\n%s: %s\n", slug, d.Title)
		for _, h := range d.Hotspots {
			fmt.Fprintf(&sb, "  - %s (%s)\n", h.ID, h.Label)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleDescribeHotspot returns the panel text a learner sees on click.
func (s *Server) handleDescribeHotspot(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, res := s.diagram(request)
	if res != nil {
		return res, nil
	}
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	l := diagram.NewLayer(d.Hotspots, nil)
	if !l.Select(id) {
		return mcp.NewToolResultError(fmt.Sprintf("diagram %q has no hotspot %q", d.Slug, id)), nil
	}
	p, _ := l.Panel()
	h, _ := l.Active()
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s\n\nAnchor: %s", p.Label, p.Description, h.Target())), nil
}

// handleRenderDiagram renders one view of a diagram as SVG.
func (s *Server) handleRenderDiagram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, res := s.diagram(request)
	if res != nil {
		return res, nil
	}

	view := diagram.View{
		X:     request.GetFloat("x", 0),
		Y:     request.GetFloat("y", 0),
		Scale: diagram.ClampScale(request.GetFloat("scale", 1)),
	}
	scene := diagram.NewScene(d, view, 0, 0)
	if active := request.GetString("active", ""); active != "" {
		scene = scene.WithActive(active)
	}

	var sb strings.Builder
	if err := diagram.NewExporter(nil).Export(ctx, diagram.FormatSVG, scene, &sb); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleLatestNews lists the newest items of a feed category.
func (s *Server) handleLatestNews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: category"), nil
	}
	if s.deps.Feeds == nil {
		return mcp.NewToolResultError("news feeds are not configured"), nil
	}
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	items, err := s.deps.Feeds.Category(ctx, category, false)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetching %s: %v", category, err)), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No news in %s right now.", category)), nil
	}

	var sb strings.Builder
	for i, it := range items {
		if i >= limit {
			break
		}
		fmt.Fprintf(&sb, "%d. %s (%s, %s)\n   %s\n", i+1, it.Title, it.Source, it.Date.Format("2006-01-02"), it.Link)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) diagram(request mcp.CallToolRequest) (*diagram.Config, *mcp.CallToolResult) {
	slug, err := request.RequireString("slug")
	if err != nil {
		return nil, mcp.NewToolResultError("missing required parameter: slug")
	}
	if s.deps.Catalog == nil {
		return nil, mcp.NewToolResultError("no diagrams loaded")
	}
	d, err := s.deps.Catalog.Get(slug)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return d, nil
}

// formatAnswer renders an answer and its citations for agent consumption.
func formatAnswer(ans *knowledge.Answer) string {
	var sb strings.Builder
	sb.WriteString(ans.Answer)
	if len(ans.Citations) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, c := range ans.Citations {
			fmt.Fprintf(&sb, "- %s", c.Title)
			if c.URL != "" {
				fmt.Fprintf(&sb, " <%s>", c.URL)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
