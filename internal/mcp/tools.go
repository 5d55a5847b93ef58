package mcp

import "github.com/mark3labs/mcp-go/mcp"

var askSourcesTool = mcp.NewTool("ask_sources",
	mcp.WithDescription("Answer a GMP question from the official source pages (EMA, MHRA, PIC/S, ISO) by keyword ranking. Works without an LLM or embeddings."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Question or keywords; double-quote exact phrases"),
	),
	mcp.WithNumber("k",
		mcp.Description("Number of passages to return (default 5)"),
	),
)

var searchKnowledgeTool = mcp.NewTool("search_knowledge",
	mcp.WithDescription("Semantic search over the indexed GMP passages."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("k",
		mcp.Description("Number of passages to return (default 5)"),
	),
	mcp.WithString("sources",
		mcp.Description("Comma-separated source labels to restrict to, for example \"EMA,MHRA\""),
	),
)

var listDiagramsTool = mcp.NewTool("list_diagrams",
	mcp.WithDescription("List the HVAC and cleanroom diagrams with their hotspots."),
)

var describeHotspotTool = mcp.NewTool("describe_hotspot",
	mcp.WithDescription("Get the info panel text of one diagram hotspot."),
	mcp.WithString("slug",
		mcp.Required(),
		mcp.Description("Diagram slug"),
	),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Hotspot id"),
	),
)

var renderDiagramTool = mcp.NewTool("render_diagram",
	mcp.WithDescription("Render a diagram view as SVG markup."),
	mcp.WithString("slug",
		mcp.Required(),
		mcp.Description("Diagram slug"),
	),
	mcp.WithNumber("x", mcp.Description("Horizontal translation in pixels")),
	mcp.WithNumber("y", mcp.Description("Vertical translation in pixels")),
	mcp.WithNumber("scale", mcp.Description("Zoom factor between 0.4 and 4 (default 1)")),
	mcp.WithString("active", mcp.Description("Hotspot id whose info panel is drawn")),
)

var latestNewsTool = mcp.NewTool("latest_news",
	mcp.WithDescription("Latest regulatory news items of a feed category."),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Feed category, for example annex1, fda or gxp"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of items (default 10)"),
	),
)
