package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/feeds"
	"github.com/annexlab/cleanroom/internal/knowledge"
	"github.com/annexlab/cleanroom/internal/logging"
	mcpserver "github.com/annexlab/cleanroom/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing source lookup,
vector search, diagram and news tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Stdout carries the protocol; logs go to stderr.
		log := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		catalog, err := loadCatalog(cfg, log)
		if err != nil {
			return err
		}
		index := openKnowledgeIndex(cmd.Context(), cfg, nil, log)

		fmt.Fprintf(os.Stderr, "cleanroom MCP server started on stdio (diagrams=%d, passages=%d)\n", len(catalog.Slugs()), index.Count())

		srv := mcpserver.NewServer(mcpserver.Deps{
			Asker:   knowledge.NewAsker(cfg.Knowledge.Sources, log),
			Index:   index,
			Catalog: catalog,
			Feeds:   feeds.NewService(cfg.Feeds, feeds.NewCache(database), nil, log),
		}, Version)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
