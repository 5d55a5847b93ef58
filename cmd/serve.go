package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/capability"
	"github.com/annexlab/cleanroom/internal/chat"
	"github.com/annexlab/cleanroom/internal/diagram"
	"github.com/annexlab/cleanroom/internal/feeds"
	"github.com/annexlab/cleanroom/internal/knowledge"
	"github.com/annexlab/cleanroom/internal/logging"
	"github.com/annexlab/cleanroom/internal/metrics"
	"github.com/annexlab/cleanroom/internal/server"
)

var (
	serveAddr        string
	viewerIdle       time.Duration
	shutdownDeadline = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the cleanroom HTTP API: diagram rendering and remote viewers, news
feeds, knowledge search, tutor chat and visual resolution.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().DurationVar(&viewerIdle, "viewer-idle", 30*time.Minute, "release remote viewers idle for this long")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	m := metrics.New()

	catalog, err := loadCatalog(cfg, log)
	if err != nil {
		return err
	}
	sessions := diagram.NewSessions(m.SetViewers)
	go sessions.Run(ctx, time.Minute, viewerIdle)

	chatSvc := chat.NewService(createChatSlot(cfg, log), chat.NewStore(database), m, log, chatOptions(cfg))
	feedSvc := feeds.NewService(cfg.Feeds, feeds.NewCache(database), m, log)
	index := openKnowledgeIndex(ctx, cfg, m, log)
	visuals := capability.NewResolver(cfg.Visuals, os.DirFS(cfg.Server.AssetsDir), server.AssetsPrefix,
		&http.Client{Timeout: capability.DefaultProbeTimeout})

	srv := server.New(cfg.Server, server.Deps{
		Chat:      chatSvc,
		Feeds:     feedSvc,
		Knowledge: &knowledge.Handlers{Asker: knowledge.NewAsker(cfg.Knowledge.Sources, log), Index: index},
		Diagrams: &diagram.Handlers{
			Catalog:  catalog,
			Exporter: diagram.NewExporter(nil),
			Sessions: sessions,
			OnExport: m.IncExport,
			Log:      log,
		},
		Visuals: visuals,
		Metrics: m,
		Log:     log,
	})

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	fmt.Fprintf(os.Stderr, "%s cleanroom %s on %s\n", success("▶"), Version, cfg.Server.Addr)
	fmt.Fprintf(os.Stderr, "  %s %d\n", faint("Diagrams:"), len(catalog.Slugs()))
	fmt.Fprintf(os.Stderr, "  %s %s\n", faint("Chat:"), availability(chatSvc.Available()))
	fmt.Fprintf(os.Stderr, "  %s %s (%d passages)\n", faint("Vector search:"), availability(index.Available()), index.Count())

	return srv.Start()
}

func availability(ok bool) string {
	if ok {
		return success("enabled")
	}
	return warning("disabled")
}
