package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/feeds"
)

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Regulatory news feeds",
}

var (
	feedsRefresh bool
	feedsJSON    bool
	feedsLimit   int
)

var feedsFetchCmd = &cobra.Command{
	Use:   "fetch [category...]",
	Short: "Fetch and cache feed categories (all when none are given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		svc := feeds.NewService(cfg.Feeds, feeds.NewCache(database), nil, log)
		categories := args
		if len(categories) == 0 {
			categories = svc.Categories()
		}

		listing := make(map[string][]feeds.Item, len(categories))
		for _, c := range categories {
			items, err := svc.Category(cmd.Context(), c, feedsRefresh)
			if err != nil {
				return err
			}
			listing[c] = items
		}

		if feedsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(listing)
		}
		for _, c := range categories {
			items := listing[c]
			fmt.Printf("%s %s\n", success(c), faint(fmt.Sprintf("(%d items)", len(items))))
			for i, it := range items {
				if feedsLimit > 0 && i >= feedsLimit {
					break
				}
				marker := " "
				if !it.Read {
					marker = warning("•")
				}
				fmt.Printf(" %s %s  %s %s\n", marker, it.Date.Format("2006-01-02"), it.Title, faint("["+it.Source+"]"))
			}
		}
		return nil
	},
}

var feedsReadCmd = &cobra.Command{
	Use:   "read [category]",
	Short: "Mark a category, or every category, as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		svc := feeds.NewService(cfg.Feeds, feeds.NewCache(database), nil, cliLogger(cfg))
		category := ""
		if len(args) == 1 {
			category = args[0]
		}
		n, err := svc.MarkRead(cmd.Context(), category)
		if err != nil {
			return err
		}
		fmt.Printf("%s marked %d items read\n", success("✓"), n)
		return nil
	},
}

func init() {
	feedsFetchCmd.Flags().BoolVar(&feedsRefresh, "refresh", false, "ignore the cache and refetch upstream")
	feedsFetchCmd.Flags().BoolVar(&feedsJSON, "json", false, "output items as JSON")
	feedsFetchCmd.Flags().IntVar(&feedsLimit, "limit", 10, "items shown per category (0 for all)")
	feedsCmd.AddCommand(feedsFetchCmd, feedsReadCmd)
	rootCmd.AddCommand(feedsCmd)
}
