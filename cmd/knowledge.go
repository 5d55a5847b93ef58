package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/knowledge"
	"github.com/annexlab/cleanroom/internal/progress"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Search official GMP sources",
}

var (
	knowledgeK       int
	knowledgeSources []string
)

var knowledgeAskCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Rank passages from the source pages by keyword score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ans, err := knowledge.NewAsker(cfg.Knowledge.Sources, cliLogger(cfg)).Ask(cmd.Context(), args[0], knowledgeK)
		if err != nil {
			return err
		}
		printAnswer(ans)
		return nil
	},
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Vector search over the indexed passages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		idx := openKnowledgeIndex(cmd.Context(), cfg, nil, cliLogger(cfg))
		if !idx.Available() {
			return knowledge.ErrVectorUnavailable
		}
		if idx.Count() == 0 {
			fmt.Println("The vector index is empty. Run `cleanroom knowledge index` first.")
			return nil
		}
		ans, err := idx.Search(cmd.Context(), knowledge.SearchRequest{Q: args[0], K: knowledgeK, Sources: knowledgeSources})
		if err != nil {
			return err
		}
		printAnswer(ans)
		return nil
	},
}

var knowledgeIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scrape the HTML sources and embed their passages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)
		idx := openKnowledgeIndex(cmd.Context(), cfg, nil, log)
		if !idx.Available() {
			return knowledge.ErrVectorUnavailable
		}
		asker := knowledge.NewAsker(cfg.Knowledge.Sources, log)
		n, err := idx.IndexSources(cmd.Context(), asker, progress.NewReporter("Indexing sources"))
		if err != nil {
			return err
		}
		fmt.Printf("%s indexed %d passages (%d total)\n", success("✓"), n, idx.Count())
		return nil
	},
}

func printAnswer(ans *knowledge.Answer) {
	fmt.Println(ans.Answer)
	if len(ans.Citations) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(faint("Sources:"))
	for _, c := range ans.Citations {
		fmt.Printf("  - %s %s\n", c.Title, faint(c.URL))
	}
}

func init() {
	knowledgeCmd.PersistentFlags().IntVarP(&knowledgeK, "k", "k", knowledge.DefaultK, "number of passages")
	knowledgeSearchCmd.Flags().StringSliceVar(&knowledgeSources, "sources", nil, "restrict to these sources (for example EMA,MHRA)")
	knowledgeCmd.AddCommand(knowledgeAskCmd, knowledgeSearchCmd, knowledgeIndexCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
