package cmd

import (
	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize cleanroom configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure cleanroom and writes a .cleanroom.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
