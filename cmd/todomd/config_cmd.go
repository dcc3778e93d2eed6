package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/todomd/todomd/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "maint",
	Short:   "Inspect or create configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging ~/.todomd/config.yaml,
./.todomd/config.yaml, TODOMD_* environment variables and flags.
The API key is masked.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out, err := config.Render(cfg)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Print(string(out))
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	Annotations: map[string]string{
		skipConfig: "true",
	},
	Run: func(cmd *cobra.Command, args []string) {
		global, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")

		path := config.ProjectConfigPath()
		if global {
			path = config.GlobalConfigPath()
		}
		if path == "" {
			fatal("cannot determine config location")
		}
		if _, err := os.Stat(path); err == nil && !force {
			fatal("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			fatal("%v", err)
		}
		stdout().Success("Wrote %s", path)
	},
}

func init() {
	configInitCmd.Flags().Bool("global", false, "Write ~/.todomd/config.yaml instead of ./.todomd/config.yaml")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
