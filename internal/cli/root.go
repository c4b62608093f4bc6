package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	port         string
	configPath   string
	fixturesPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envPort := os.Getenv("PORT")
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}
	envFixtures := os.Getenv("FIXTURES_PATH")

	cmd := &cobra.Command{
		Use:          "game-score-engine",
		Short:        "Score submission, leaderboard and daily reward engine",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&port, "port", envPort, "port to listen on (overrides config)")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&fixturesPath, "fixtures", envFixtures, "path to YAML seed fixtures")
	cmd.AddCommand(NewStartCmd(&configPath, &port, &fixturesPath))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewSeedCmd(&configPath, &fixturesPath))
	return cmd
}
