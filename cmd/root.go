package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iotlab/pubsub-ops/internal/config"
	"github.com/iotlab/pubsub-ops/internal/log"
)

// RootCommand represents the root command for the pubsub-ops CLI.
type RootCommand struct{}

var (
	configFilePath string
	repositoryDir  string
	dbPath         string
	verbose        bool
)

// GetCobraCommand returns the cobra root command for the pubsub-ops CLI.
func (c *RootCommand) GetCobraCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pubsub-ops",
		Short: "pubsub-ops keeps a deployed pub/sub GUI installation up to date from its release branches.",
		Long: `pubsub-ops keeps a deployed pub/sub GUI installation up to date from its release branches.

It detects the installed version, discovers release branches on the git origin,
and applies updates safely: dirty-tree checks, optional point-in-time backups,
single-flight sessions and a detached relauncher for restarting the application.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if configFilePath != "" {
				config.SetConfigFilePath(configFilePath)
			}
			cfg := config.InitConfig()
			log.Init(verbose)

			if verbose {
				cfg.Verbose = true
			}
			if repositoryDir != "" {
				cfg.RepositoryDir = repositoryDir
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			app := NewApp(log.GetLogger(), config.NewProviderWith(cfg))
			cmd.SetContext(context.WithValue(cmd.Context(), appContextKey, app))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&repositoryDir, "repo-dir", "", "Path to the managed working tree")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "Path to the update history database")

	rootCmd.AddCommand(
		(&CheckCommand{}).GetCobraCommand(),
		(&UpdateCommand{}).GetCobraCommand(),
		(&DaemonCommand{}).GetCobraCommand(),
		(&RelaunchCommand{}).GetCobraCommand(),
		(&HistoryCommand{}).GetCobraCommand(),
		(&VersionCommand{}).GetCobraCommand(),
		(&SelfUpdateCommand{}).GetCobraCommand(),
	)

	return rootCmd
}

// getApp retrieves the App from the command context.
func getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}
