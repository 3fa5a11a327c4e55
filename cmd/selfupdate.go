package cmd

import (
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// releaseSlug is the GitHub repository the binary updates itself from.
const releaseSlug = "iotlab/pubsub-ops"

// SelfUpdateCommand represents the self-update command. It updates the
// pubsub-ops binary itself, not the managed application tree.
type SelfUpdateCommand struct{}

// GetCobraCommand returns the cobra command for updating the binary.
func (c *SelfUpdateCommand) GetCobraCommand() *cobra.Command {
	selfUpdateCmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update the pubsub-ops binary to the latest release",
		Long:  `Update the pubsub-ops binary to the latest version from GitHub releases.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if Version == "dev" {
				fmt.Println("Skipping update for development build.")
				return nil
			}

			fmt.Printf("Current version: %s\n", Version)
			fmt.Println("Checking for updates...")

			latest, found, err := selfupdate.DetectLatest(cmd.Context(), selfupdate.ParseSlug(releaseSlug))
			if err != nil {
				return fmt.Errorf("failed to check for updates: %w", err)
			}

			if !found {
				fmt.Println("No release found")
				return nil
			}

			if latest.LessOrEqual(Version) {
				fmt.Println("You are already running the latest version.")
				return nil
			}

			fmt.Printf("Update available! New version: %s\n", latest.Version())
			fmt.Println("Downloading and applying update...")

			exe, err := selfupdate.ExecutablePath()
			if err != nil {
				return fmt.Errorf("failed to get executable path: %w", err)
			}

			if err := selfupdate.UpdateTo(cmd.Context(), latest.AssetURL, latest.AssetName, exe); err != nil {
				return fmt.Errorf("failed to update: %w", err)
			}

			fmt.Println("Update completed successfully! Restart pubsub-ops to use the new version.")
			return nil
		},
	}

	return selfUpdateCmd
}
