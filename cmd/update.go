package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iotlab/pubsub-ops/internal/update"
)

// UpdateCommand represents the update command.
type UpdateCommand struct{}

var (
	updateYes          bool
	updateDiscardLocal bool
	updateNoBackup     bool
	updateRestart      bool
	updateRelaunch     bool
)

// GetCobraCommand returns the cobra command for applying an update to the
// managed working tree.
func (c *UpdateCommand) GetCobraCommand() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update the managed installation to the latest release branch",
		Long: `Update the managed installation to the latest release branch.

The session refuses to touch a working tree with uncommitted modifications
unless --discard-local is given, optionally copies the tree aside first, and
never restarts the application without being asked to: pass --restart to
re-exec in place or --relaunch to hand off to the detached relauncher.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp(cmd)

			if updateRestart && updateRelaunch {
				return fmt.Errorf("--restart and --relaunch are mutually exclusive")
			}

			repo, err := app.OpenRepository()
			if err != nil {
				return err
			}

			// History is best-effort: an unwritable database must not
			// block the update itself.
			var recorder update.Recorder
			conn, store, err := app.OpenHistory()
			if err != nil {
				app.Logger.Warn("Update history unavailable", "error", err)
			} else {
				defer conn.Close()
				recorder = store
			}

			coordinator := app.NewCoordinator(repo, recorder)

			check, err := coordinator.Check(cmd.Context())
			if err != nil {
				return err
			}
			if !check.UpdateAvailable {
				color.Green("Already up to date at %s.", check.Current)
				return nil
			}

			fmt.Printf("Update available: %s -> %s (%s)\n", check.Current, check.Target.Version, check.Target.Branch)
			if !updateYes && !confirm("Apply this update?") {
				fmt.Println("Update declined.")
				return nil
			}

			opts := update.Options{
				DiscardLocal: updateDiscardLocal,
				Backup:       app.Config.BackupEnabled && !updateNoBackup,
			}

			result, err := coordinator.RunAndWait(cmd.Context(), check.Target, opts, update.SinkFunc(printEvent))
			if err != nil {
				return err
			}

			for _, warning := range result.Warnings {
				color.Yellow("WARNING: %s", warning)
			}

			switch result.Outcome {
			case update.OutcomeSucceeded:
				color.Green("%s", result.Summary)
			case update.OutcomeCancelled:
				color.Yellow("%s", result.Summary)
				return nil
			default:
				color.Red("%s", result.Summary)
				return result.Err
			}

			switch {
			case updateRestart:
				fmt.Println("Restarting in place...")
				return update.RestartInPlace()
			case updateRelaunch:
				fmt.Println("Handing off to the relauncher...")
				return update.HandoffRelauncher(result.Target.Version.String(), app.Config.RepositoryDir)
			default:
				fmt.Println("Restart the application to run the new version.")
				return nil
			}
		},
	}

	updateCmd.Flags().BoolVarP(&updateYes, "yes", "y", false, "Apply without prompting")
	updateCmd.Flags().BoolVar(&updateDiscardLocal, "discard-local", false, "Discard uncommitted modifications and untracked files before updating")
	updateCmd.Flags().BoolVar(&updateNoBackup, "no-backup", false, "Skip the point-in-time backup copy")
	updateCmd.Flags().BoolVar(&updateRestart, "restart", false, "Re-exec this process after a successful update")
	updateCmd.Flags().BoolVar(&updateRelaunch, "relaunch", false, "Hand off to the detached relauncher after a successful update")

	return updateCmd
}

func printEvent(e update.Event) {
	fmt.Printf("[%s] %s\n", e.State, e.Message)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
