package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/iotlab/pubsub-ops/internal/update"
)

// CheckCommand represents the check command.
type CheckCommand struct{}

var checkJSON bool

// GetCobraCommand returns the cobra command for checking whether an update
// is available.
func (c *CheckCommand) GetCobraCommand() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer release branch is available",
		Long: `Check whether a newer release branch is available.

Resolves the installed version, fetches the remote release branches, and
compares. This is side-effect-free and safe to run on a timer.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp(cmd)

			repo, err := app.OpenRepository()
			if err != nil {
				return err
			}

			coordinator := app.NewCoordinator(repo, nil)
			result, err := coordinator.Check(cmd.Context())
			if err != nil && !errors.Is(err, update.ErrNoRelease) {
				return err
			}

			if checkJSON {
				return printCheckJSON(result, err)
			}
			printCheckTable(result, err)
			return nil
		},
	}

	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Emit the verdict as JSON")

	return checkCmd
}

func printCheckJSON(result update.CheckResult, checkErr error) error {
	releases := make([]map[string]string, 0, len(result.Releases))
	for _, ref := range result.Releases {
		releases = append(releases, map[string]string{
			"version": ref.Version.String(),
			"branch":  ref.Branch,
		})
	}
	out := map[string]any{
		"current":         result.Current.String(),
		"target":          result.Target.Version.String(),
		"updateAvailable": result.UpdateAvailable,
		"releases":        releases,
	}
	if checkErr != nil {
		out["note"] = checkErr.Error()
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func printCheckTable(result update.CheckResult, checkErr error) {
	fmt.Printf("Installed version: %s\n", result.Current)

	if checkErr != nil {
		fmt.Println(checkErr.Error())
		return
	}

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()
	tbl := table.New("Version", "Branch")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	for _, ref := range result.Releases {
		tbl.AddRow(ref.Version.String(), ref.Branch)
	}
	tbl.Print()

	if result.UpdateAvailable {
		color.Cyan("Update available: %s -> %s", result.Current, result.Target.Version)
		fmt.Println("Run 'pubsub-ops update' to apply it.")
	} else {
		color.Green("Installation is up to date.")
	}
}
