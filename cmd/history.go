package cmd

import (
	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
)

// HistoryCommand represents the history command.
type HistoryCommand struct{}

var historyLimit int

// GetCobraCommand returns the cobra command for listing recorded update
// attempts.
func (c *HistoryCommand) GetCobraCommand() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded update attempts",
		Long: `List recorded update attempts, newest first.

Every update attempt that reaches a terminal state is recorded, including
failures and cancellations, so a fleet operator can reconstruct what
happened on a device after the fact.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp(cmd)

			conn, store, err := app.OpenHistory()
			if err != nil {
				return err
			}
			defer conn.Close()

			attempts, err := store.List(historyLimit)
			if err != nil {
				return err
			}

			if len(attempts) == 0 {
				color.Yellow("No update attempts recorded yet.")
				return nil
			}

			headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
			columnFmt := color.New(color.FgYellow).SprintfFunc()
			tbl := table.New("Started", "From", "To", "Outcome", "Reason", "Summary")
			tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
			for _, a := range attempts {
				tbl.AddRow(a.StartedAt.Format("2006-01-02 15:04:05"),
					a.FromVersion, a.ToVersion, a.Outcome, a.Reason, a.Summary)
			}
			tbl.Print()

			return nil
		},
	}

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of attempts to show")

	return historyCmd
}
