package cmd

import (
	"github.com/spf13/cobra"

	"github.com/iotlab/pubsub-ops/internal/relaunch"
)

// RelaunchCommand represents the hidden relaunch command. It is spawned by
// the main application as `pubsub-ops relaunch <target-version> <tree-path>`
// and is not meant to be run by hand.
type RelaunchCommand struct{}

// GetCobraCommand returns the cobra command implementing the relauncher
// process contract.
func (c *RelaunchCommand) GetCobraCommand() *cobra.Command {
	relaunchCmd := &cobra.Command{
		Use:    "relaunch <target-version> <tree-path>",
		Short:  "Wait for the old instance to exit, finish the update and start the new instance",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			relauncher := relaunch.New(app.Config, app.Runner, app.Logger)
			return relauncher.Run(cmd.Context(), args[0], args[1])
		},
	}

	return relaunchCmd
}
