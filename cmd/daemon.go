package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/iotlab/pubsub-ops/internal/update"
	"github.com/iotlab/pubsub-ops/internal/webhook"
)

// DaemonCommand represents the daemon command for headless fleet nodes.
type DaemonCommand struct{}

var (
	daemonPollInterval time.Duration
	daemonNoPoll       bool
	daemonRelaunchApp  bool
)

// GetCobraCommand returns the cobra command for running the unattended
// update daemon.
func (c *DaemonCommand) GetCobraCommand() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the unattended update daemon: webhook listener plus periodic update checks",
		Long: `Run the unattended update daemon for headless fleet deployments.

The daemon serves the remote trigger endpoint (webhook, manual trigger,
health and logs) and optionally polls the origin for new release branches.
Triggered updates run in discard-and-force mode, since fleet trees are
never expected to carry local edits.

The daemon integrates with systemd, sending readiness and watchdog
notifications when running under systemd supervision.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp(cmd)

			repo, err := app.OpenRepository()
			if err != nil {
				return err
			}

			var recorder update.Recorder
			conn, store, err := app.OpenHistory()
			if err != nil {
				app.Logger.Warn("Update history unavailable", "error", err)
			} else {
				defer conn.Close()
				recorder = store
			}

			coordinator := app.NewCoordinator(repo, recorder)
			trigger := &fleetTrigger{
				coordinator: coordinator,
				app:         app,
				relaunch:    daemonRelaunchApp,
			}

			server := webhook.NewServer(app.Config.Webhook, app.Config.RepositoryDir, trigger, app.Logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if !daemonNoPoll {
				interval := app.Config.PollInterval
				if daemonPollInterval > 0 {
					interval = daemonPollInterval
				}
				go c.runPoller(ctx, app, trigger, interval)
			}

			c.notifySystemd(ctx, app)

			return server.ListenAndServe(ctx)
		},
	}

	daemonCmd.Flags().DurationVarP(&daemonPollInterval, "poll-interval", "i", 0, "Interval between periodic update checks (default from config)")
	daemonCmd.Flags().BoolVar(&daemonNoPoll, "no-poll", false, "Disable periodic checks; update only on webhook or manual trigger")
	daemonCmd.Flags().BoolVar(&daemonRelaunchApp, "relaunch-app", false, "Hand off to the relauncher after each successful update")

	return daemonCmd
}

// runPoller periodically triggers the unattended update path. The check is
// side-effect-free; an actual session only starts when a newer release
// exists, and the coordinator's single-flight guard keeps a poll from
// racing a webhook trigger.
func (c *DaemonCommand) runPoller(ctx context.Context, app *App, trigger *fleetTrigger, interval time.Duration) {
	app.Logger.Info("Starting update poller", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := trigger.UpdateToLatest(ctx, update.SinkFunc(func(e update.Event) {
				app.Logger.Info(e.Message, "state", e.State.String())
			}))
			switch {
			case errors.Is(err, update.ErrInProgress) || errors.Is(err, update.ErrLocked):
				app.Logger.Debug("Skipping poll, update already running")
			case err != nil:
				app.Logger.Debug("Poll finished without update", "detail", err)
			default:
				app.Logger.Info("Polled update finished", "summary", result.Summary)
			}
		}
	}
}

// notifySystemd sends readiness immediately and watchdog pings thereafter.
func (c *DaemonCommand) notifySystemd(ctx context.Context, app *App) {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		app.Logger.Warn("Failed to notify systemd of readiness", "error", err)
	} else if sent {
		app.Logger.Info("Notified systemd that daemon is ready")
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					app.Logger.Debug("Failed to send watchdog notification", "error", err)
				}
			}
		}
	}()
}

// fleetTrigger runs the coordinator's unattended path and optionally hands
// off to the relauncher after a success. It implements webhook.Trigger.
type fleetTrigger struct {
	coordinator *update.Coordinator
	app         *App
	relaunch    bool
}

func (t *fleetTrigger) UpdateToLatest(ctx context.Context, sink update.ProgressSink) (update.Result, error) {
	result, err := t.coordinator.UpdateToLatest(ctx, sink)
	if err != nil {
		return result, err
	}
	if result.Outcome == update.OutcomeSucceeded && t.relaunch {
		t.app.Logger.Info("Handing off to the relauncher", "target", result.Target.Version.String())
		if err := update.HandoffRelauncher(result.Target.Version.String(), t.app.Config.RepositoryDir); err != nil {
			t.app.Logger.Error("Could not start relauncher", "error", err)
		}
	}
	return result, nil
}
