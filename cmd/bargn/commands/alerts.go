package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// alertsCommand groups the alert evaluation subcommands
func (a *App) alertsCommand() *cli.Command {
	return &cli.Command{
		Name:  "alerts",
		Usage: "evaluate funnel alerts",
		Commands: []*cli.Command{
			{
				Name:  "evaluate",
				Usage: "run one alert evaluation against the database",
				Description: `Evaluates every enabled alert configuration once, records the alerts
that fire and sends their notifications. Suitable for cron.`,
				Flags: []cli.Flag{outputFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.runAlertsEvaluate(ctx, cmd)
				},
			},
			{
				Name:  "trigger",
				Usage: "ask a running server to evaluate alerts",
				Flags: append(remoteFlags(true), outputFlag()),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.runAlertsTrigger(ctx, cmd)
				},
			},
		},
	}
}

func (a *App) runAlertsEvaluate(ctx context.Context, cmd *cli.Command) error {
	r, err := a.renderer(cmd)
	if err != nil {
		return err
	}
	svc, err := a.loadApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Shutdown(context.Background()) }()

	result, err := svc.Evaluator.EvaluateAll(ctx)
	if err != nil {
		return fmt.Errorf("alert evaluation failed: %w", err)
	}
	for _, f := range result.Failures {
		log.Warn("alert config skipped", "alert_config_id", f.ConfigID, "funnel_id", f.FunnelID, "error", f.Err)
	}
	log.Debug("alert evaluation finished", "evaluated", result.Evaluated, "fired", len(result.Fired))
	return r.Alerts(result.Fired)
}

func (a *App) runAlertsTrigger(ctx context.Context, cmd *cli.Command) error {
	r, err := a.renderer(cmd)
	if err != nil {
		return err
	}

	apiClient, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}

	resp, err := apiClient.EvaluateAlerts(ctx)
	if err != nil {
		return fmt.Errorf("remote alert evaluation failed: %w", err)
	}
	return r.Alerts(resp.Alerts)
}
