package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/bargn/bargn/internal/cli/render"
	"github.com/bargn/bargn/pkg/models"
)

// funnelsCommand groups the funnel subcommands
func (a *App) funnelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "funnels",
		Usage: "inspect and analyze funnels",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list funnels with their completion rates",
				Flags: append(remoteFlags(false), outputFlag()),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.runFunnelsList(ctx, cmd)
				},
			},
			{
				Name:  "analyze",
				Usage: "generate AI recommendations for a funnel",
				Description: `Gathers the funnel's drop-off and cohort metrics and asks the AI gateway
for recommendations. Without --funnel-id an interactive picker is shown.
With --url the analysis runs on that server instead of in-process.`,
				Flags: append(remoteFlags(false),
					&cli.StringFlag{
						Name:    "funnel-id",
						Aliases: []string{"f"},
						Usage:   "funnel UUID",
					},
					outputFlag(),
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.runFunnelsAnalyze(ctx, cmd)
				},
			},
		},
	}
}

func (a *App) runFunnelsList(ctx context.Context, cmd *cli.Command) error {
	r, err := a.renderer(cmd)
	if err != nil {
		return err
	}

	if cmd.String("url") != "" {
		apiClient, err := newClient(ctx, cmd)
		if err != nil {
			return err
		}
		snapshots, err := apiClient.ListFunnels(ctx)
		if err != nil {
			return err
		}
		return r.Funnels(snapshots)
	}

	svc, err := a.loadApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Shutdown(context.Background()) }()

	snapshots, err := svc.DB.ListFunnelSnapshots(ctx)
	if err != nil {
		return err
	}
	return r.Funnels(snapshots)
}

func (a *App) runFunnelsAnalyze(ctx context.Context, cmd *cli.Command) error {
	r, err := a.renderer(cmd)
	if err != nil {
		return err
	}

	if cmd.String("url") != "" {
		return a.analyzeRemote(ctx, cmd, r)
	}

	svc, err := a.loadApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Shutdown(context.Background()) }()

	if svc.Generator == nil {
		return errors.New("ai.api_key is not configured")
	}

	funnelID := cmd.String("funnel-id")
	if funnelID == "" {
		if !isTerminal() {
			return errors.New("--funnel-id is required when not running in a terminal")
		}
		snapshots, err := svc.DB.ListFunnelSnapshots(ctx)
		if err != nil {
			return fmt.Errorf("failed to list funnels: %w", err)
		}
		funnelID, err = selectFunnel(snapshots)
		if err != nil {
			return err
		}
	}

	report, err := svc.Generator.Generate(ctx, funnelID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return fmt.Errorf("funnel %s not found", funnelID)
		case errors.Is(err, models.ErrRateLimited), errors.Is(err, models.ErrQuotaExceeded):
			return err
		default:
			return fmt.Errorf("analysis failed: %w", err)
		}
	}
	return r.Report(report)
}

func (a *App) analyzeRemote(ctx context.Context, cmd *cli.Command, r *render.Renderer) error {
	apiClient, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}

	funnelID := cmd.String("funnel-id")
	if funnelID == "" {
		if !isTerminal() {
			return errors.New("--funnel-id is required when not running in a terminal")
		}
		snapshots, err := apiClient.ListFunnels(ctx)
		if err != nil {
			return fmt.Errorf("failed to list funnels: %w", err)
		}
		funnelID, err = selectFunnel(snapshots)
		if err != nil {
			return err
		}
	}

	resp, err := apiClient.AnalyzeFunnel(ctx, funnelID)
	if err != nil {
		return fmt.Errorf("remote analysis failed: %w", err)
	}
	return r.Report(&models.RecommendationReport{
		Funnel:          resp.Funnel,
		Recommendations: resp.Recommendations,
		GeneratedAt:     resp.AnalyzedAt,
	})
}

func selectFunnel(snapshots []models.FunnelSnapshot) (string, error) {
	if len(snapshots) == 0 {
		return "", errors.New("no funnels available")
	}

	options := make([]huh.Option[string], len(snapshots))
	for i, s := range snapshots {
		label := fmt.Sprintf("%s - %.1f%% of %d entries", s.FunnelName, s.CompletionRate, s.TotalEntries)
		options[i] = huh.NewOption(label, s.FunnelID)
	}

	var selected string
	err := huh.NewSelect[string]().
		Title("Select Funnel").
		Options(options...).
		Value(&selected).
		Run()
	if err != nil {
		return "", err
	}
	return selected, nil
}
