// Package commands provides the CLI command definitions for Bargn.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/bargn/bargn/internal/app"
	"github.com/bargn/bargn/internal/cli/render"
	"github.com/bargn/bargn/pkg/logger"
)

// Styles for CLI output
var (
	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// App holds the shared CLI state
type App struct {
	Version string
	Commit  string
	Date    string

	configPath string
	debug      bool
	color      bool
}

// New creates the root CLI command with all subcommands
func New(version, commit, date string) *cli.Command {
	a := &App{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	return &cli.Command{
		Name:    "bargn",
		Usage:   "funnel alerting and recommendation service",
		Version: version,
		Description: `Bargn evaluates conversion funnel alerts and asks an AI gateway for
   funnel improvement recommendations.

   Use 'bargn serve' to run the HTTP API, 'bargn alerts evaluate' from cron,
   or 'bargn funnels analyze' for an on-demand report.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("BARGN_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			a.configPath = cmd.String("config")
			a.debug = cmd.Bool("debug")
			a.color = !cmd.Bool("no-color") && isTerminal()

			if a.debug {
				log.SetLevel(log.DebugLevel)
			}
			if !a.color {
				log.SetStyles(log.DefaultStyles())
				lipgloss.SetHasDarkBackground(false)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			a.serveCommand(),
			a.alertsCommand(),
			a.funnelsCommand(),
			a.versionCommand(),
		},
	}
}

// loadApp builds and initializes the service components for in-process commands.
func (a *App) loadApp(ctx context.Context) (*app.App, error) {
	opts := app.Options{
		ConfigPath: a.configPath,
		Version:    a.Version,
		BuildInfo:  fmt.Sprintf("%s (%s)", a.Commit, a.Date),
	}
	if a.debug {
		opts.Logger = logger.New(true)
	}
	svc, err := app.New(opts)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func (a *App) renderer(cmd *cli.Command) (*render.Renderer, error) {
	return render.New(os.Stdout, render.Options{
		Format: cmd.String("output"),
		Color:  a.color,
	})
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output format (table, json)",
		Value:   "table",
	}
}

// isTerminal returns true if stdout is a terminal
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// versionCommand shows version information
func (a *App) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "show version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("%s version %s\n", logoStyle.Render("bargn"), a.Version)
			fmt.Printf("  commit: %s\n", mutedStyle.Render(a.Commit))
			fmt.Printf("  built:  %s\n", mutedStyle.Render(a.Date))
			return nil
		},
	}
}
