package commands

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// serveCommand runs the HTTP API until interrupted
func (a *App) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := a.loadApp(ctx)
			if err != nil {
				return err
			}
			log.Info("starting bargn", "version", a.Version, "address", svc.Config.Server.Address)
			return svc.Serve(ctx)
		},
	}
}
