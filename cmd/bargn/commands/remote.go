package commands

import (
	"context"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/bargn/bargn/internal/cli/client"
)

// remoteFlags are the connection flags shared by commands that can talk to a
// running server instead of the database.
func remoteFlags(urlRequired bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "url",
			Usage:    "base URL of the Bargn server",
			Sources:  cli.EnvVars("BARGN_SERVER_URL"),
			Required: urlRequired,
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "static bearer token",
			Sources: cli.EnvVars("BARGN_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "client-id",
			Usage:   "OAuth2 client ID for the client credentials grant",
			Sources: cli.EnvVars("BARGN_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:    "client-secret",
			Usage:   "OAuth2 client secret",
			Sources: cli.EnvVars("BARGN_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:    "token-url",
			Usage:   "OAuth2 token endpoint",
			Sources: cli.EnvVars("BARGN_TOKEN_URL"),
		},
		&cli.StringFlag{
			Name:  "scopes",
			Usage: "comma separated OAuth2 scopes",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
			Value: 2 * time.Minute,
		},
	}
}

// newClient builds an API client from the remote flags.
func newClient(ctx context.Context, cmd *cli.Command) (*client.Client, error) {
	var scopes []string
	for _, scope := range strings.Split(cmd.String("scopes"), ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}

	return client.New(ctx, client.Options{
		URL:          cmd.String("url"),
		Timeout:      cmd.Duration("timeout"),
		Token:        cmd.String("token"),
		ClientID:     cmd.String("client-id"),
		ClientSecret: cmd.String("client-secret"),
		TokenURL:     cmd.String("token-url"),
		Scopes:       scopes,
	})
}
