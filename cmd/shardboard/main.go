package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/shardboard/app"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/config"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "shardboard",
		Usage: "sharded tournament leaderboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file"},
			&cli.StringFlag{Name: "api", Value: "http://localhost:8080", EnvVars: []string{"SHARDBOARD_API"}, Usage: "API base URL for admin commands"},
			&cli.StringFlag{Name: "tz", Value: "Local", Usage: "time zone for natural-language times"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			tournamentCommand(),
			shardCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the partition modules and the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "apply database migrations before starting"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			obs := observability.Init(config.ToObsConfig(cfg))
			logger := obs.Provider.Logger
			logger.Info("Starting shardboard")

			application, err := app.New(ctx, cfg, obs, app.Options{Migrate: c.Bool("migrate")})
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			runErr := application.Run(ctx)
			if runErr != nil {
				logger.Error("Application stopped with error", "error", runErr)
			}

			logger.Info("Shutting down shardboard")
			done := make(chan error, 1)
			go func() { done <- application.Close() }()
			select {
			case err := <-done:
				if err != nil {
					logger.Error("Error during shutdown", "error", err)
				}
			case <-time.After(30 * time.Second):
				logger.Error("Shutdown timed out")
			}
			logger.Info("Shardboard stopped")
			return runErr
		},
	}
}

func tournamentCommand() *cli.Command {
	return &cli.Command{
		Name:  "tournament",
		Usage: "manage tournaments",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a tournament",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "tournament id, generated when empty"},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "host"},
					&cli.StringFlag{Name: "start", Usage: `window start, e.g. "tomorrow 6pm"`},
					&cli.StringFlag{Name: "end", Usage: `window end, e.g. "in 3 days"`},
				},
				Action: func(c *cli.Context) error {
					client, err := newClient(c)
					if err != nil {
						return err
					}
					start, end, err := client.window(c.String("start"), c.String("end"))
					if err != nil {
						return err
					}
					return client.call(c.Context, "/v1/tournaments", map[string]string{
						"id":          c.String("id"),
						"name":        c.String("name"),
						"description": c.String("description"),
						"host":        c.String("host"),
						"start":       start,
						"end":         end,
					})
				},
			},
			{
				Name:      "end",
				Usage:     "end a tournament",
				ArgsUsage: "<tournament-id>",
				Action: func(c *cli.Context) error {
					client, err := newClient(c)
					if err != nil {
						return err
					}
					return client.call(c.Context, "/v1/tournaments/"+c.Args().First()+"/end", nil)
				},
			},
		},
	}
}

func shardCommand() *cli.Command {
	return &cli.Command{
		Name:  "shard",
		Usage: "manage shards",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "provision a shard for a tournament; it inherits the tournament's window",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tournament", Required: true},
					&cli.StringFlag{Name: "id", Usage: "shard id, generated when empty"},
				},
				Action: func(c *cli.Context) error {
					client, err := newClient(c)
					if err != nil {
						return err
					}
					return client.call(c.Context, "/v1/tournaments/"+c.String("tournament")+"/shards", map[string]string{
						"shard_id": c.String("id"),
					})
				},
			},
		},
	}
}

// withTimeout bounds admin calls.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 15*time.Second)
}
