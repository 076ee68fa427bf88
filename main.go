package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	configx "github.com/tanpawarit/kirana-assistant/pkg/config"
	logx "github.com/tanpawarit/kirana-assistant/pkg/logger"
	_ "github.com/tanpawarit/kirana-assistant/pkg/logger/autoload"
)

func main() {
	app := &cli.App{
		Name:  "kirana-assistant",
		Usage: "inventory and sales assistant for kirana stores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "path to an env file (defaults to ./.env when present)",
				EnvVars: []string{"KIRANA_ENV_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			configx.UseEnvFile(c.String("env"))
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: func(c *cli.Context) error { return serve(c.Context) },
			},
			{
				Name:   "seed",
				Usage:  "insert the default products into an empty store",
				Action: func(c *cli.Context) error { return seed(c.Context) },
			},
		},
		DefaultCommand: "serve",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("kirana-assistant exited")
	}
}
