package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"careportal/internal/config"
	"careportal/internal/logging"
)

type contextKey int

const (
	contextKeyConfig contextKey = iota
	contextKeyLogger
)

func getConfig(ctx *cli.Context) config.Config {
	return ctx.Context.Value(contextKeyConfig).(config.Config)
}

func getLogger(ctx *cli.Context) zerolog.Logger {
	return ctx.Context.Value(contextKeyLogger).(zerolog.Logger)
}

// prepareApp loads .env, the environment and the optional YAML file once for every command.
func prepareApp(ctx *cli.Context) error {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  .env file not found, using environment only: %v", err)
	}

	cfg, err := config.LoadFile(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)

	newCtx := context.WithValue(ctx.Context, contextKeyConfig, cfg)
	newCtx = context.WithValue(newCtx, contextKeyLogger, logger)
	ctx.Context = newCtx
	return nil
}

func main() {
	app := &cli.App{
		Name:  "careportal",
		Usage: "Realtime messaging for the care portal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML file overlaid on the environment",
				EnvVars: []string{"CAREPORTAL_CONFIG"},
			},
		},
		Before: prepareApp,
		Action: cmdServe,
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			userCommand,
			tokenCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
