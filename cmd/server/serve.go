package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"careportal/internal/auth"
	"careportal/internal/chat"
	"careportal/internal/database"
	"careportal/internal/handler"
	"careportal/internal/profile"
	"careportal/internal/realtime"
	"careportal/internal/store"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Run the HTTP and websocket server (default)",
	Action: cmdServe,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply the schema before serving",
			Value: true,
		},
	},
}

func cmdServe(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	logger := getLogger(ctx)
	if err := cfg.Validate(); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// データベース接続を初期化
	db, err := database.Open(sigCtx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// serve without a subcommand has no flag set, so migrate by default
	if !ctx.IsSet("migrate") || ctx.Bool("migrate") {
		if err := db.Migrate(sigCtx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	st := store.New(db)

	var cache profile.Cache
	if cfg.RedisURL != "" {
		rc, err := profile.NewRedisCache(sigCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("⚠️  profile cache unavailable, reading profiles from the database")
		} else {
			defer rc.Close()
			cache = rc
		}
	}
	directory := profile.NewDirectory(st, cache, cfg.ProfileCacheTTL, logger)
	authn := auth.New(cfg.JWTSecret, cfg.JWTIssuer, directory)

	// WebSocket ハブを開始
	hub := realtime.NewHub(logger)
	go hub.Run(sigCtx)
	defer hub.Close()

	svc := chat.NewService(st, directory, hub, chat.Options{TypingTimeout: cfg.TypingTimeout}, logger)
	h := handler.New(svc, authn, hub, st, cfg, logger)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h.WithCORS(h.SetupRouter()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printBanner(cfg)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("🚀 Server started successfully")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info().Msg("shutting down")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
