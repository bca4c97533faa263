package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"careportal/internal/auth"
	"careportal/internal/database"
	"careportal/internal/profile"
	"careportal/internal/store"
)

var tokenCommand = &cli.Command{
	Name:   "token",
	Usage:  "Mint a bearer token for a user",
	Action: cmdToken,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "user", Required: true, Usage: "User id"},
		&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
	},
}

func cmdToken(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Open(ctx.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	directory := profile.NewDirectory(store.New(db), nil, 0, getLogger(ctx))
	u, err := directory.User(ctx.Context, ctx.String("user"))
	if err != nil {
		return fmt.Errorf("unknown user %s: %w", ctx.String("user"), err)
	}

	token, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer, directory).Issue(u.ID, ctx.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
