package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"careportal/internal/database"
	"careportal/internal/model"
	"careportal/internal/store"
)

var userCommand = &cli.Command{
	Name:  "user",
	Usage: "Manage portal users",
	Subcommands: []*cli.Command{
		{
			Name:   "create",
			Usage:  "Create a user",
			Action: cmdUserCreate,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "email", Required: true},
				&cli.StringFlag{Name: "role", Value: string(model.RolePatient), Usage: "patient, doctor or pharmacist"},
			},
		},
	},
}

func cmdUserCreate(ctx *cli.Context) error {
	role := model.Role(ctx.String("role"))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	db, err := database.Open(ctx.Context, getConfig(ctx))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	u, err := store.New(db).CreateUser(ctx.Context, model.User{
		Name:  ctx.String("name"),
		Email: ctx.String("email"),
		Role:  role,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("a user with email %s already exists", ctx.String("email"))
	}
	if err != nil {
		return err
	}

	fmt.Printf("✅ Created %s %s (%s)\n", u.Role, u.Name, u.ID)
	return nil
}
