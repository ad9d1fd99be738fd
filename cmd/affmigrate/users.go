package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/affmigrate/internal/formatter"
	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/repositories"
	"github.com/desertthunder/affmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

// UsersAdd creates a user with the given roles.
func (r *Runner) UsersAdd(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	user := &models.User{
		Login: strings.TrimSpace(cmd.String("login")),
		Email: strings.TrimSpace(cmd.String("email")),
		Roles: cmd.StringSlice("role"),
	}
	if err := repositories.NewUserRepository(db).Create(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	r.logger.Debug("user created", "id", user.ID, "login", user.Login, "roles", user.Roles)
	return r.writePlain("✓ Created user %d (%s)\n", user.ID, user.Login)
}

// UsersList prints users as text or CSV, optionally filtered by role.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if format != formatter.FormatText && format != formatter.FormatCSV {
		return fmt.Errorf("%w: format must be text or csv, got %q", shared.ErrInvalidFlag, format)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	users, err := repositories.NewUserRepository(db).ListUsers(ctx, models.UserQuery{
		RoleIn: cmd.StringSlice("role"),
		Limit:  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if format == formatter.FormatCSV {
		data, err := formatter.UsersToCSV(users)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}
	return r.writeBytes(formatter.UsersToText(users))
}

// UsersRoles prints each assigned role with its user count.
func (r *Runner) UsersRoles(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	counts, err := repositories.NewUserRepository(db).RoleCounts(ctx)
	if err != nil {
		return err
	}

	if len(counts) == 0 {
		return r.writePlain("No roles assigned\n")
	}
	for _, rc := range counts {
		if err := r.writePlain("%-24s %d\n", rc.Role, rc.Users); err != nil {
			return err
		}
	}
	return nil
}

// AffiliatesList prints affiliates as text or CSV, optionally filtered by status.
func (r *Runner) AffiliatesList(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if format != formatter.FormatText && format != formatter.FormatCSV {
		return fmt.Errorf("%w: format must be text or csv, got %q", shared.ErrInvalidFlag, format)
	}

	status := models.AffiliateStatus(cmd.String("status"))
	if status != "" && !status.Valid() {
		return fmt.Errorf("%w: unknown affiliate status %q", shared.ErrInvalidFlag, status)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	affiliates, err := repositories.NewAffiliateRepository(db).List(ctx, status)
	if err != nil {
		return err
	}

	if format == formatter.FormatCSV {
		data, err := formatter.AffiliatesToCSV(affiliates)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}
	return r.writeBytes(formatter.AffiliatesToText(affiliates))
}
