// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/formatter"
	"github.com/urfave/cli/v3"
)

// batchFlags are shared by every batch subcommand.
func batchFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "batch",
			Aliases: []string{"b"},
			Usage:   "Batch process id",
			Value:   batch.MigrateUsersID,
		},
		&cli.StringSliceFlag{
			Name:    "role",
			Aliases: []string{"r"},
			Usage:   "User role to migrate (repeatable, defaults to job.roles)",
		},
		&cli.StringFlag{
			Name:  "as",
			Usage: "Login of the user running the batch (defaults to job.principal)",
		},
	}
	return append(flags, extra...)
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the config file if missing and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// usersCommand manages the user directory
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage site users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a user with one or more roles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "login",
						Usage:    "Unique login",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Email address",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Usage:   "Role to assign (repeatable)",
					},
				},
				Action: r.UsersAdd,
			},
			{
				Name:  "list",
				Usage: "List users, optionally filtered by role",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Usage:   "Only users holding this role (repeatable)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of users to return (0 for all)",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text or csv",
						Value: formatter.FormatText,
					},
				},
				Action: r.UsersList,
			},
			{
				Name:   "roles",
				Usage:  "List assigned roles with their user counts",
				Action: r.UsersRoles,
			},
		},
	}
}

// affiliatesCommand inspects converted affiliates
func affiliatesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "affiliates",
		Usage: "Inspect affiliate records",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List affiliates",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only affiliates with this status",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text or csv",
						Value: formatter.FormatText,
					},
				},
				Action: r.AffiliatesList,
			},
		},
	}
}

// batchCommand drives batch processes one phase at a time or end to end
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Run batch processes",
		Commands: []*cli.Command{
			{
				Name:   "prefetch",
				Usage:  "Snapshot existing affiliates and count candidates",
				Flags:  batchFlags(),
				Action: r.BatchPreFetch,
			},
			{
				Name:  "step",
				Usage: "Process a single step",
				Flags: batchFlags(
					&cli.StringFlag{
						Name:    "step",
						Aliases: []string{"s"},
						Usage:   "Step to process; step 1 takes the snapshot first",
						Value:   "1",
					},
				),
				Action: r.BatchStep,
			},
			{
				Name:   "finish",
				Usage:  "Clear stored progress",
				Flags:  batchFlags(),
				Action: r.BatchFinish,
			},
			{
				Name:  "status",
				Usage: "Show stored progress",
				Flags: batchFlags(
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text, json or yaml",
						Value: formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file; format follows the extension",
					},
				),
				Action: r.BatchStatus,
			},
			{
				Name:   "run",
				Usage:  "Run every step until the batch is done",
				Flags:  batchFlags(runFlags()...),
				Action: r.BatchRun,
			},
			{
				Name:   "tui",
				Usage:  "Run a batch from the interactive terminal UI",
				Flags:  batchFlags(runFlags()...),
				Action: r.BatchTUI,
			},
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Continue from the stored migrated count",
		},
		&cli.IntFlag{
			Name:  "start-step",
			Usage: "First step to process; overrides --resume",
		},
		&cli.FloatFlag{
			Name:  "rate",
			Usage: "Maximum steps per second (0 disables throttling; defaults to job.steps_per_second)",
			Value: -1,
		},
		&cli.BoolFlag{
			Name:  "keep-progress",
			Usage: "Leave progress keys in place after the last step",
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the batch step endpoint over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}
