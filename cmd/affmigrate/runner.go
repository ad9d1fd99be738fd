package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/metrics"
	"github.com/desertthunder/affmigrate/internal/permissions"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/repositories"
	"github.com/desertthunder/affmigrate/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and progress store are opened on first use so commands that need neither stay cheap.
type Runner struct {
	config   *shared.Config
	logger   *log.Logger
	output   io.Writer
	db       *sql.DB
	store    progress.Store
	registry *batch.Registry
	prom     *prometheus.Registry
	metrics  *metrics.BatchMetrics
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Logger   *log.Logger
	Output   io.Writer
	DB       *sql.DB
	Store    progress.Store
	Registry *batch.Registry
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = batch.DefaultRegistry()
	}

	prom := prometheus.NewRegistry()
	bm, err := metrics.NewBatchMetrics(prom)
	if err != nil {
		opts.Logger.Warn("batch metrics disabled", "error", err)
	}

	return &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		db:       opts.DB,
		store:    opts.Store,
		registry: opts.Registry,
		prom:     prom,
		metrics:  bm,
	}
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database handle if the runner opened one.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, usersCommand, affiliatesCommand, batchCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.db = db
	return db, nil
}

func (r *Runner) progressStore(ctx context.Context) (progress.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	var db *sql.DB
	if r.config.Progress.Driver == "" || r.config.Progress.Driver == shared.DriverSQLite {
		var err error
		if db, err = r.database(); err != nil {
			return nil, err
		}
	}

	store, err := progress.Open(ctx, r.config.Progress, db)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress store: %w", err)
	}

	r.store = store
	return store, nil
}

// deps wires the sqlite repositories, progress store, role checker and metrics observer.
func (r *Runner) deps(ctx context.Context) (batch.Deps, error) {
	db, err := r.database()
	if err != nil {
		return batch.Deps{}, err
	}

	store, err := r.progressStore(ctx)
	if err != nil {
		return batch.Deps{}, err
	}

	users := repositories.NewUserRepository(db)
	deps := batch.Deps{
		Directory:  users,
		Affiliates: repositories.NewAffiliateRepository(db),
		Store:      store,
		Auth:       permissions.NewRoleChecker(users, r.config.Permissions.Roles, r.logger),
		Logger:     r.logger,
	}
	if r.metrics != nil {
		deps.Observer = r.metrics
	}
	return deps, nil
}

// process builds the batch named by --batch and initializes it with the selected roles.
//
// The returned context carries the principal named by --as, or job.principal.
func (r *Runner) process(ctx context.Context, cmd *cli.Command) (context.Context, batch.Process, error) {
	deps, err := r.deps(ctx)
	if err != nil {
		return ctx, nil, err
	}

	proc, err := r.registry.New(cmd.String("batch"), deps)
	if err != nil {
		return ctx, nil, err
	}

	cfg := &batch.Config{Roles: r.roles(cmd)}
	if err := cfg.Validate(); err != nil {
		return ctx, nil, err
	}
	if err := proc.Init(cfg); err != nil {
		return ctx, nil, err
	}

	return permissions.WithPrincipal(ctx, r.principal(cmd)), proc, nil
}

func (r *Runner) roles(cmd *cli.Command) []string {
	if roles := cmd.StringSlice("role"); len(roles) > 0 {
		return roles
	}
	return r.config.Job.Roles
}

func (r *Runner) principal(cmd *cli.Command) string {
	if as := cmd.String("as"); as != "" {
		return as
	}
	return r.config.Job.Principal
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
