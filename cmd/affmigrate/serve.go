package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/affmigrate/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve exposes the batch step and progress endpoints until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	deps, err := r.deps(ctx)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	handler := server.NewBatchHandler(r.registry, deps, r.config.Job.Roles, r.logger)
	router := server.NewRouter(r.logger, r.config.Server, handler, r.prom)
	if len(r.config.Server.Tokens) == 0 && !r.config.Server.TrustedProxy {
		r.logger.Warn("no server.tokens configured and server.trusted_proxy is off; every step will be refused")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("serving batches", "addr", addr, "batches", r.registry.IDs(), "routes", router.Patterns())
	return server.NewServer(addr, router, r.logger).Run(ctx)
}
