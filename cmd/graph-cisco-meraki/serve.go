package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmountifield/graph-cisco-meraki/internal/handlers"
	"github.com/jmountifield/graph-cisco-meraki/internal/server"
	"github.com/jmountifield/graph-cisco-meraki/pkg/startup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}
}

func runServe(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps := &infra{cfg: cfg, logger: a.logger}
	s := startup.NewStartup(a.logger, cfg.StartupMaxAttempts)
	deps.register(s)
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := shutdownContext()
		defer cancel()
		_ = s.Stop(stopCtx)
	}()

	svc, runs, err := deps.collector()
	if err != nil {
		return err
	}

	var reader handlers.RunReader
	if runs != nil {
		reader = runs
	}

	srv := server.New(server.Config{
		ServiceName:  cfg.AppName,
		Port:         cfg.Port,
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		DependsOn:    deps.names(),
	}, handlers.NewRunHandler(svc, reader, a.logger), handlers.NewHealthHandler(deps.checks()), a.logger)

	// already started backends are not restarted
	s.AddDependency(srv)
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("Shutting down")
	return nil
}
