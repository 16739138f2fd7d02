package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/containerd/log"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/melih/lighthouse/internal/adapters/http"
	"github.com/melih/lighthouse/internal/core/deploy"
	"github.com/melih/lighthouse/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve [OPTIONS]",
		Short: "Serve the deploy API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				root.cfg.Server.Listen = listen
			}
			return runServe(cmd.Context(), root)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default from the configuration, :3000)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions) error {
	project, err := root.projectName(nil)
	if err != nil {
		return err
	}
	engine, release, err := root.newEngine(ctx, project)
	if err != nil {
		return err
	}
	defer release()

	m := metrics.New()
	handler := http.NewContainerHandler(deploy.NewService(engine, m), m.Handler())

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(http.BaseContext(ctx))
	handler.Register(app)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.G(ctx).WithFields(log.Fields{"listen": root.cfg.Server.Listen, "project": project}).Info("server starting")
		errCh <- app.Listen(root.cfg.Server.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.G(ctx).Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}
