package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nhle/cyclic-tasks/internal/api"
	"github.com/nhle/cyclic-tasks/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var (
		addr        string
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the cycle scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			if addr == "" {
				addr = e.cfg.Server.Addr
			}

			gin.SetMode(gin.ReleaseMode)
			srv := api.NewServer(e.runner, e.tasks, e.store, newParser(e.cfg.AI), e.logger.Named("api"))

			var sched *scheduler.Scheduler
			if !noScheduler {
				interval := time.Duration(e.cfg.Scheduler.IntervalSec) * time.Second
				sched = scheduler.New(e.runner, interval, e.logger.Named("scheduler"))
				srv.WithScheduler(sched)
				sched.Start(ctx)
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				e.logger.Infow("HTTP API listening", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
				"http": func(ctx context.Context) error {
					return httpServer.Shutdown(ctx)
				},
				"scheduler": func(ctx context.Context) error {
					if sched != nil {
						sched.Stop()
					}
					return nil
				},
			})

			select {
			case err := <-serveErr:
				if sched != nil {
					sched.Stop()
				}
				return fmt.Errorf("http server: %w", err)
			case code := <-wait:
				e.logger.Infow("Shutdown complete", "exitCode", code)
				if code != 0 {
					return fmt.Errorf("shutdown finished with exit code %d", code)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API only; rely on external cron for passes")

	return cmd
}
