package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/server"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
		cors bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       ":8000",
			Sources:     cli.EnvVars("LUMIA_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "cors",
			Usage:       "Allow cross-origin requests",
			Value:       true,
			Sources:     cli.EnvVars("LUMIA_CORS"),
			Destination: &cors,
		},
	}
	flags = append(flags, assistantFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the question answering HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			logger := logging.From(ctx)

			uc, cleanup, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			gin.SetMode(gin.ReleaseMode)
			var opts []server.Option
			if cors {
				opts = append(opts, server.WithCORS())
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           server.New(ctx, uc, opts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				logger.Info("starting server", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "server stopped", goerr.V("addr", addr))
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				logger.Info("shutting down server")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shut down server")
				}
				return nil
			})

			return eg.Wait()
		},
	}
}
