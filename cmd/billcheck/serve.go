package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/billcheck/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			p, cleanup, err := a.pipeline(ctx, true)
			if err != nil {
				return err
			}
			defer cleanup()
			uploads, err := a.uploads(ctx)
			if err != nil {
				return fmt.Errorf("opening upload store: %w", err)
			}

			srv := server.New(server.Options{
				Pipeline:    p,
				Uploads:     uploads,
				Cache:       p.Comparer.Resolver.Cache,
				CORSOrigins: a.cfg.Server.CORSOrigins,
				MaxUploadMB: a.cfg.Server.MaxUploadMB,
				Logger:      a.log,
			})

			if port == 0 {
				port = a.cfg.Server.Port
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(fmt.Sprintf(":%d", port)) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default: server.port)")
	return cmd
}
