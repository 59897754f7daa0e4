package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/supabase/pkg/httpx"
	"github.com/aussiebroadwan/supabase/pkg/slogx"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

const shutdownGracePeriod = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		roles []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a token introspection server",
		Long: `serve runs an HTTP server that keeps the project's signing keys fresh in the
background and answers:

  GET /livez          liveness
  GET /readyz         503 until signing keys are available
  GET /v1/whoami      the verified claims of the bearer token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			c.Start()
			defer c.Close()

			start := time.Now()
			whoami := []httpx.Middleware{httpx.Authenticate(c.Validator())}
			if len(roles) > 0 {
				whoami = append(whoami, httpx.RequireRole(roles...))
			}

			mux := http.NewServeMux()
			mux.Handle("GET /livez", httpx.Livez(start, Version))
			mux.Handle("GET /readyz", httpx.Readyz(start, Version, c))
			mux.Handle("GET /v1/whoami", httpx.Chain(http.HandlerFunc(httpx.Whoami), whoami...))

			log := a.log
			srv := &http.Server{
				Handler:           slogx.HTTPMiddleware(log)(mux),
				ReadHeaderTimeout: 3 * time.Second,
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			log.Info("supactl serve starting", "addr", ln.Addr().String(), "version", Version)

			serverErrors := make(chan error, 1)
			go func() { serverErrors <- srv.Serve(ln) }()

			select {
			case err := <-serverErrors:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
				log.Info("shutdown signal received")
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error("graceful server shutdown failed", "err", err)
				_ = srv.Close()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "require one of these role claims on /v1/whoami")
	return cmd
}
