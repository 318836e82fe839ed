package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	guardhttp "portalguard/http"
	"portalguard/identity"
	"portalguard/memory"
	"portalguard/rbac"
)

func newServeDevCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run an in-memory identity server with demo users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen == "" {
				listen = a.cfg.Dev.Listen
			}
			h, err := a.devHandler()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{Addr: listen, Handler: h, ReadHeaderTimeout: 5 * time.Second}
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			a.logger.Info("dev identity server listening", "addr", listen)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (users: ", listen)
			for i, u := range a.cfg.Dev.Users {
				if i > 0 {
					fmt.Fprint(cmd.OutOrStdout(), ", ")
				}
				fmt.Fprint(cmd.OutOrStdout(), u.Username)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ")")

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default dev.listen)")
	return cmd
}

// devHandler serves the identity API, the navigation of the bearer's role,
// a guarded /portal/* echo of the route registry and Prometheus metrics.
func (a *app) devHandler() (http.Handler, error) {
	svc, err := memory.NewService(a.cfg.Dev.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to start identity service: %w", err)
	}
	reg, err := rbac.NewRegistry(a.cfg.Registry)
	if err != nil {
		return nil, err
	}

	eval := rbac.NewEvaluator(reg, rbac.WithLogger(a.logger))
	guardCfg := guardhttp.APIConfig()
	guardCfg.Logger = a.logger
	guardCfg.LoginPath = a.cfg.Guard.LoginPath
	guardCfg.UnauthorizedPath = a.cfg.Guard.UnauthorizedPath
	guardCfg.SkipPaths = []string{a.cfg.Guard.LoginPath, a.cfg.Guard.UnauthorizedPath}
	mw := guardhttp.New(eval, guardhttp.BearerPrincipal(svc, 1024, 30*time.Second, a.logger), guardCfg)

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	portal := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := guardhttp.PrincipalFromRequest(r)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s may open %s\n", p.RoleKey, r.URL.Path)
	})

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
	r.Handle("/nav", mw.NavigationHandler())
	r.Mount("/portal", http.StripPrefix("/portal", mw.RequireRegisteredPath(portal)))
	r.Mount("/", identity.NewHandler(svc, identity.WithHandlerLogger(a.logger)))
	return r, nil
}
