package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	jaasjwt "github.com/bionicotaku/lingo-utils-jaasjwt"
	"github.com/bionicotaku/lingo-utils-jaasjwt/httpapi"
	"github.com/bionicotaku/lingo-utils-jaasjwt/logging"
)

func newServeCmd(load func() (config, error)) *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the token HTTP service",
		Long: `Run the token HTTP service.

Requires JAASJWT_TENANT_ID, JAASJWT_KEY_ID and at least one of JAASJWT_API_KEYS
or JAASJWT_GOOGLE_AUDIENCE. The signing key is loaded on the first request.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log, closer, err := logging.New(cfg.loggingConfig())
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			issuer, err := cfg.newIssuer(ctx)
			if err != nil {
				return err
			}
			auth, err := jaasjwt.NewCallerAuthenticator(cfg.callerConfig())
			if err != nil {
				return err
			}

			srv := httpapi.NewServer(httpapi.Config{
				Addr:           cfg.Addr,
				AllowedOrigins: cfg.CORSOrigins,
				ReadTimeout:    cfg.ReadTimeout,
				WriteTimeout:   cfg.WriteTimeout,
			}, httpapi.Deps{
				Issuer:        issuer,
				Keys:          issuer,
				Authenticator: auth,
				Logger:        log,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			log.Info().Str("addr", cfg.Addr).Str("tenant", cfg.TenantID).Msg("jaasjwt listening")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
	return cmd
}
