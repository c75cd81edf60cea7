package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexbotov/clashapi/internal/api"
	"github.com/alexbotov/clashapi/internal/auth"
	"github.com/alexbotov/clashapi/internal/keyring"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the key daemon and its management API",
		Long: `serve keeps one portal session open and exposes key management, the
audit trail and a statistics proxy over HTTP. Routes under /api/v1 require
the admin token whose bcrypt hash is set in CLASH_ADMIN_TOKEN_HASH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withKeyring(cmd, func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
				if port != "" {
					rt.cfg.Server.Port = port
				}
				return serve(ctx, rt, kr)
			})
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides CLASH_SERVER_PORT)")
	return cmd
}

func serve(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
	cfg := rt.cfg
	if cfg.Server.AdminTokenHash == "" {
		rt.logger.Warn("CLASH_ADMIN_TOKEN_HASH is not set, /api/v1 routes are disabled")
	}

	authSvc := auth.New(auth.DefaultConfig(cfg.Server.AdminTokenHash), rt.audit)
	handler := api.New(kr, rt.statsClient(), authSvc, rt.audit, cfg.Portal.KeyName, rt.logger,
		api.WithTrustedProxies(cfg.Server.TrustedProxies))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.SetupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		rt.logger.Info("management API listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func newHashTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [TOKEN]",
		Short: "Print the bcrypt hash to use as CLASH_ADMIN_TOKEN_HASH",
		Long:  `hash-token hashes TOKEN, or the first line of standard input when TOKEN is omitted.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}

			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
