package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httpDelivery "github.com/catalogsync/backend/internal/delivery/http"
	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/pricing"
	"github.com/catalogsync/backend/internal/logger"
	"github.com/catalogsync/backend/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only preview server",
		Long: `Serve catalog summaries, reclassification previews and pricing sheet previews
over HTTP. Nothing the server computes is written back.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.Component(ctx, "server")

			table, err := a.ruleTable()
			if err != nil {
				return err
			}

			sheet, charset := a.cfg.Pricing.Sheet, a.cfg.Pricing.Charset
			parse := func(ctx context.Context, r io.Reader, filename string) ([]domain.PricingRow, error) {
				return pricing.Parse(ctx, r, filename, sheet, charset)
			}
			handler := httpDelivery.NewHandler(
				a.shards(),
				table,
				usecase.NewReconciler(a.matcher()),
				parse,
				a.cfg.Server.MaxUploadBytes,
			)

			if port != "" {
				a.cfg.Server.Port = port
			}
			router := httpDelivery.SetupRouter(a.cfg, handler)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%s", a.cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Int("rule_version", table.Version).Msg("server listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("failed to start server: %w", err)
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default: server.port)")
	return cmd
}
