package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docsearch/internal/server"
	"docsearch/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API over the upload directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			sc := a.cfg.Server
			if addr != "" {
				sc.Addr = addr
			}

			srv := server.New(server.Options{
				Addr:           sc.Addr,
				UploadDir:      sc.UploadDir,
				MaxDocuments:   sc.MaxDocuments,
				MaxUploadBytes: int64(sc.MaxUploadMB) << 20,
				QueryRate:      sc.QueryRatePerSec,
				QueryBurst:     sc.QueryBurst,
			}, a.newProcessor, a.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(ctx) }()

			if watch {
				if err := os.MkdirAll(sc.UploadDir, 0o755); err != nil {
					return err
				}
				w, err := watcher.New(sc.UploadDir, srv, watcher.DefaultDebounce, a.logger)
				if err != nil {
					return err
				}
				go func() {
					if err := w.Run(ctx); err != nil && ctx.Err() == nil {
						a.logger.Error().Err(err).Msg("Watcher stopped")
					}
				}()
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Ingest files dropped into the upload directory")
	return cmd
}
