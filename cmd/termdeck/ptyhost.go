package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/internal/ptyhost"
)

func newPtyHostCmd() *cobra.Command {
	var addr string
	var tokenValue string
	var shell []string
	cmd := &cobra.Command{
		Use:   "ptyhost",
		Short: "Serve local shells over websocket for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			host := ptyhost.New(ptyhost.Config{
				Command: shell,
				Token:   tokenValue,
				Logger:  logger,
			})
			mux := http.NewServeMux()
			mux.Handle("/term", host)

			server := &http.Server{Addr: addr, Handler: mux}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			logger.Info("pty host listening", "addr", addr, "endpoint", ptyhost.Endpoint(addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8767", "listen address")
	cmd.Flags().StringVar(&tokenValue, "token", "", "require this token on connections")
	cmd.Flags().StringSliceVar(&shell, "shell", nil, "shell command to run per connection (default $SHELL)")
	return cmd
}
