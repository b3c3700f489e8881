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
	"pkt.systems/termdeck/internal/turnmock"
)

func newTurnMockCmd() *cobra.Command {
	var addr string
	var delayMs int
	var apiKey string
	cmd := &cobra.Command{
		Use:   "turnmock",
		Short: "Serve scripted agent turn streams for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			handler := turnmock.New(turnmock.Config{
				Delay:  time.Duration(delayMs) * time.Millisecond,
				APIKey: apiKey,
				Logger: logger,
			})
			mux := http.NewServeMux()
			mux.Handle("/turn", handler)

			server := &http.Server{Addr: addr, Handler: mux}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			logger.Info("turn mock listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8765", "listen address")
	cmd.Flags().IntVar(&delayMs, "delay-ms", 30, "pause between stream records")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "require this bearer token on requests")
	return cmd
}
