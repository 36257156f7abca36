// Package healthcheck serves the hosting platform's liveness probe. Any
// request gets a fixed "alive" response; nothing here reflects actual bot
// state.
package healthcheck

import (
	"context"
	"net/http"
	"time"

	logx "github.com/carmelo-bot/server/pkg/logger"
)

// StartServer listens on addr and answers every request with 200 "alive".
// The returned server should be shut down when the process stops.
func StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alive"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Warn().Err(err).Str("addr", addr).Msg("health server stopped")
		}
	}()

	logx.Info().Str("addr", addr).Msg("health server listening")
	return srv
}

// Shutdown stops the server with a short grace period.
func Shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
