package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
)

const shutdownTimeout = 5 * time.Second

// routes serves liveness on /health and the run counters on /metrics.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctxlog.FromContext(a.ctx).Debug("Health check requested.", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	mux.Handle("GET /metrics", a.prometheus.Handler())
	return mux
}

// startServer serves routes in the background while a flow runs. A zero
// port disables it.
func (a *App) startServer() {
	logger := ctxlog.FromContext(a.ctx)
	if a.config.HealthcheckPort == 0 {
		logger.Debug("Status server disabled.")
		return
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.HealthcheckPort),
		Handler:           a.routes(),
		ReadHeaderTimeout: shutdownTimeout,
	}
	a.httpServer = srv
	go func() {
		logger.Info("🩺 Status server listening.", "health", "http://localhost"+srv.Addr+"/health", "metrics", "http://localhost"+srv.Addr+"/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server stopped.", "error", err)
		}
	}()
}

// stopServer shuts the status server down, if one is running.
func (a *App) stopServer() error {
	if a.httpServer == nil {
		return nil
	}
	srv := a.httpServer
	a.httpServer = nil

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	ctxlog.FromContext(a.ctx).Debug("Status server stopped.")
	return nil
}
