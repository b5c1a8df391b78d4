// Package server runs the storefront: the HTTP API (REST, SSE, WebSocket,
// GraphQL, metrics) and the gRPC health endpoint, until ctx ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tommyfx/storefront/app/routes"
	"github.com/tommyfx/storefront/config"
	"github.com/tommyfx/storefront/internal/kernel"
	grpcserver "github.com/tommyfx/storefront/pkg/grpc"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/middleware"
	"github.com/tommyfx/storefront/pkg/ws"
)

// ShutdownTimeout bounds the graceful drain. Connections still open after
// it (usually SSE streams) are closed.
var ShutdownTimeout = 10 * time.Second

// Run boots the kernel, serves until ctx is cancelled and then shuts down
// in order: HTTP (sockets first), gRPC, then the kernel.
func Run(ctx context.Context) error {
	k, err := kernel.Boot(ctx, kernel.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := k.Close(); err != nil {
			logger.Error("server: kernel close", "error", err)
		}
	}()

	cors := middleware.DefaultCORSOptions()
	if origins := middleware.ParseOrigins(config.CORSOrigins()); len(origins) > 0 {
		cors.AllowedOrigins = origins
	}
	ws.SetCheckOrigin(func(r *http.Request) bool { return cors.AllowsOrigin(r.Header.Get("Origin")) })

	hub := ws.NewHub()
	r, err := routes.New(routes.Deps{
		Auth:         k.Auth,
		Moderation:   k.Moderation,
		Testimonials: k.Testimonials,
		Profile:      k.Profile,
		Hub:          hub,
		Probe:        k.Probe,
		CORS:         cors,
		RateLimit:    config.RateLimit(),
	})
	if err != nil {
		return fmt.Errorf("server: routes: %w", err)
	}

	gsrv, err := grpcserver.Start(config.GRPCPort(), k.Probe)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	// Hijacked WebSocket connections are invisible to Shutdown.
	srv.RegisterOnShutdown(hub.CloseAll)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr, "env", config.AppEnv())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		gsrv.Stop()
		return fmt.Errorf("server: http: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "sockets", hub.Count())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server: graceful shutdown timed out, closing connections", "error", err)
		_ = srv.Close()
	}
	gsrv.Shutdown(shutdownCtx)

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: http: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
