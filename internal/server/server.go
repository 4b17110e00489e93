// package server contains middleware & handlers for the footprint HTTP API
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery and metrics.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own a set of routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
