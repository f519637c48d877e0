// Package debughttp serves the optional status listener of the watch
// command: metrics, the verdict stream, a health probe and pprof.
package debughttp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	httppprof "net/http/pprof"
	"strings"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Routes are the optional handlers mounted next to pprof.
type Routes struct {
	Metrics http.Handler // /metrics
	Stream  http.Handler // /ws
	Status  http.Handler // /status
}

// StartStatusServer starts the status HTTP server on addr and shuts it down
// when ctx is canceled. It returns the bound address right after listening
// so address conflicts fail fast. An empty addr disables the server.
func StartStatusServer(ctx context.Context, addr string, log *slog.Logger, routes Routes) (net.Addr, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           NewMux(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if log != nil {
			log.Info("status listening", "addr", ln.Addr().String())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && log != nil {
			log.Error("status server error", "err", err)
		}
	}()

	return ln.Addr(), nil
}

// NewMux builds the status routes.
func NewMux(routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}
	if routes.Stream != nil {
		mux.Handle("/ws", routes.Stream)
	}
	if routes.Status != nil {
		mux.Handle("/status", routes.Status)
	}
	mux.HandleFunc("/debug/pprof/", httppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", httppprof.Trace)
	return mux
}
