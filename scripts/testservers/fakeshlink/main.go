// Command fakeshlink serves an in-memory Shlink-compatible API with a
// simulated redirect cache, for local shortfire runs:
//
//	go run ./scripts/testservers/fakeshlink -addr :8080 -api-key dev
//	SHLINK_API_KEY=dev shortfire run --scenario cache-performance
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/torosent/shortfire/internal/fakeshlink"
	"github.com/torosent/shortfire/internal/logging"
)

func main() {
	fs := pflag.NewFlagSet("fakeshlink", pflag.ExitOnError)
	addr := fs.String("addr", ":8080", "Listen address")
	apiKey := fs.String("api-key", "", "Required X-Api-Key for creation (empty accepts any)")
	hit := fs.Duration("hit-latency", 2*time.Millisecond, "Delay for cached redirects")
	miss := fs.Duration("miss-latency", fakeshlink.DefaultMissLatency, "Delay for uncached redirects")
	ttl := fs.Duration("cache-ttl", fakeshlink.DefaultCacheTTL, "Cache entry lifetime")
	noCache := fs.Bool("no-cache", false, "Treat every redirect as a cache miss")
	level := fs.String("log-level", "info", "Log level")
	_ = fs.Parse(os.Args[1:])

	logger, err := logging.New(logging.Options{Level: *level})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	srv := fakeshlink.New(fakeshlink.Options{
		APIKey:       *apiKey,
		HitLatency:   *hit,
		MissLatency:  *miss,
		CacheTTL:     *ttl,
		DisableCache: *noCache,
		Logger:       logger,
	})
	httpSrv := &http.Server{Addr: *addr, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake shlink listening", zap.String("addr", *addr))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("stopped", zap.Any("stats", srv.Stats()))
}
