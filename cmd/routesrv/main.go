package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/logtrace"
	"github.com/routeplane/routeplane/internal/routesrv/apis"
	"github.com/routeplane/routeplane/internal/routesrv/audit"
	"github.com/routeplane/routeplane/internal/routesrv/cache"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/db/dbmanager"
	"github.com/routeplane/routeplane/internal/routesrv/db/postgresql"
	"github.com/routeplane/routeplane/internal/routesrv/eventlog"
	"github.com/routeplane/routeplane/internal/routesrv/metrics"
	"github.com/routeplane/routeplane/internal/routesrv/mutator"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/resolver"
	"github.com/routeplane/routeplane/internal/routesrv/server"
)

type cmdoptions struct {
	configFile *string
}

func main() {
	opt := parseFlags()

	if err := config.LoadConfig(*opt.configFile); err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config file: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel)

	slog := log.With().Str("state", "init").Logger()
	ctx := context.Background()

	pool, err := dbmanager.NewPool(&cfg.Postgres)
	if err != nil {
		slog.Error().Err(err).Msg("unable to connect to postgres")
		os.Exit(1)
	}
	defer pool.Close()

	store := postgresql.NewRouteStore(pool)
	if aerr := store.EnsureSchema(ctx); aerr != nil {
		slog.Error().Err(aerr).Msg("unable to apply record store schema")
		os.Exit(1)
	}

	routeCache, err := cache.NewRouteCache(&cfg.Redis)
	if err != nil {
		slog.Error().Err(err).Msg("unable to connect to redis")
		os.Exit(1)
	}
	defer routeCache.Close()

	producer, err := eventlog.NewProducer(&cfg.Kafka)
	if err != nil {
		slog.Error().Err(err).Msg("unable to create kafka producer")
		os.Exit(1)
	}
	defer producer.Close()

	auditStore, err := audit.NewStore(ctx, &cfg.Mongo)
	if err != nil {
		slog.Error().Err(err).Msg("unable to connect to mongodb")
		os.Exit(1)
	}
	defer auditStore.Close(ctx)

	resilienceMetrics := metrics.NewResilienceMetrics()
	kernel := resilience.NewKernel(&cfg.Resilience, resilienceMetrics)

	h := &apis.Handlers{
		Resolver: resolver.New(store, routeCache, kernel, metrics.NewResolveMetrics()),
		Mutator:  mutator.New(store, producer, kernel, metrics.NewWriteMetrics()),
		Audit:    auditStore,
		Kernel:   kernel,
		Ready:    readiness(pool, routeCache, auditStore),
	}

	s := server.CreateNewServer(h)
	s.MountHandlers()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: s.Router,
	}

	go func() {
		slog.Info().Str("port", cfg.Server.Port).Msg("routesrv listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	waitForShutdown(httpServer, kernel, cfg)
}

// waitForShutdown drains gracefully: stop admitting work, wait for in-flight
// requests up to the drain timeout, then stop the listener.
func waitForShutdown(httpServer *http.Server, kernel *resilience.Kernel, cfg *config.ConfigParam) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info().Str("signal", sig.String()).Msg("shutdown signal received, draining")
	kernel.Drainer().StartDraining()
	if !kernel.Drainer().WaitForDrain(time.Duration(cfg.Resilience.DrainTimeout) * time.Second) {
		log.Warn().Int("in_flight", kernel.Drainer().InFlight()).Msg("drain timed out, forcing shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("routesrv stopped")
}

func readiness(pool *dbmanager.Pool, routeCache *cache.RouteCache, auditStore *audit.Store) func() map[string]string {
	return func() map[string]string {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok", "redis": "ok", "mongo": "ok"}
		if err := pool.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
		}
		stats := pool.Stats()
		checks["info:postgres_conns"] = fmt.Sprintf("%d in use / %d open", stats.InUse, stats.OpenConnections)
		if err := routeCache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
		}
		if err := auditStore.Ping(ctx); err != nil {
			checks["mongo"] = err.Error()
		}
		return checks
	}
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	opt.configFile = flag.String("config", "", "Path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
