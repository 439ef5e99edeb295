package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/logtrace"
	"github.com/routeplane/routeplane/internal/routesrv/audit"
	"github.com/routeplane/routeplane/internal/routesrv/cache"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/consumers"
	"github.com/routeplane/routeplane/internal/routesrv/eventlog"
	"github.com/routeplane/routeplane/internal/routesrv/metrics"
)

type cmdoptions struct {
	configFile   *string
	consumerType *string
}

func main() {
	opt := parseFlags()

	if err := config.LoadConfig(*opt.configFile); err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config file: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewConsumerMetrics()

	var group string
	var handler eventlog.Handler
	switch *opt.consumerType {
	case consumers.GroupCacheInvalidation:
		routeCache := mustCache(cfg)
		defer routeCache.Close()
		group = consumers.GroupName(&cfg.Kafka, consumers.GroupCacheInvalidation)
		handler = consumers.NewInvalidatorHandler(group, routeCache, m)
	case consumers.GroupCacheWarming:
		routeCache := mustCache(cfg)
		defer routeCache.Close()
		group = consumers.GroupName(&cfg.Kafka, consumers.GroupCacheWarming)
		handler = consumers.NewWarmerHandler(group, routeCache, m)
	case consumers.GroupAuditLog:
		auditStore, err := audit.NewStore(ctx, &cfg.Mongo)
		if err != nil {
			log.Error().Err(err).Msg("unable to connect to mongodb")
			os.Exit(1)
		}
		defer auditStore.Close(context.Background())
		group = consumers.GroupName(&cfg.Kafka, consumers.GroupAuditLog)
		handler = consumers.NewAuditHandler(group, auditStore, m)
	default:
		fmt.Fprintf(os.Stderr, "unknown consumer type %q (want %s, %s or %s)\n",
			*opt.consumerType, consumers.GroupCacheInvalidation, consumers.GroupCacheWarming, consumers.GroupAuditLog)
		os.Exit(2)
	}

	consumer, err := eventlog.NewConsumer(&cfg.Kafka, group, handler)
	if err != nil {
		log.Error().Err(err).Msg("unable to create consumer")
		os.Exit(1)
	}
	defer consumer.Close()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stop
		log.Info().Str("signal", sig.String()).Str("group", group).Msg("shutdown signal received")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("group", group).Msg("consumer terminated")
		os.Exit(1)
	}
}

func mustCache(cfg *config.ConfigParam) *cache.RouteCache {
	routeCache, err := cache.NewRouteCache(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("unable to connect to redis")
		os.Exit(1)
	}
	return routeCache
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	opt.configFile = flag.String("config", "", "Path to the config file")
	opt.consumerType = flag.String("type", "", "Consumer to run: cache-invalidation, cache-warming or audit-log")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -type <consumer> [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
