package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/comfforts/logger"

	"github.com/localmart/catalog-ingest/internal/pipeline"
	"github.com/localmart/catalog-ingest/internal/runs"
	"github.com/localmart/catalog-ingest/internal/server"
	"github.com/localmart/catalog-ingest/internal/stores/mongodb"
	"github.com/localmart/catalog-ingest/internal/stores/sqlite"
	"github.com/localmart/catalog-ingest/pkg/domain"
	"github.com/localmart/catalog-ingest/pkg/utils"
)

const (
	defaultPort       = "8080"
	defaultStore      = "sqlite"
	defaultMaxWriters = 8
)

func main() {
	port := flag.String("port", defaultPort, "Server port")
	storeKind := flag.String("store", defaultStore, "Catalog store backend: sqlite or mongo")
	useRedis := flag.Bool("redis", false, "Keep run records in Redis instead of process memory")
	maxWriters := flag.Int("max-writers", defaultMaxWriters, "Concurrent offer writes per chunk")
	flag.Parse()

	l := logger.GetSlogLogger()
	ctx := logger.WithLogger(context.Background(), l)

	// catalog store
	var store domain.CatalogStore
	var err error
	switch *storeKind {
	case "sqlite":
		cfg := utils.BuildSQLiteConfig()
		store, err = sqlite.NewCatalogStore(cfg.DBFile)
	case "mongo":
		cfg := utils.BuildMongoConfig()
		store, err = mongodb.NewCatalogStore(ctx, mongodb.MongoConfig{
			Protocol: cfg.Protocol,
			Host:     cfg.Host,
			User:     cfg.User,
			Pwd:      cfg.Pwd,
			Params:   cfg.Params,
			DBName:   cfg.DBName,
		})
	default:
		log.Fatalf("Unknown store backend: %s", *storeKind)
	}
	if err != nil {
		log.Fatalf("Failed to initialize %s catalog store: %v", *storeKind, err)
	}
	defer store.Close(ctx)

	// run registry
	var registry runs.Registry
	if *useRedis {
		cfg := utils.BuildRedisConfig()
		redisReg, err := runs.NewRedisRegistry(ctx, runs.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Pwd,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("Failed to connect run registry to redis: %v", err)
		}
		defer redisReg.Close()
		registry = redisReg
	} else {
		registry = runs.NewMemoryRegistry()
	}

	ingestor := pipeline.NewIngestor(store, registry, *maxWriters)
	router := server.NewRouter(server.NewHandler(ingestor, store, registry))

	addr := fmt.Sprintf(":%s", *port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		l.Info("shutting down server")
		if err := srv.Shutdown(context.Background()); err != nil {
			l.Error("error shutting down server", "error", err.Error())
		}
	}()

	l.Info("starting catalog ingest server", "addr", addr, "store", *storeKind)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
