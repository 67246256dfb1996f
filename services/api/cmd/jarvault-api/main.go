package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jarvault/pkg/bus"
	"jarvault/pkg/db"
	jvs3 "jarvault/pkg/s3"
	"jarvault/pkg/telemetry"
	"jarvault/services/api"
	"jarvault/services/jarcache"
)

func main() {
	if err := run("jarvault-api"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownTelemetry != nil {
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
			}
		}
	}()

	s3Client, err := jvs3.NewClientFromEnv()
	if err != nil {
		return fmt.Errorf("init s3 client: %w", err)
	}

	bucket := strings.TrimSpace(os.Getenv("S3_BUCKET"))
	if bucket == "" {
		return errors.New("S3_BUCKET is required")
	}

	if err := s3Client.EnsureBucket(ctx, bucket); err != nil {
		return fmt.Errorf("ensure bucket %q: %w", bucket, err)
	}

	store := &api.Store{}

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn != "" {
		pool, err := db.Open(ctx, dsn)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		orm, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return fmt.Errorf("open gorm session: %w", err)
		}

		store.DB = pool
		store.ORM = orm
	} else {
		logger.Printf("WARN DATABASE_URL not set, catalog and audit endpoints disabled")
	}

	var eventBus *bus.Bus
	if natsURL := strings.TrimSpace(os.Getenv("NATS_URL")); natsURL != "" {
		eventBus, err = bus.New(natsURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer eventBus.Close()
	}

	metrics := jarcache.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	engineCfg := jarcache.Config{
		Store:   s3Client,
		Bucket:  bucket,
		WorkDir: strings.TrimSpace(os.Getenv("JARVAULT_WORK_DIR")),
		Metrics: metrics,
		Logger:  logger,
	}
	if eventBus != nil {
		engineCfg.Bus = eventBus
	}

	engine, err := jarcache.New(engineCfg)
	if err != nil {
		return fmt.Errorf("init cache engine: %w", err)
	}

	store.Cache = engine
	store.Catalog = jarcache.NewCatalog()

	apiLayer, err := api.New(store, api.Config{})
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}

	routes, err := apiLayer.Routes()
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", readyHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/v1/", routes)

	addr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:    addr,
		Handler: middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
