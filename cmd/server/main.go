package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maneesh/schematic/internal/config"
	"github.com/maneesh/schematic/internal/handlers"
	"github.com/maneesh/schematic/internal/logging"
	"github.com/maneesh/schematic/internal/metrics"
	"github.com/maneesh/schematic/internal/schema"
	"github.com/maneesh/schematic/internal/search"
	"github.com/maneesh/schematic/internal/storage"
	"github.com/maneesh/schematic/internal/tracing"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting schematic service",
		zap.String("service", cfg.ServiceName),
		zap.String("port", cfg.ServicePort),
		zap.String("db_driver", cfg.DBDriver),
	)

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(ctx, log, cfg.ServiceName, cfg.JaegerEndpoint, cfg.TracingEnabled)
	if err != nil {
		log.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("error shutting down tracer", zap.Error(err))
		}
	}()

	// Initialize MinIO client
	log.Info("connecting to MinIO", zap.String("endpoint", cfg.MinIOEndpoint))
	minioClient, err := storage.NewMinioClient(
		ctx,
		log,
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucketName,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		log.Fatal("failed to initialize MinIO client", zap.Error(err))
	}

	// Initialize record store and create the schema
	log.Info("connecting to record store", zap.String("driver", cfg.DBDriver))
	recordStore, err := storage.NewRecordStore(cfg.DBDriver, cfg.GetDSN())
	if err != nil {
		log.Fatal("failed to initialize record store", zap.Error(err))
	}
	defer recordStore.Close()

	if err := recordStore.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate record store", zap.Error(err))
	}

	// Redis is a cache only; run without it when unreachable
	var cache handlers.SchemaCache
	redisClient, err := storage.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	if err != nil {
		log.Warn("schema cache disabled", zap.String("addr", cfg.GetRedisAddr()), zap.Error(err))
	} else {
		defer redisClient.Close()
		cache = redisClient
	}

	matcher, err := newMatcher(cfg)
	if err != nil {
		log.Fatal("failed to load search dictionaries", zap.Error(err))
	}

	m := metrics.New()
	loader := handlers.NewSchemaLoader(minioClient, cache, m, log)

	router := handlers.NewRouter(handlers.Router{
		Upload:  handlers.NewUploadHandler(recordStore, minioClient, schema.DefaultRegistry(), m, log, cfg.GetMaxUploadBytes()),
		Search:  handlers.NewSearchHandler(recordStore, loader, matcher, m, log),
		Schema:  handlers.NewSchemaHandler(recordStore, loader, log),
		Metrics: m,
		Log:     log,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// newMatcher loads the configured spelling dictionary and thesaurus; empty
// paths select the embedded defaults
func newMatcher(cfg *config.Config) (*search.Matcher, error) {
	speller, err := search.LoadSpeller(cfg.SpellingDictionary)
	if err != nil {
		return nil, err
	}
	thesaurus, err := search.LoadThesaurus(cfg.ThesaurusPath)
	if err != nil {
		return nil, err
	}
	return search.NewMatcher(speller, thesaurus, cfg.FuzzyCutoff), nil
}
