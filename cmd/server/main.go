package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/catalog"
	"github.com/hacknation/dataset-publisher/internal/handlers"
	"github.com/hacknation/dataset-publisher/internal/legacy"
	"github.com/hacknation/dataset-publisher/internal/observability"
	"github.com/hacknation/dataset-publisher/internal/services"
	"github.com/hacknation/dataset-publisher/internal/storage"
	"github.com/hacknation/dataset-publisher/internal/validation"
	"github.com/hacknation/dataset-publisher/internal/wizard"
)

// datasetStore is what the process needs from a storage backend
type datasetStore interface {
	wizard.Store
	validation.TopicLookup
	handlers.StatsSource
	services.CatalogStore
}

// topics offered on the topic step
var topics = map[int64]string{
	1:  "Business and economy",
	2:  "Environment",
	3:  "Mapping",
	4:  "Crime and justice",
	5:  "Defence",
	6:  "Government",
	7:  "Society",
	8:  "Health",
	9:  "Government spending",
	10: "Transport",
	11: "Education",
	12: "Towns and cities",
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	config := loadConfig()
	if config.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("host", config.Host).
		Str("port", config.Port).
		Msg("Starting dataset publisher")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var reporter observability.Reporter = observability.LogReporter{}
	if config.SentryDSN != "" {
		sentryReporter, err := observability.NewSentryReporter(config.SentryDSN, config.Environment)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Sentry")
		}
		defer sentryReporter.Flush(2 * time.Second)
		reporter = sentryReporter
		log.Info().Msg("Sentry reporting enabled")
	}

	var store datasetStore
	var checks []handlers.HealthCheck
	switch config.StorageBackend {
	case "memory":
		log.Warn().Msg("Using in-memory storage, datasets are lost on restart")
		mem := storage.NewMemoryStorage()
		for id, title := range topics {
			mem.AddTopic(id, title)
		}
		store = mem
	default:
		log.Info().Msg("Initializing Postgres storage...")
		pg, err := storage.NewPostgresStorage(
			config.DBHost,
			config.DBPort,
			config.DBUser,
			config.DBPassword,
			config.DBName,
			config.DBSSLMode,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Postgres storage")
		}
		defer pg.Close()
		for id, title := range topics {
			if err := pg.AddTopic(ctx, id, title); err != nil {
				log.Fatal().Err(err).Int64("topic_id", id).Msg("Failed to seed topic")
			}
		}
		store = pg
		log.Info().Msg("Postgres storage initialized")
	}

	formatter := catalog.NewDCATFormatter(config.PublicURL)
	opts := []wizard.Option{
		wizard.WithReporter(reporter),
		wizard.WithAsyncSync(config.SyncAsync),
	}

	if config.CatalogURL != "" {
		opts = append(opts, wizard.WithSyncer(catalog.NewSyncClient(config.CatalogURL, config.CatalogAPIKey, reporter)))
		log.Info().Str("url", config.CatalogURL).Msg("Catalog sync enabled")
	} else {
		log.Warn().Msg("CATALOG_URL not configured - catalog sync disabled")
	}

	if config.MinIOEndpoint != "" {
		log.Info().Msg("Initializing MinIO manifest archive...")
		archive, err := storage.NewMinIOStorage(
			config.MinIOEndpoint,
			config.MinIOPublicEndpoint,
			config.MinIOAccessKey,
			config.MinIOSecretKey,
			config.MinIOBucket,
			config.MinIOUseSSL,
			formatter,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MinIO storage")
		}
		opts = append(opts, wizard.WithNotifiers(archive))
		checks = append(checks, handlers.HealthCheck{Name: "storage", Check: archive.HealthCheck})
	}

	if config.RabbitMQURL != "" {
		log.Info().Msg("Initializing RabbitMQ publisher...")
		publisher, err := services.NewRabbitMQPublisher(config.RabbitMQURL, config.RabbitMQExchange, formatter)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ publisher")
		}
		defer publisher.Close()
		opts = append(opts, wizard.WithNotifiers(publisher))
		checks = append(checks, handlers.HealthCheck{
			Name:  "rabbitmq",
			Check: func(context.Context) error { return publisher.HealthCheck() },
		})

		log.Info().Msg("Initializing RabbitMQ consumer...")
		consumer, err := services.NewRabbitMQConsumer(config.RabbitMQURL, config.RabbitMQExchange, store)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ consumer")
		}
		defer consumer.Close()
		if err := consumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start RabbitMQ consumer")
		}
	}

	var legacyAPI legacy.Getter
	if config.LegacyHost != "" {
		legacyAPI = legacy.NewClient(legacy.Config{Host: config.LegacyHost, APIKey: config.LegacyAPIKey}, reporter)
	}

	orchestrator := wizard.New(store, validation.NewEngine(store), opts...)
	handler := handlers.NewHandler(orchestrator, store, legacyAPI, checks...)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		Handler:      handlers.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Msg("Server starting...")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

type Config struct {
	Host                string
	Port                string
	Environment         string
	Debug               bool
	PublicURL           string
	StorageBackend      string
	DBHost              string
	DBPort              string
	DBUser              string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	RabbitMQURL         string
	RabbitMQExchange    string
	MinIOEndpoint       string
	MinIOPublicEndpoint string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool
	CatalogURL          string
	CatalogAPIKey       string
	SyncAsync           bool
	LegacyHost          string
	LegacyAPIKey        string
	SentryDSN           string
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	return &Config{
		Host:                getEnv("PUBLISHER_HOST", "0.0.0.0"),
		Port:                getEnv("PUBLISHER_PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		Debug:               getEnv("DEBUG", "false") == "true",
		PublicURL:           getEnv("PUBLIC_URL", "http://localhost:8080"),
		StorageBackend:      getEnv("STORAGE_BACKEND", "postgres"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "publisher"),
		DBSSLMode:           getEnv("DB_SSL_MODE", "disable"),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:    getEnv("RABBITMQ_EXCHANGE", "datasets.events"),
		MinIOEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinIOPublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", ""),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", "minioadmin123"),
		MinIOBucket:         getEnv("MINIO_BUCKET_NAME", "dataset-manifests"),
		MinIOUseSSL:         getEnv("MINIO_USE_SSL", "false") == "true",
		CatalogURL:          getEnv("CATALOG_URL", ""),
		CatalogAPIKey:       getEnv("CATALOG_API_KEY", ""),
		SyncAsync:           getEnv("SYNC_ASYNC", "false") == "true",
		LegacyHost:          getEnv("LEGACY_HOST", ""),
		LegacyAPIKey:        getEnv("LEGACY_API_KEY", ""),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
