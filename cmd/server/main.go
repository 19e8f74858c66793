package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/windfall/cicero/internal/analysis"
	"github.com/windfall/cicero/internal/capture"
	"github.com/windfall/cicero/internal/client"
	"github.com/windfall/cicero/internal/config"
	"github.com/windfall/cicero/internal/handler/http"
	"github.com/windfall/cicero/internal/logger"
	"github.com/windfall/cicero/internal/narration"
	"github.com/windfall/cicero/internal/progress"
	"github.com/windfall/cicero/internal/server"
	"github.com/windfall/cicero/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.Environment).Msg("Starting cicero")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Gemini client
	var geminiClient *client.GeminiClient
	if cfg.GCPProjectID != "" {
		if cfg.GeminiSAPath != "" {
			geminiClient, err = client.NewGeminiClientWithServiceAccount(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.GeminiSAPath)
		} else {
			geminiClient, err = client.NewGeminiClient(ctx, cfg.GCPProjectID, cfg.GCPLocation)
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Gemini client")
			geminiClient = nil
		} else {
			geminiClient = geminiClient.
				WithScoringModel(cfg.GeminiScoringModel).
				WithVoice(cfg.GeminiVoiceModel, cfg.GeminiVoiceName)
			log.Info().
				Str("scoring_model", cfg.GeminiScoringModel).
				Str("voice_model", cfg.GeminiVoiceModel).
				Msg("Gemini client initialized")
		}
	} else {
		log.Warn().Msg("GCP_PROJECT_ID not set, skipping Gemini initialization")
	}

	// Initialize Redis client
	var redisClient *client.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = client.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Redis client")
			redisClient = nil
		} else {
			log.Info().Msg("Redis client initialized")
		}
	}

	// Initialize Cloudflare R2 client
	var cloudflareClient *client.CloudflareClient
	if cfg.CloudflareAccessKeyID != "" && cfg.CloudflareSecretKey != "" && cfg.CloudflareR2Endpoint != "" && cfg.CloudflareBucketName != "" {
		cloudflareClient, err = client.NewCloudflareClient(ctx,
			cfg.CloudflareAccessKeyID,
			cfg.CloudflareSecretKey,
			cfg.CloudflareR2Endpoint,
			cfg.CloudflareBucketName,
			cfg.CloudflarePublicURL,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Cloudflare client")
			cloudflareClient = nil
		} else {
			log.Info().Msg("Cloudflare R2 client initialized")
		}
	}

	// Initialize GCS client (alternate audio store)
	var storageClient *client.StorageClient
	if cloudflareClient == nil && cfg.GCSBucketName != "" {
		storageClient, err = client.NewStorageClient(ctx, cfg.GCSBucketName)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize GCS client")
			storageClient = nil
		} else {
			log.Info().Str("bucket", cfg.GCSBucketName).Msg("GCS client initialized")
		}
	}
	if cloudflareClient == nil && storageClient == nil {
		log.Warn().Msg("No object storage configured, results will carry no audio handles")
	}

	// Initialize Pub/Sub client
	var pubsubClient *client.PubSubClient
	if cfg.PubSubTopic != "" && cfg.GCPProjectID != "" {
		pubsubClient, err = client.NewPubSubClient(ctx, cfg.GCPProjectID, cfg.PubSubTopic)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Pub/Sub client")
			pubsubClient = nil
		} else {
			log.Info().Str("topic", cfg.PubSubTopic).Msg("Pub/Sub client initialized")
		}
	}

	// Pick the audio store
	var audioStore analysis.ObjectStore
	if cloudflareClient != nil {
		audioStore = cloudflareClient
	} else if storageClient != nil {
		audioStore = storageClient
	}

	// Pick the speech provider, OpenAI as the fallback voice
	var speech narration.Speech
	if geminiClient != nil {
		speech = geminiClient
	} else if cfg.OpenAIAPIKey != "" {
		speech = client.NewOpenAIClient(cfg.OpenAIAPIKey)
		log.Info().Msg("Using OpenAI fallback for narration")
	} else {
		log.Warn().Msg("No speech provider configured, narration is text-only")
	}

	// Progress store, Redis-backed with in-memory fallback
	var kv progress.KV
	var queue narration.Queue
	if redisClient != nil {
		kv = redisClient
		queue = redisClient
	} else {
		log.Warn().Msg("No Redis configured, using in-memory progress store")
		kv = progress.NewMemoryKV()
	}
	store := progress.NewStore(kv, log)

	var analyzer analysis.Analyzer
	if geminiClient != nil {
		analyzer = geminiClient
	}

	// Core components
	gateway := narration.NewGateway(speech, audioStore, queue, log)
	pipeline := analysis.NewPipeline(analyzer, audioStore, cfg.AnalysisMaxAttempts, cfg.AnalysisBackoffBase, log)
	controller := capture.NewController(&capture.ChunkDevice{}, log)

	var publisher session.Publisher
	if pubsubClient != nil {
		publisher = pubsubClient
	}
	machine := session.NewMachine(controller, pipeline, store, gateway, publisher, log)

	// Initialize handlers
	healthHandler := http.NewHealthHandler()
	profileHandler := http.NewProfileHandler(store, gateway, log)
	progressHandler := http.NewProgressHandler(store)
	catalogHandler := http.NewCatalogHandler(gateway)
	sessionHandler := http.NewSessionHandler(machine, store, gateway, log)
	narrationHandler := http.NewNarrationHandler(gateway)

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(cfg, log, healthHandler, profileHandler, progressHandler, catalogHandler, sessionHandler, narrationHandler)

	// Start server
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	log.Info().Str("http_addr", cfg.HTTPAddress()).Msg("Server started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Close clients
	if geminiClient != nil {
		geminiClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if storageClient != nil {
		storageClient.Close()
	}
	if pubsubClient != nil {
		pubsubClient.Close()
	}

	log.Info().Msg("Server stopped")
}
