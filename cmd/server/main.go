package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/ai"
	"github.com/ClareAI/astra-receptionist-service/internal/core/conversation"
	"github.com/ClareAI/astra-receptionist-service/internal/core/flow"
	"github.com/ClareAI/astra-receptionist-service/internal/core/session"
	"github.com/ClareAI/astra-receptionist-service/internal/core/task"
	"github.com/ClareAI/astra-receptionist-service/internal/handler"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/internal/services/call"
	"github.com/ClareAI/astra-receptionist-service/internal/services/jobs"
	"github.com/ClareAI/astra-receptionist-service/internal/services/knowledge"
	"github.com/ClareAI/astra-receptionist-service/internal/services/schedule"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/pkg/gcs"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/metrics"
	"github.com/ClareAI/astra-receptionist-service/pkg/pubsub"
	"github.com/ClareAI/astra-receptionist-service/pkg/rag"
	"github.com/ClareAI/astra-receptionist-service/pkg/redis"
	"github.com/ClareAI/astra-receptionist-service/pkg/twilio"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Server represents the receptionist webhook gateway
type Server struct {
	config  *config.ReceptionistConfig
	router  *mux.Router
	repos   repository.RepositoryManager
	redis   *redis.RedisService
	events  *pubsub.PubSubService
	archive *gcs.GCSClient
	worker  *task.Worker
	bus     task.Bus
	indexer *rag.Indexer
}

// NewServer wires every service. Redis, Pub/Sub, GCS and semantic search are
// optional; the gateway runs without them in a degraded mode.
func NewServer(ctx context.Context, cfg *config.ReceptionistConfig) (*Server, error) {
	repos, err := repository.NewRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &Server{config: cfg, repos: repos}
	m := metrics.NewMetrics("receptionist")

	// Redis backs callback markers and the job wake-up bus
	var redisIface redis.RedisServiceInterface
	redisSvc, err := redis.NewRedisService(LoadRedisConfigFromEnv())
	if err != nil {
		logger.Base().Warn("failed to initialize redis service, running without callback markers", zap.Error(err))
		s.bus = task.NewLocalBus()
	} else {
		s.redis = redisSvc
		redisIface = redisSvc
		s.bus = task.NewRedisBus(redisSvc)
	}
	sessions := session.NewManager(redisIface, cfg.InstanceID)

	hours := schedule.NewService(repos.Tenant())
	kb := knowledge.NewService(repos.Knowledge())
	classifier := conversation.NewPatternClassifier()

	var (
		completer ai.ChatCompleter
		searcher  ai.PassageSearcher
		aiClient  *ai.Client
	)
	tools := ai.NewToolRegistry(kb, hours)
	if cfg.OpenAIAPIKey != "" {
		openaiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			openaiCfg.BaseURL = cfg.OpenAIBaseURL
		}
		openaiClient := openai.NewClientWithConfig(openaiCfg)
		completer = openaiClient

		store, err := rag.NewStore(rag.NewOpenAIEmbedder(openaiClient, cfg.OpenAIEmbeddingModel), cfg.RAGPersistPath)
		if err != nil {
			logger.Base().Warn("semantic search disabled", zap.Error(err))
		} else {
			s.indexer = rag.NewIndexer(store, repos.Tenant(), repos.Knowledge())
			searcher = store
		}
		aiClient = ai.NewClient(completer, tools, searcher, m, ai.Config{
			Model:             cfg.OpenAIModel,
			RequestsPerSecond: cfg.AIRequestsPerSecond,
			Burst:             cfg.AIBurst,
			TopK:              cfg.RAGTopK,
		})
	} else {
		logger.Base().Warn("OPENAI_API_KEY not set, free-form answers fall back to the knowledge base")
	}

	var responder conversation.Responder
	var summarizer jobs.Summarizer
	if aiClient != nil {
		responder = aiClient
		summarizer = aiClient
	}

	urls := voice.NewURLBuilder(cfg.PublicBaseURL)
	machine := conversation.NewMachine(classifier, kb, responder, m)
	engine := flow.NewEngine(hours, classifier, urls, m)
	queue := task.NewQueue(s.bus)
	service := call.NewReceptionistService(repos, sessions, hours, engine, machine, queue, urls, m, cfg.InstanceID)

	// Background jobs
	if cfg.PubSubProjectID != "" {
		s.events, err = pubsub.NewPubSubService(ctx, &pubsub.PubSubConfig{
			ProjectID: cfg.PubSubProjectID,
			TopicName: cfg.PubSubTopic,
			PubID:     cfg.PubSubPubID,
		})
		if err != nil {
			logger.Base().Warn("PubSub unavailable, events will be dropped", zap.Error(err))
		}
	} else {
		logger.Base().Info("PubSub not configured (requires PUBSUB_PROJECT_ID, PUBSUB_TOPIC_NAME)")
	}

	var (
		events     jobs.EventPublisher
		archive    jobs.Archive
		recordings jobs.RecordingSource
	)
	if s.events != nil {
		events = s.events
	}
	if cfg.GCSRecordingBucket != "" {
		s.archive, err = gcs.NewGCSClient(ctx, cfg.GCSRecordingBucket)
		if err != nil {
			logger.Base().Warn("recording archive disabled", zap.Error(err))
		} else {
			archive = s.archive
			recordings = twilio.NewRecordingFetcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, nil)
		}
	}

	sms := twilio.NewSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	s.worker = task.NewWorker(repos.Job(), s.bus, m, task.WorkerConfig{
		PollInterval: cfg.JobPollInterval,
		Lease:        cfg.JobLease,
		Workers:      cfg.JobWorkers,
	})
	jobs.NewHandlers(repos, summarizer, sms, events, recordings, archive).Register(s.worker)

	// HTTP
	var validator handler.RequestValidator
	if cfg.ValidateSignatures && cfg.TwilioAuthToken != "" {
		validator = twilio.NewSignatureValidator(cfg.TwilioAuthToken, cfg.PublicBaseURL)
	} else {
		logger.Base().Warn("Twilio signature validation disabled")
	}
	var indexer handler.KnowledgeIndexer
	if s.indexer != nil {
		indexer = s.indexer
	}

	s.router = mux.NewRouter()
	handlerManager := handler.NewHandlerManager(cfg,
		handler.NewVoiceHandler(service, validator),
		handler.NewFlowHandler(repos, indexer),
		repos, m)
	handlerManager.SetupAllRoutes(s.router)

	return s, nil
}

// Start runs the job worker and the HTTP server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	if s.indexer != nil {
		go func() {
			if err := s.indexer.IndexAll(ctx); err != nil {
				logger.Base().Warn("initial knowledge indexing failed", zap.Error(err))
			}
		}()
	}
	go s.worker.Run(ctx)

	addr := fmt.Sprintf(":%s", s.config.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("Starting server", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Base().Info("Shutting down server")
	return server.Shutdown(shutdownCtx)
}

// Close releases external clients
func (s *Server) Close() {
	if err := s.events.Close(); err != nil {
		logger.Base().Warn("failed to close pubsub", zap.Error(err))
	}
	if s.archive != nil {
		_ = s.archive.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if err := s.repos.Close(); err != nil {
		logger.Base().Warn("failed to close database", zap.Error(err))
	}
}

// LoadConfigFromEnv loads receptionist configuration from environment
func LoadConfigFromEnv() *config.ReceptionistConfig {
	return &config.ReceptionistConfig{
		Port:          getEnvOrDefault("RECEPTIONIST_PORT", "8080"),
		PublicBaseURL: getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),

		// Twilio configuration
		TwilioAccountSID:   getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:   getEnvOrDefault("TWILIO_FROM_NUMBER", ""),
		ValidateSignatures: getEnvAsBoolOrDefault("TWILIO_VALIDATE_SIGNATURES", true),

		// OpenAI configuration
		OpenAIAPIKey:         getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:          getEnvOrDefault("OPENAI_MODEL", openai.GPT4oMini),
		OpenAIEmbeddingModel: getEnvOrDefault("OPENAI_EMBEDDING_MODEL", string(openai.SmallEmbedding3)),
		AIRequestsPerSecond:  getEnvAsFloatOrDefault("AI_REQUESTS_PER_SECOND", 5),
		AIBurst:              getEnvAsIntOrDefault("AI_BURST", 10),

		RAGPersistPath: getEnvOrDefault("RAG_PERSIST_PATH", ""),
		RAGTopK:        getEnvAsIntOrDefault("RAG_TOP_K", 3),

		// Google Cloud
		GCSRecordingBucket: getEnvOrDefault("GCS_RECORDING_BUCKET", ""),
		PubSubProjectID:    getEnvOrDefault("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:        getEnvOrDefault("PUBSUB_TOPIC_NAME", "receptionist-events"),
		PubSubPubID:        getEnvOrDefault("PUBSUB_PUB_ID", ""),

		SecretKey:  getEnvOrDefault("ADMIN_SECRET_KEY", ""),
		InstanceID: getDynamicInstanceID(),

		JobPollInterval: getEnvAsDurationOrDefault("JOB_POLL_INTERVAL", 5*time.Second),
		JobLease:        getEnvAsDurationOrDefault("JOB_LEASE", 2*time.Minute),
		JobWorkers:      getEnvAsIntOrDefault("JOB_WORKERS", 2),
	}
}

// LoadRedisConfigFromEnv reads REDIS_* settings
func LoadRedisConfigFromEnv() *redis.RedisConfig {
	return &redis.RedisConfig{
		Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     getEnvOrDefault("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvAsIntOrDefault("REDIS_DB", 0),
	}
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getDynamicInstanceID prefers the hostname (pod name in Kubernetes) and falls
// back to a timestamp-based id
func getDynamicInstanceID() string {
	if id := os.Getenv("INSTANCE_ID"); id != "" {
		return id
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("receptionist-%d", time.Now().UnixNano())
}

func main() {
	// Load .env file for local development if it exists.
	// This will not override environment variables set by Helm/Docker
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		log.Printf("Failed to initialize zap logger, falling back to std log: %v", err)
	}
	defer logger.Sync()

	cfg := LoadConfigFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Base().Fatal("Failed to create server", zap.Error(err))
	}
	defer server.Close()

	logger.Base().Info("Server initialized successfully",
		zap.String("port", cfg.Port),
		zap.String("instance_id", cfg.InstanceID))

	if err := server.Start(ctx); err != nil {
		logger.Base().Error("Server failed", zap.Error(err))
		server.Close()
		os.Exit(1)
	}
}
