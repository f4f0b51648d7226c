package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pocket-guard/internal/config"
	"pocket-guard/internal/db"
	apihttp "pocket-guard/internal/http"
	"pocket-guard/internal/llm"
	"pocket-guard/internal/logging"
	"pocket-guard/internal/repository"
	"pocket-guard/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(ctxPing).Err()
		cancel()
		if err != nil {
			if cfg.HistoryBackend == config.HistoryRedis {
				logger.Fatal("redis ping failed", zap.Error(err))
			}
			logger.Warn("redis ping failed, using in-memory limiter and revocations", zap.Error(err))
			redisClient = nil
		}
	}

	storeOpts := repository.StoreOptions{Limit: cfg.BuddyHistoryLimit, TTL: cfg.SessionTTL}
	var (
		history repository.TurnRepository
		sweeper repository.Sweeper
	)
	switch cfg.HistoryBackend {
	case config.HistoryRedis:
		history = repository.NewRedisTurnRepository(redisClient, storeOpts)
	case config.HistoryPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		pgRepo := repository.NewPgTurnRepository(pool, storeOpts)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal("ensure buddy schema", zap.Error(err))
		}
		history, sweeper = pgRepo, pgRepo
	default:
		memRepo := repository.NewMemoryTurnRepository(storeOpts)
		history, sweeper = memRepo, memRepo
	}
	if sweeper != nil {
		go service.RunHistorySweeper(ctx, logger, sweeper, 10*time.Minute)
	}

	provider := buildProvider(cfg, logger)
	gateway := llm.NewGateway(provider, llm.GatewayOptions{
		ContextWindow: cfg.BuddyContextTurns,
		SystemPrompt:  cfg.BuddySystemPrompt,
	}, logger)
	if gateway.Configured() {
		logger.Info("buddy model: ON", zap.String("provider", gateway.ProviderName()), zap.String("model", cfg.ModelName()))
	} else {
		logger.Info("buddy model: OFF (canned replies)")
	}

	buddySvc := service.NewBuddyService(logger, history, gateway, service.NewFallbackResponder(), service.BuddyOptions{
		ModelTimeout:    cfg.BuddyModelTimeout,
		ContextTurns:    cfg.BuddyContextTurns,
		MaxMessageChars: cfg.BuddyMaxMessageChar,
	})

	var (
		limiter     service.RateLimiter
		revocations service.SessionRevocationStore
	)
	if redisClient != nil {
		limiter = service.NewRedisRateLimiter(redisClient, cfg.APIRateWindow, cfg.APIRateLimit)
		revocations = service.NewRedisSessionRevocationStore(redisClient)
	} else {
		limiter = service.NewMemoryRateLimiter(cfg.APIRateWindow, cfg.APIRateLimit)
		revocations = service.NewMemorySessionRevocationStore()
	}
	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.SessionTTL, revocations)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured, every /api request will be rejected")
	}

	authHandler := apihttp.NewAuthHandler(logger, jwtSvc, buddySvc, cfg.DemoSessionsEnabled())
	buddyHandler := apihttp.NewBuddyHandler(logger, buddySvc)
	router := apihttp.NewRouter(logger, jwtSvc, limiter, authHandler, buddyHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("history_backend", cfg.HistoryBackend),
		zap.Bool("demo_sessions", cfg.DemoSessionsEnabled()),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildProvider elige el proveedor segun LLM_PROVIDER. Sin credencial queda sin configurar.
func buildProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	httpClient := &http.Client{}
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return llm.NewHTTPClient(cfg.LLMBaseURL, cfg.ModelAPIKey(), cfg.LLMModel, httpClient, logger)
	default:
		return llm.NewGeminiClient(cfg.ModelAPIKey(), cfg.GeminiModel, cfg.GeminiBaseURL, httpClient, logger)
	}
}
