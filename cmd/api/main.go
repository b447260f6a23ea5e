package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"risk-sentinel/internal/config"
	"risk-sentinel/internal/db"
	apihttp "risk-sentinel/internal/http"
	"risk-sentinel/internal/ml"
	"risk-sentinel/internal/notify"
	"risk-sentinel/internal/pipeline"
	"risk-sentinel/internal/repository"
	"risk-sentinel/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	studentRepo := repository.NewPgStudentRepository(pool)
	predictionRepo := repository.NewPgPredictionRepository(pool)
	userRepo := repository.NewPgUserRepository(pool)
	auditRepo := repository.NewPgAuditRepository(pool)
	modelStore := repository.NewPgModelStore(pool)

	var notifier notify.Broadcaster = notify.NopBroadcaster{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, events disabled", zap.Error(err))
		} else {
			notifier = notify.NewRedisBroadcaster(redisClient, cfg.EventChannel, logger)
		}
		cancel()
	}

	params := ml.DefaultParams()
	params.Rounds = cfg.TrainRounds
	params.MaxDepth = cfg.TrainMaxDepth
	params.LearningRate = cfg.TrainLearningRate
	params.Subsample = cfg.TrainSubsample
	params.ColSample = cfg.TrainColSample
	params.Seed = cfg.TrainSeed

	holder := pipeline.NewModelHolder()
	trainer := pipeline.NewTrainer(modelStore, holder, notifier, params, logger)
	predictor := pipeline.NewPredictor(holder, modelStore)

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	userSvc := service.NewUserService(logger, userRepo)

	authHandler := apihttp.NewAuthHandler(logger, userSvc, jwtSvc)
	studentHandler := apihttp.NewStudentHandler(logger, studentRepo, predictionRepo, auditRepo, predictor, notifier)
	pipelineHandler := apihttp.NewPipelineHandler(logger, studentRepo, predictionRepo, auditRepo, trainer)
	router := apihttp.NewRouter(logger, jwtSvc, authHandler, studentHandler, pipelineHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
