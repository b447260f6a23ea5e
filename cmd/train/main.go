package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"risk-sentinel/internal/config"
	"risk-sentinel/internal/db"
	"risk-sentinel/internal/ml"
	"risk-sentinel/internal/notify"
	"risk-sentinel/internal/pipeline"
	"risk-sentinel/internal/repository"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Entrenamiento offline: lee las filas etiquetadas, entrena, persiste el
// modelo y deja el reporte en stdout. Pensado para corridas manuales y cron.
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
	modelStore := repository.NewPgModelStore(pool)

	params := ml.DefaultParams()
	params.Rounds = cfg.TrainRounds
	params.MaxDepth = cfg.TrainMaxDepth
	params.LearningRate = cfg.TrainLearningRate
	params.Subsample = cfg.TrainSubsample
	params.ColSample = cfg.TrainColSample
	params.Seed = cfg.TrainSeed

	holder := pipeline.NewModelHolder()
	trainer := pipeline.NewTrainer(modelStore, holder, notify.NopBroadcaster{}, params, logger)

	rows, err := studentRepo.ListLabelled(ctx)
	if err != nil {
		logger.Fatal("load training rows", zap.Error(err))
	}
	if len(rows) == 0 {
		logger.Fatal("no labelled training data found")
	}

	report, err := trainer.Train(ctx, rows, true)
	if err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	fmt.Printf("trained on %d samples with %d features\n", report.Samples, report.FeatureCount)
	fmt.Printf("train accuracy: %.2f%%\n", report.TrainAccuracy*100)
	fmt.Println("top features:")
	for _, fi := range report.TopFeatures {
		fmt.Printf("  %-24s %.4f\n", fi.Feature, fi.Importance)
	}
	os.Exit(0)
}
