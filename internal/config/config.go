package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"8h"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	EventChannel  string `env:"EVENT_CHANNEL" envDefault:"risk-sentinel:events"`

	// Hiperparámetros del boosting. Los defaults reproducen la configuración
	// de referencia; la semilla fija hace el entrenamiento reproducible.
	TrainRounds       int     `env:"TRAIN_ROUNDS" envDefault:"100"`
	TrainMaxDepth     int     `env:"TRAIN_MAX_DEPTH" envDefault:"5"`
	TrainLearningRate float64 `env:"TRAIN_LEARNING_RATE" envDefault:"0.1"`
	TrainSubsample    float64 `env:"TRAIN_SUBSAMPLE" envDefault:"0.8"`
	TrainColSample    float64 `env:"TRAIN_COLSAMPLE" envDefault:"0.8"`
	TrainSeed         int64   `env:"TRAIN_SEED" envDefault:"42"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
