package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Tipos de evento publicados en el canal de dashboard.
const (
	EventModelTrained     = "model_trained"
	EventStudentUpdate    = "student_update"
	EventBatchPredictions = "batch_predictions_complete"
)

// Broadcaster publica eventos de pipeline para los dashboards conectados.
// Las fallas de publicación se loguean y se descartan: la predicción ya está
// persistida y un evento perdido no debe tumbar el request.
type Broadcaster interface {
	Publish(ctx context.Context, event string, data any)
}

// RedisBroadcaster publica cada evento como JSON {type, data} en un canal
// pub/sub de Redis. Los suscriptores (gateways de dashboard) lo reparten a
// sus clientes.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBroadcaster(client *redis.Client, channel string, log *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel, log: log}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, event string, data any) {
	payload, err := json.Marshal(map[string]any{"type": event, "data": data})
	if err != nil {
		b.log.Error("marshal broadcast event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn("publish broadcast event", zap.String("event", event), zap.Error(err))
	}
}

// NopBroadcaster descarta todos los eventos. Útil en tests y en el CLI de
// entrenamiento offline.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(context.Context, string, any) {}
