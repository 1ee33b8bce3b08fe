package events

import (
	"context"

	"github.com/smallbiznis/paramstore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("no kafka brokers configured, change events disabled")
		return NoopPublisher{}
	}
	publisher := NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	log.Info("change events enabled",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return publisher
}
