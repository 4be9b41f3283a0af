package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/application"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/kafka"
)

// CatalogInvalidator drops the cached store snapshot.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context)
}

// StoreEventConsumer listens to store directory events and marks the store
// snapshot stale so the next lookup reloads it.
type StoreEventConsumer struct {
	consumer *kafka.Consumer
	catalog  CatalogInvalidator
	logger   *zap.Logger
}

// NewStoreEventConsumer creates a new StoreEventConsumer.
func NewStoreEventConsumer(
	brokers []string,
	groupID string,
	catalog CatalogInvalidator,
	logger *zap.Logger,
) *StoreEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, application.TopicStoreEvents, logger)
	return &StoreEventConsumer{
		consumer: consumer,
		catalog:  catalog,
		logger:   logger,
	}
}

// Start begins consuming store events. This blocks until the context is cancelled.
func (c *StoreEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *StoreEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *StoreEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	return handleStoreEvent(ctx, msg.Value, c.catalog, c.logger)
}

func handleStoreEvent(ctx context.Context, raw []byte, catalog CatalogInvalidator, logger *zap.Logger) error {
	cloudEvent, err := kafka.ParseCloudEvent(raw)
	if err != nil {
		logger.Error("failed to parse cloud event from store topic",
			zap.Error(err),
			zap.String("raw", string(raw)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case application.StoreCreated, application.StoreUpdated, application.StoreDeleted:
		var evt application.StoreChangedEvent
		if err := cloudEvent.ParseData(&evt); err != nil {
			logger.Warn("store event without readable payload, invalidating anyway",
				zap.String("type", cloudEvent.Type),
				zap.Error(err),
			)
		}
		logger.Info("store directory changed",
			zap.String("type", cloudEvent.Type),
			zap.String("store_id", evt.StoreID),
		)
		catalog.Invalidate(ctx)
		return nil
	default:
		logger.Debug("ignoring unhandled store event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}
