package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/kafka"
)

const eventSource = "service-zone"

// Topics.
const (
	TopicZoneEvents  = "zone.events"
	TopicStoreEvents = "store.events"
)

// Event types published on TopicZoneEvents.
const (
	ZoneImportStaged       = "zone.import.staged"
	ZoneCreated            = "zone.created"
	ZoneSubmissionFailed   = "zone.submission_failed"
	ZoneUpdated            = "zone.updated"
	ZoneDeleted            = "zone.deleted"
	ZoneBulkSubmitFinished = "zone.bulk_submit.finished"
)

// Event types consumed from TopicStoreEvents. Any of them makes the store snapshot stale.
const (
	StoreCreated = "store.created"
	StoreUpdated = "store.updated"
	StoreDeleted = "store.deleted"
)

// ImportStagedEvent is published once per successful upload.
type ImportStagedEvent struct {
	BatchID          uuid.UUID `json:"batch_id"`
	Filename         string    `json:"filename"`
	StoreID          string    `json:"store_id,omitempty"`
	DraftCount       int       `json:"draft_count"`
	SubmittableCount int       `json:"submittable_count"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// ZoneCreatedEvent is published when a draft becomes a persisted zone.
type ZoneCreatedEvent struct {
	BatchID    uuid.UUID `json:"batch_id"`
	DraftID    uuid.UUID `json:"draft_id"`
	ZoneID     string    `json:"zone_id"`
	StoreID    string    `json:"store_id"`
	ZoneName   string    `json:"zone_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ZoneSubmissionFailedEvent is published when CreateZone rejects a draft.
type ZoneSubmissionFailedEvent struct {
	BatchID    uuid.UUID `json:"batch_id"`
	DraftID    uuid.UUID `json:"draft_id"`
	StoreID    string    `json:"store_id"`
	ZoneName   string    `json:"zone_name"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ZoneChangedEvent is published after an existing zone is updated or deleted.
type ZoneChangedEvent struct {
	ZoneID     string    `json:"zone_id"`
	StoreID    string    `json:"store_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BulkSubmitFinishedEvent summarizes a create-all run.
type BulkSubmitFinishedEvent struct {
	BatchID    uuid.UUID `json:"batch_id"`
	Total      int       `json:"total"`
	Submitted  int       `json:"submitted"`
	Failed     int       `json:"failed"`
	Blocked    int       `json:"blocked"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StoreChangedEvent is the payload of store directory events.
type StoreChangedEvent struct {
	StoreID     string `json:"store_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// eventEmitter wraps a publisher so failures are logged, never returned.
type eventEmitter struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func (e eventEmitter) publish(ctx context.Context, topic, eventType, key string, data interface{}) {
	if e.publisher == nil {
		return
	}

	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		e.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = key

	if err := e.publisher.PublishEvent(ctx, topic, cloudEvent); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
