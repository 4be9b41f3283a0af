package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/application"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/kafka"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

func encode(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-store", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return raw
}

func TestHandleStoreEvent(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		wantCalls int
	}{
		{"created", encode(t, application.StoreCreated, application.StoreChangedEvent{StoreID: "s1"}), 1},
		{"updated", encode(t, application.StoreUpdated, application.StoreChangedEvent{StoreID: "s1", DisplayName: "New"}), 1},
		{"deleted without payload", encode(t, application.StoreDeleted, "not an object"), 1},
		{"other type", encode(t, "store.opening_hours_changed", nil), 0},
		{"malformed", []byte("{not json"), 0},
		{"missing type", []byte(`{"id":"1"}`), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &countingInvalidator{}
			err := handleStoreEvent(context.Background(), tt.raw, inv, zap.NewNop())
			assert.NoError(t, err, "store events are never retried")
			assert.Equal(t, tt.wantCalls, inv.calls)
		})
	}
}
