package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

// NotFoundClassifier reports whether an upstream error means the entity does not exist.
type NotFoundClassifier func(err error) bool

// ZoneAdminService proxies zone maintenance on already persisted zones.
type ZoneAdminService struct {
	zones      zone.Service
	catalog    *StoreCatalog
	isNotFound NotFoundClassifier
	events     eventEmitter
	logger     *zap.Logger
}

// NewZoneAdminService creates a new ZoneAdminService.
func NewZoneAdminService(
	zones zone.Service,
	catalog *StoreCatalog,
	isNotFound NotFoundClassifier,
	publisher EventPublisher,
	logger *zap.Logger,
) *ZoneAdminService {
	if isNotFound == nil {
		isNotFound = func(error) bool { return false }
	}
	return &ZoneAdminService{
		zones:      zones,
		catalog:    catalog,
		isNotFound: isNotFound,
		events:     eventEmitter{publisher: publisher, logger: logger},
		logger:     logger,
	}
}

// ListStoreZones lists the persisted zones of a store.
func (s *ZoneAdminService) ListStoreZones(ctx context.Context, storeID string) ([]ZoneDTO, error) {
	zones, err := s.zones.ListZones(ctx, storeID)
	if err != nil {
		return nil, s.upstream("store", storeID, "failed to list zones", err)
	}
	if zones == nil {
		zones = []zone.Zone{}
	}
	return zones, nil
}

// UpdateZone applies a partial update to a persisted zone.
func (s *ZoneAdminService) UpdateZone(ctx context.Context, zoneID string, patch zone.Patch) (*ZoneDTO, error) {
	if err := patch.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if patch.IsEmpty() {
		return nil, domain.NewValidationError("patch changes nothing")
	}

	updated, err := s.zones.UpdateZone(ctx, zoneID, patch)
	if err != nil {
		return nil, s.upstream("zone", zoneID, "failed to update zone", err)
	}

	s.events.publish(ctx, TopicZoneEvents, ZoneUpdated, zoneID, ZoneChangedEvent{
		ZoneID:     zoneID,
		StoreID:    updated.StoreID,
		OccurredAt: time.Now().UTC(),
	})
	return updated, nil
}

// DeleteZone removes a persisted zone.
func (s *ZoneAdminService) DeleteZone(ctx context.Context, zoneID string) error {
	if err := s.zones.DeleteZone(ctx, zoneID); err != nil {
		return s.upstream("zone", zoneID, "failed to delete zone", err)
	}

	s.logger.Info("zone deleted", zap.String("zone_id", zoneID))
	s.events.publish(ctx, TopicZoneEvents, ZoneDeleted, zoneID, ZoneChangedEvent{
		ZoneID:     zoneID,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// SearchStores lists directory entries matching a partial name.
func (s *ZoneAdminService) SearchStores(ctx context.Context, query string, limit int) []StoreDTO {
	return s.catalog.Search(ctx, query, limit)
}

// ResolveStore applies the exact-then-prefix rule to a store name.
func (s *ZoneAdminService) ResolveStore(ctx context.Context, query string) StoreResolutionDTO {
	entry, tier := s.catalog.Resolve(ctx, query)
	return StoreResolutionDTO{
		Query:       query,
		Tier:        string(tier),
		StoreID:     entry.ID,
		DisplayName: entry.DisplayName,
	}
}

func (s *ZoneAdminService) upstream(entity, id, msg string, err error) error {
	if s.isNotFound(err) {
		return domain.NewNotFoundError(entity, id)
	}
	s.logger.Error(msg, zap.String(entity+"_id", id), zap.Error(err))
	return domain.NewUpstreamError(msg, err)
}
