package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/metadata"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/metrics"
)

// ImportRequest is one uploaded document.
type ImportRequest struct {
	Filename   string
	Content    []byte
	StoreQuery string
}

// ImportService turns an uploaded document into a staged batch of drafts.
type ImportService struct {
	repo          zone.DraftRepository
	catalog       *StoreCatalog
	canonicalizer *metadata.Canonicalizer
	events        eventEmitter
	logger        *zap.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(
	repo zone.DraftRepository,
	catalog *StoreCatalog,
	canonicalizer *metadata.Canonicalizer,
	publisher EventPublisher,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		repo:          repo,
		catalog:       catalog,
		canonicalizer: canonicalizer,
		events:        eventEmitter{publisher: publisher, logger: logger},
		logger:        logger,
	}
}

// Import parses, canonicalizes and assembles every placemark, resolves the
// store named by the request, and stages the drafts as a new batch. A document
// that cannot be parsed, or holds no placemark, stages nothing.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if len(req.Content) == 0 {
		metrics.ImportsTotal.WithLabelValues("unparsable").Inc()
		return nil, domain.NewValidationError("uploaded file is empty")
	}

	resolution := StoreResolutionDTO{Query: req.StoreQuery, Tier: string(store.TierUnresolved)}
	if req.StoreQuery != "" {
		entry, tier := s.catalog.Resolve(ctx, req.StoreQuery)
		resolution.Tier = string(tier)
		resolution.StoreID = entry.ID
		resolution.DisplayName = entry.DisplayName
	}

	batch := zone.NewBatch(uploadName(req.Filename), req.StoreQuery, resolution.StoreID, 0)
	assembled, err := zone.AssembleDocument(req.Content, resolution.StoreID, s.canonicalizer, batch.ID)
	if err != nil {
		return nil, s.importError(req.Filename, err)
	}
	batch.PlacemarkCount = len(assembled)

	drafts := make([]*zone.Draft, len(assembled))
	submittable := 0
	for i, a := range assembled {
		drafts[i] = a.Draft
		if a.Draft.IsSubmittable() {
			submittable++
		}
		metrics.MetadataStrategy.WithLabelValues(string(a.Attributes.Strategy), strconv.FormatBool(a.Attributes.FallbackUsed)).Inc()
	}

	if err := s.repo.SaveBatch(ctx, batch, drafts); err != nil {
		metrics.ImportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to stage batch: %w", err)
	}
	metrics.ImportsTotal.WithLabelValues("staged").Inc()
	metrics.PlacemarksExtracted.Add(float64(len(drafts)))

	s.logger.Info("zone import staged",
		zap.String("batch_id", batch.ID.String()),
		zap.String("filename", batch.Filename),
		zap.Int("drafts", len(drafts)),
		zap.Int("submittable", submittable),
		zap.String("store_tier", resolution.Tier),
	)

	s.events.publish(ctx, TopicZoneEvents, ZoneImportStaged, batch.ID.String(), ImportStagedEvent{
		BatchID:          batch.ID,
		Filename:         batch.Filename,
		StoreID:          batch.StoreID,
		DraftCount:       len(drafts),
		SubmittableCount: submittable,
		OccurredAt:       time.Now().UTC(),
	})

	return &ImportResult{
		BatchID:          batch.ID,
		Filename:         batch.Filename,
		PlacemarkCount:   len(drafts),
		SubmittableCount: submittable,
		Store:            resolution,
		Drafts:           toDraftDTOs(drafts),
	}, nil
}

func (s *ImportService) importError(filename string, err error) error {
	switch {
	case errors.Is(err, placemark.ErrDocumentUnparsable):
		metrics.ImportsTotal.WithLabelValues("unparsable").Inc()
		s.logger.Warn("uploaded document is not parseable", zap.String("filename", filename), zap.Error(err))
		return &domain.AppError{Kind: domain.KindValidation, Message: "document could not be parsed", Err: err}
	case errors.Is(err, placemark.ErrNoGeometryFound):
		metrics.ImportsTotal.WithLabelValues("no_geometry").Inc()
		s.logger.Warn("uploaded document has no placemarks", zap.String("filename", filename))
		return domain.NewUnprocessableError("document contains no placemarks", err)
	default:
		metrics.ImportsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to read document: %w", err)
	}
}

func uploadName(filename string) string {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "upload.kml"
	}
	return name
}
