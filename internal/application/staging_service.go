package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/metrics"
)

// ReviewDraftRequest holds an operator's edits to a staged draft. StoreQuery
// is resolved by name when StoreID is empty.
type ReviewDraftRequest struct {
	Version                  int64                  `json:"version" binding:"required"`
	ZoneName                 string                 `json:"zoneName" binding:"required"`
	BaseDeliveryFee          float64                `json:"baseDeliveryFee" binding:"gte=0"`
	PerMileFee               float64                `json:"perMileFee" binding:"gte=0"`
	MinOrderAmount           float64                `json:"minOrderAmount" binding:"gte=0"`
	EstimatedPreparationTime float64                `json:"estimatedPreparationTime" binding:"gte=0"`
	IsRestricted             bool                   `json:"isRestricted"`
	Coordinates              []placemark.Coordinate `json:"coordinates"`
	StoreID                  string                 `json:"storeId"`
	StoreQuery               string                 `json:"storeQuery"`
}

// StagingService manages the staged drafts of import batches and submits them.
type StagingService struct {
	repo    zone.DraftRepository
	zones   zone.Service
	catalog *StoreCatalog
	events  eventEmitter
	logger  *zap.Logger

	locks batchLocks
}

// NewStagingService creates a new StagingService.
func NewStagingService(
	repo zone.DraftRepository,
	zones zone.Service,
	catalog *StoreCatalog,
	publisher EventPublisher,
	logger *zap.Logger,
) *StagingService {
	return &StagingService{
		repo:    repo,
		zones:   zones,
		catalog: catalog,
		events:  eventEmitter{publisher: publisher, logger: logger},
		logger:  logger,
	}
}

// ListDrafts retrieves a page of a batch's staged drafts in document order.
func (s *StagingService) ListDrafts(ctx context.Context, batchID uuid.UUID, page, limit int) (*domain.PaginatedResult[DraftDTO], error) {
	if _, err := s.repo.FindBatch(ctx, batchID); err != nil {
		return nil, err
	}
	drafts, total, err := s.repo.ListByBatch(ctx, batchID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toDraftDTOs(drafts), total, page, limit)
	return &result, nil
}

// GetDraft retrieves a single staged draft.
func (s *StagingService) GetDraft(ctx context.Context, batchID, draftID uuid.UUID) (*DraftDTO, error) {
	d, err := s.repo.FindByID(ctx, batchID, draftID)
	if err != nil {
		return nil, err
	}
	result := toDraftDTO(d)
	return &result, nil
}

// ReviewDraft replaces a draft's fields with the operator's edits. The request
// must carry the version the operator last saw.
func (s *StagingService) ReviewDraft(ctx context.Context, batchID, draftID uuid.UUID, req ReviewDraftRequest) (*DraftDTO, error) {
	d, err := s.repo.FindByID(ctx, batchID, draftID)
	if err != nil {
		return nil, err
	}
	if d.Status() == zone.StatusSubmitting {
		unlock, ok := s.locks.tryLock(batchID)
		if !ok {
			return nil, domain.NewInvalidStateError(d.Status().String(), zone.StatusReviewed.String())
		}
		defer unlock()
		s.recoverInterrupted(d)
	}
	if req.Version != d.Version() {
		return nil, domain.NewConflictError(fmt.Sprintf("draft %s was modified (version %d, expected %d)", draftID, d.Version(), req.Version))
	}

	storeID := req.StoreID
	if storeID == "" && req.StoreQuery != "" {
		entry, tier := s.catalog.Resolve(ctx, req.StoreQuery)
		if tier == store.TierUnresolved {
			return nil, domain.NewValidationError(fmt.Sprintf("store %q could not be resolved", req.StoreQuery))
		}
		storeID = entry.ID
	}

	if err := d.Review(zone.DraftFields{
		ZoneName:                 req.ZoneName,
		BaseDeliveryFee:          req.BaseDeliveryFee,
		PerMileFee:               req.PerMileFee,
		MinOrderAmount:           req.MinOrderAmount,
		EstimatedPreparationTime: req.EstimatedPreparationTime,
		IsRestricted:             req.IsRestricted,
		Coordinates:              req.Coordinates,
		StoreID:                  storeID,
	}); err != nil {
		return nil, err
	}

	d.IncrementVersion()
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	result := toDraftDTO(d)
	return &result, nil
}

// DiscardDraft removes a draft from the staging set without submitting it.
func (s *StagingService) DiscardDraft(ctx context.Context, batchID, draftID uuid.UUID) error {
	d, err := s.repo.FindByID(ctx, batchID, draftID)
	if err != nil {
		return err
	}
	if d.Status() == zone.StatusSubmitting {
		unlock, ok := s.locks.tryLock(batchID)
		if !ok {
			return domain.NewInvalidStateError(d.Status().String(), "discarded")
		}
		defer unlock()
	}
	if err := s.repo.Delete(ctx, batchID, draftID); err != nil {
		return err
	}
	s.logger.Info("draft discarded",
		zap.String("batch_id", batchID.String()),
		zap.String("draft_id", draftID.String()),
	)
	return nil
}

// SubmitDraft creates the zone for one draft. On success the draft leaves the
// staging set; on failure it returns to parsed with the reason recorded. Once
// the draft is marked submitting the call no longer follows ctx cancellation.
func (s *StagingService) SubmitDraft(ctx context.Context, batchID, draftID uuid.UUID) (*ZoneDTO, error) {
	unlock, ok := s.locks.tryLock(batchID)
	if !ok {
		return nil, domain.NewConflictError(fmt.Sprintf("a submission is already running for batch %s", batchID))
	}
	defer unlock()

	d, err := s.repo.FindByID(ctx, batchID, draftID)
	if err != nil {
		return nil, err
	}
	if err := s.releaseInterrupted(ctx, d); err != nil {
		return nil, err
	}

	created, err := s.submit(ctx, d)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitAll submits every staged draft of a batch, one at a time in document
// order. Failed or blocked drafts are reported and never stop the run. The run
// is not tied to the caller's cancellation.
func (s *StagingService) SubmitAll(ctx context.Context, batchID uuid.UUID) (*BulkSubmitReport, error) {
	unlock, ok := s.locks.tryLock(batchID)
	if !ok {
		return nil, domain.NewConflictError(fmt.Sprintf("a submission is already running for batch %s", batchID))
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	if _, err := s.repo.FindBatch(ctx, batchID); err != nil {
		return nil, err
	}
	drafts, err := s.repo.ListAllByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	for _, d := range drafts {
		if err := s.releaseInterrupted(ctx, d); err != nil {
			s.logger.Error("failed to release interrupted draft",
				zap.String("draft_id", d.ID().String()),
				zap.Error(err),
			)
		}
	}

	report := &BulkSubmitReport{
		BatchID:  batchID,
		Total:    len(drafts),
		Outcomes: make([]SubmissionOutcome, 0, len(drafts)),
	}

	NewSubmissionQueue(drafts).
		OnSuccess(func(d *zone.Draft, created *zone.Zone) {
			report.Submitted++
			report.Outcomes = append(report.Outcomes, SubmissionOutcome{
				DraftID:  d.ID(),
				ZoneName: d.ZoneName(),
				Status:   OutcomeSubmitted,
				ZoneID:   created.ID,
			})
		}).
		OnFailure(func(d *zone.Draft, err error) {
			status := OutcomeFailed
			if isBlocked(err) {
				status = OutcomeBlocked
				report.Blocked++
			} else {
				report.Failed++
			}
			report.Outcomes = append(report.Outcomes, SubmissionOutcome{
				DraftID:  d.ID(),
				ZoneName: d.ZoneName(),
				Status:   status,
				Error:    err.Error(),
			})
		}).
		Run(ctx, s.submit)

	s.logger.Info("bulk submission finished",
		zap.String("batch_id", batchID.String()),
		zap.Int("total", report.Total),
		zap.Int("submitted", report.Submitted),
		zap.Int("failed", report.Failed),
		zap.Int("blocked", report.Blocked),
	)
	s.events.publish(ctx, TopicZoneEvents, ZoneBulkSubmitFinished, batchID.String(), BulkSubmitFinishedEvent{
		BatchID:    batchID,
		Total:      report.Total,
		Submitted:  report.Submitted,
		Failed:     report.Failed,
		Blocked:    report.Blocked,
		OccurredAt: time.Now().UTC(),
	})

	return report, nil
}

// submit runs one draft through submitting. A draft that fails validation is
// rejected before it changes state. Every write after that point uses a
// context detached from the caller so the draft always leaves submitting.
func (s *StagingService) submit(ctx context.Context, d *zone.Draft) (*zone.Zone, error) {
	ctx = context.WithoutCancel(ctx)

	if err := d.BeginSubmission(); err != nil {
		if domain.KindOf(err) == "" {
			metrics.Submissions.WithLabelValues(OutcomeBlocked).Inc()
			return nil, domain.NewUnprocessableError("draft is not ready for submission", err)
		}
		return nil, err
	}
	d.IncrementVersion()
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	created, callErr := s.zones.CreateZone(ctx, d.CreateInput())
	if callErr != nil {
		return nil, s.recordFailure(ctx, d, callErr)
	}

	if err := d.MarkSubmitted(created.ID); err != nil {
		return nil, err
	}
	d.IncrementVersion()
	if err := s.repo.Delete(ctx, d.BatchID(), d.ID()); err != nil {
		s.logger.Error("zone created but draft could not be removed from staging",
			zap.String("draft_id", d.ID().String()),
			zap.String("zone_id", created.ID),
			zap.Error(err),
		)
		if err := s.repo.Update(ctx, d); err != nil {
			s.logger.Error("failed to record submitted zone on draft",
				zap.String("draft_id", d.ID().String()),
				zap.String("zone_id", created.ID),
				zap.Error(err),
			)
		}
	}
	metrics.Submissions.WithLabelValues(OutcomeSubmitted).Inc()

	s.logger.Info("zone created from draft",
		zap.String("batch_id", d.BatchID().String()),
		zap.String("draft_id", d.ID().String()),
		zap.String("zone_id", created.ID),
	)
	s.events.publish(ctx, TopicZoneEvents, ZoneCreated, created.ID, ZoneCreatedEvent{
		BatchID:    d.BatchID(),
		DraftID:    d.ID(),
		ZoneID:     created.ID,
		StoreID:    d.StoreID(),
		ZoneName:   d.ZoneName(),
		OccurredAt: time.Now().UTC(),
	})
	return created, nil
}

func (s *StagingService) recordFailure(ctx context.Context, d *zone.Draft, callErr error) error {
	metrics.Submissions.WithLabelValues(OutcomeFailed).Inc()
	reason := callErr.Error()

	if err := d.MarkFailed(reason); err != nil {
		return err
	}
	d.IncrementVersion()
	if err := s.repo.Update(ctx, d); err != nil {
		s.logger.Error("failed to record submission failure on draft",
			zap.String("draft_id", d.ID().String()),
			zap.Error(err),
		)
	}

	s.logger.Warn("zone submission failed",
		zap.String("batch_id", d.BatchID().String()),
		zap.String("draft_id", d.ID().String()),
		zap.Error(callErr),
	)
	s.events.publish(ctx, TopicZoneEvents, ZoneSubmissionFailed, d.ID().String(), ZoneSubmissionFailedEvent{
		BatchID:    d.BatchID(),
		DraftID:    d.ID(),
		StoreID:    d.StoreID(),
		ZoneName:   d.ZoneName(),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})

	return domain.NewUpstreamError("zone submission failed", fmt.Errorf("%w: %w", zone.ErrSubmissionFailed, callErr))
}

// recoverInterrupted returns a draft left in submitting by an interrupted run
// to parsed, in memory only. The caller holds the batch lock, so no live
// submission owns d.
func (s *StagingService) recoverInterrupted(d *zone.Draft) bool {
	if d.Status() != zone.StatusSubmitting {
		return false
	}
	if err := d.MarkFailed(reasonInterrupted); err != nil {
		return false
	}
	s.logger.Warn("recovered draft from interrupted submission",
		zap.String("batch_id", d.BatchID().String()),
		zap.String("draft_id", d.ID().String()),
	)
	return true
}

// releaseInterrupted recovers d and persists the change.
func (s *StagingService) releaseInterrupted(ctx context.Context, d *zone.Draft) error {
	if !s.recoverInterrupted(d) {
		return nil
	}
	d.IncrementVersion()
	return s.repo.Update(ctx, d)
}

const reasonInterrupted = "previous submission was interrupted; check the store's zones before retrying"

func isBlocked(err error) bool {
	return errors.Is(err, zone.ErrUnresolvedStore) ||
		errors.Is(err, zone.ErrNoCoordinates) ||
		errors.Is(err, zone.ErrInvalidAmount)
}

// batchLocks hands out one lock per batch id.
type batchLocks struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func (l *batchLocks) tryLock(batchID uuid.UUID) (unlock func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[uuid.UUID]bool)
	}
	if l.held[batchID] {
		return nil, false
	}
	l.held[batchID] = true
	return func() {
		l.mu.Lock()
		delete(l.held, batchID)
		l.mu.Unlock()
	}, true
}
