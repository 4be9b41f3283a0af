package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
	zoneDomain "github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

// BatchModel is the GORM model for the import_batches table.
type BatchModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Filename       string    `gorm:"not null;size:255"`
	StoreQuery     string    `gorm:"size:255"`
	StoreID        string    `gorm:"size:100"`
	PlacemarkCount int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BatchModel) TableName() string {
	return "import_batches"
}

// DraftModel is the GORM model for the zone_drafts table.
type DraftModel struct {
	ID                       uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BatchID                  uuid.UUID       `gorm:"type:uuid;index;not null"`
	ZoneName                 string          `gorm:"not null;size:255"`
	BaseDeliveryFee          float64         `gorm:"not null"`
	PerMileFee               float64         `gorm:"not null"`
	MinOrderAmount           float64         `gorm:"not null"`
	EstimatedPreparationTime float64         `gorm:"not null"`
	IsRestricted             bool            `gorm:"not null"`
	Coordinates              json.RawMessage `gorm:"type:jsonb;not null"`
	StoreID                  string          `gorm:"size:100"`
	Status                   string          `gorm:"not null;size:20;index"`
	LastError                string          `gorm:"size:1000"`
	ZoneID                   string          `gorm:"size:100"`
	SourceIndex              int             `gorm:"not null"`
	SourceName               string          `gorm:"size:255"`
	Notes                    json.RawMessage `gorm:"type:jsonb;not null"`
	Warnings                 json.RawMessage `gorm:"type:jsonb;not null"`
	Version                  int64           `gorm:"not null;default:1"`
	CreatedAt                time.Time       `gorm:"not null"`
	UpdatedAt                time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (DraftModel) TableName() string {
	return "zone_drafts"
}

// GormDraftRepository is the GORM-based implementation of DraftRepository.
type GormDraftRepository struct {
	db *gorm.DB
}

// NewGormDraftRepository creates a new GormDraftRepository.
func NewGormDraftRepository(db *gorm.DB) *GormDraftRepository {
	return &GormDraftRepository{db: db}
}

// SaveBatch persists a batch and all its drafts in one transaction.
func (r *GormDraftRepository) SaveBatch(ctx context.Context, batch *zoneDomain.Batch, drafts []*zoneDomain.Draft) error {
	models := make([]*DraftModel, len(drafts))
	for i, d := range drafts {
		m, err := toDraftModel(d)
		if err != nil {
			return fmt.Errorf("failed to convert draft to model: %w", err)
		}
		models[i] = m
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toBatchModel(batch)).Error; err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(models, 100).Error; err != nil {
			return fmt.Errorf("failed to save drafts: %w", err)
		}
		return nil
	})
}

// FindBatch retrieves a batch by its identifier.
func (r *GormDraftRepository) FindBatch(ctx context.Context, batchID uuid.UUID) (*zoneDomain.Batch, error) {
	var model BatchModel
	if err := r.db.WithContext(ctx).Where("id = ?", batchID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Batch", batchID.String())
		}
		return nil, fmt.Errorf("failed to find batch: %w", err)
	}
	return &zoneDomain.Batch{
		ID:             model.ID,
		Filename:       model.Filename,
		StoreQuery:     model.StoreQuery,
		StoreID:        model.StoreID,
		PlacemarkCount: model.PlacemarkCount,
		CreatedAt:      model.CreatedAt,
	}, nil
}

// FindByID retrieves a staged draft within a batch.
func (r *GormDraftRepository) FindByID(ctx context.Context, batchID, draftID uuid.UUID) (*zoneDomain.Draft, error) {
	var model DraftModel
	if err := r.db.WithContext(ctx).Where("id = ? AND batch_id = ?", draftID, batchID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Draft", draftID.String())
		}
		return nil, fmt.Errorf("failed to find draft by ID: %w", err)
	}
	return toDomainDraft(&model)
}

// ListByBatch retrieves a page of a batch's drafts in document order.
func (r *GormDraftRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, page, limit int) ([]*zoneDomain.Draft, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&DraftModel{}).Where("batch_id = ?", batchID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count batch drafts: %w", err)
	}

	var models []DraftModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("source_index ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list batch drafts: %w", err)
	}

	drafts, err := toDomainDrafts(models)
	if err != nil {
		return nil, 0, err
	}
	return drafts, total, nil
}

// ListAllByBatch retrieves every draft of a batch in document order.
func (r *GormDraftRepository) ListAllByBatch(ctx context.Context, batchID uuid.UUID) ([]*zoneDomain.Draft, error) {
	var models []DraftModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("source_index ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list batch drafts: %w", err)
	}
	return toDomainDrafts(models)
}

// Update persists changes to an existing draft with optimistic locking.
func (r *GormDraftRepository) Update(ctx context.Context, d *zoneDomain.Draft) error {
	model, err := toDraftModel(d)
	if err != nil {
		return fmt.Errorf("failed to convert draft to model: %w", err)
	}

	// Callers bump the version before saving, so the stored row holds version-1.
	expectedVersion := d.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&DraftModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"zone_name":                  model.ZoneName,
			"base_delivery_fee":          model.BaseDeliveryFee,
			"per_mile_fee":               model.PerMileFee,
			"min_order_amount":           model.MinOrderAmount,
			"estimated_preparation_time": model.EstimatedPreparationTime,
			"is_restricted":              model.IsRestricted,
			"coordinates":                model.Coordinates,
			"store_id":                   model.StoreID,
			"status":                     model.Status,
			"last_error":                 model.LastError,
			"zone_id":                    model.ZoneID,
			"version":                    model.Version,
			"updated_at":                 model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update draft: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("draft was modified by another request")
	}
	return nil
}

// Delete removes a draft from the staging set.
func (r *GormDraftRepository) Delete(ctx context.Context, batchID, draftID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND batch_id = ?", draftID, batchID).
		Delete(&DraftModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete draft: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Draft", draftID.String())
	}
	return nil
}

// --- Conversion Helpers ---

func toBatchModel(b *zoneDomain.Batch) *BatchModel {
	return &BatchModel{
		ID:             b.ID,
		Filename:       b.Filename,
		StoreQuery:     b.StoreQuery,
		StoreID:        b.StoreID,
		PlacemarkCount: b.PlacemarkCount,
		CreatedAt:      b.CreatedAt,
	}
}

func toDraftModel(d *zoneDomain.Draft) (*DraftModel, error) {
	f := d.Fields()
	src := d.Source()

	coordsJSON, err := json.Marshal(nonNil(f.Coordinates))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal coordinates: %w", err)
	}
	notesJSON, err := json.Marshal(nonNil(src.Notes))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notes: %w", err)
	}
	warningsJSON, err := json.Marshal(nonNil(src.Warnings))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	return &DraftModel{
		ID:                       d.ID(),
		BatchID:                  d.BatchID(),
		ZoneName:                 f.ZoneName,
		BaseDeliveryFee:          f.BaseDeliveryFee,
		PerMileFee:               f.PerMileFee,
		MinOrderAmount:           f.MinOrderAmount,
		EstimatedPreparationTime: f.EstimatedPreparationTime,
		IsRestricted:             f.IsRestricted,
		Coordinates:              coordsJSON,
		StoreID:                  f.StoreID,
		Status:                   d.Status().String(),
		LastError:                d.LastError(),
		ZoneID:                   d.ZoneID(),
		SourceIndex:              src.Index,
		SourceName:               src.Name,
		Notes:                    notesJSON,
		Warnings:                 warningsJSON,
		Version:                  d.Version(),
		CreatedAt:                d.CreatedAt(),
		UpdatedAt:                d.UpdatedAt(),
	}, nil
}

func toDomainDraft(m *DraftModel) (*zoneDomain.Draft, error) {
	var coords []placemark.Coordinate
	if err := json.Unmarshal(m.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coordinates: %w", err)
	}
	var notes, warnings []string
	if len(m.Notes) > 0 {
		if err := json.Unmarshal(m.Notes, &notes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
		}
	}
	if len(m.Warnings) > 0 {
		if err := json.Unmarshal(m.Warnings, &warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}

	status, err := zoneDomain.ParseDraftStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return zoneDomain.ReconstructDraft(
		m.ID,
		m.BatchID,
		zoneDomain.DraftFields{
			ZoneName:                 m.ZoneName,
			BaseDeliveryFee:          m.BaseDeliveryFee,
			PerMileFee:               m.PerMileFee,
			MinOrderAmount:           m.MinOrderAmount,
			EstimatedPreparationTime: m.EstimatedPreparationTime,
			IsRestricted:             m.IsRestricted,
			Coordinates:              coords,
			StoreID:                  m.StoreID,
		},
		zoneDomain.DraftSource{
			Index:    m.SourceIndex,
			Name:     m.SourceName,
			Notes:    notes,
			Warnings: warnings,
		},
		status,
		m.LastError,
		m.ZoneID,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainDrafts(models []DraftModel) ([]*zoneDomain.Draft, error) {
	drafts := make([]*zoneDomain.Draft, len(models))
	for i := range models {
		d, err := toDomainDraft(&models[i])
		if err != nil {
			return nil, err
		}
		drafts[i] = d
	}
	return drafts, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
