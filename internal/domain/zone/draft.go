package zone

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
)

var (
	// ErrUnresolvedStore blocks submission of a draft with no store identifier.
	ErrUnresolvedStore = errors.New("store identifier is not resolved")

	// ErrNoCoordinates blocks submission of a draft without a single vertex.
	ErrNoCoordinates = errors.New("zone has no coordinates")

	// ErrInvalidAmount blocks submission of a draft with a negative or non-finite amount.
	ErrInvalidAmount = errors.New("zone amount must be a finite number >= 0")

	// ErrSubmissionFailed wraps a failed CreateZone call.
	ErrSubmissionFailed = errors.New("zone submission failed")

	ErrEmptyZoneName     = errors.New("zone name must not be empty")
	ErrInvalidCoordinate = errors.New("coordinates must be finite numbers")
)

// Draft is the aggregate root for a staged, not yet persisted delivery zone.
type Draft struct {
	id      uuid.UUID
	batchID uuid.UUID

	zoneName                 string
	baseDeliveryFee          float64
	perMileFee               float64
	minOrderAmount           float64
	estimatedPreparationTime float64
	isRestricted             bool
	coordinates              []placemark.Coordinate
	storeID                  string

	status    DraftStatus
	lastError string
	zoneID    string

	sourceIndex int
	sourceName  string
	notes       []string
	warnings    []string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// DraftFields are the editable zone fields of a draft.
type DraftFields struct {
	ZoneName                 string
	BaseDeliveryFee          float64
	PerMileFee               float64
	MinOrderAmount           float64
	EstimatedPreparationTime float64
	IsRestricted             bool
	Coordinates              []placemark.Coordinate
	StoreID                  string
}

// DraftSource records where in the uploaded document a draft came from.
type DraftSource struct {
	Index    int
	Name     string
	Notes    []string
	Warnings []string
}

// NewDraft creates a draft in the parsed state. It performs no submission
// validation: an incomplete draft is still stageable.
func NewDraft(batchID uuid.UUID, fields DraftFields, source DraftSource) *Draft {
	now := time.Now().UTC()
	d := &Draft{
		id:          uuid.New(),
		batchID:     batchID,
		status:      StatusParsed,
		sourceIndex: source.Index,
		sourceName:  source.Name,
		notes:       source.Notes,
		warnings:    source.Warnings,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}
	d.apply(fields)
	return d
}

// ReconstructDraft rebuilds a Draft from persistence data (no validation).
func ReconstructDraft(
	id, batchID uuid.UUID,
	fields DraftFields,
	source DraftSource,
	status DraftStatus,
	lastError string,
	zoneID string,
	version int64,
	createdAt, updatedAt time.Time,
) *Draft {
	d := &Draft{
		id:          id,
		batchID:     batchID,
		status:      status,
		lastError:   lastError,
		zoneID:      zoneID,
		sourceIndex: source.Index,
		sourceName:  source.Name,
		notes:       source.Notes,
		warnings:    source.Warnings,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
	d.apply(fields)
	return d
}

func (d *Draft) apply(f DraftFields) {
	d.zoneName = strings.TrimSpace(f.ZoneName)
	d.baseDeliveryFee = f.BaseDeliveryFee
	d.perMileFee = f.PerMileFee
	d.minOrderAmount = f.MinOrderAmount
	d.estimatedPreparationTime = f.EstimatedPreparationTime
	d.isRestricted = f.IsRestricted
	d.coordinates = append([]placemark.Coordinate(nil), f.Coordinates...)
	d.storeID = strings.TrimSpace(f.StoreID)
}

// --- Getters ---

// ID returns the draft's unique identifier.
func (d *Draft) ID() uuid.UUID { return d.id }

// BatchID returns the import batch the draft belongs to.
func (d *Draft) BatchID() uuid.UUID { return d.batchID }

// Fields returns a copy of the editable zone fields.
func (d *Draft) Fields() DraftFields {
	return DraftFields{
		ZoneName:                 d.zoneName,
		BaseDeliveryFee:          d.baseDeliveryFee,
		PerMileFee:               d.perMileFee,
		MinOrderAmount:           d.minOrderAmount,
		EstimatedPreparationTime: d.estimatedPreparationTime,
		IsRestricted:             d.isRestricted,
		Coordinates:              append([]placemark.Coordinate(nil), d.coordinates...),
		StoreID:                  d.storeID,
	}
}

// ZoneName returns the zone's display name.
func (d *Draft) ZoneName() string { return d.zoneName }

// StoreID returns the owning store identifier, possibly empty.
func (d *Draft) StoreID() string { return d.storeID }

// Coordinates returns a copy of the boundary vertices.
func (d *Draft) Coordinates() []placemark.Coordinate {
	return append([]placemark.Coordinate(nil), d.coordinates...)
}

// Status returns the current draft status.
func (d *Draft) Status() DraftStatus { return d.status }

// LastError returns the reason of the last failed submission.
func (d *Draft) LastError() string { return d.lastError }

// ZoneID returns the server-assigned zone id once submitted.
func (d *Draft) ZoneID() string { return d.zoneID }

// Source returns where the draft came from in the uploaded document.
func (d *Draft) Source() DraftSource {
	return DraftSource{
		Index:    d.sourceIndex,
		Name:     d.sourceName,
		Notes:    append([]string(nil), d.notes...),
		Warnings: append([]string(nil), d.warnings...),
	}
}

// Version returns the entity version for optimistic locking.
func (d *Draft) Version() int64 { return d.version }

// CreatedAt returns the creation timestamp.
func (d *Draft) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (d *Draft) UpdatedAt() time.Time { return d.updatedAt }

// --- Behavior ---

// Validate reports every reason the draft cannot be submitted, joined. It
// returns nil when the draft is submission-ready.
func (d *Draft) Validate() error {
	var errs []error
	if d.storeID == "" {
		errs = append(errs, ErrUnresolvedStore)
	}
	if len(d.coordinates) == 0 {
		errs = append(errs, ErrNoCoordinates)
	}
	for name, v := range map[string]float64{
		"baseDeliveryFee":          d.baseDeliveryFee,
		"perMileFee":               d.perMileFee,
		"minOrderAmount":           d.minOrderAmount,
		"estimatedPreparationTime": d.estimatedPreparationTime,
	} {
		if !validAmount(v) {
			errs = append(errs, fmt.Errorf("%w: %s=%v", ErrInvalidAmount, name, v))
		}
	}
	return errors.Join(errs...)
}

// IsSubmittable reports whether Validate passes.
func (d *Draft) IsSubmittable() bool { return d.Validate() == nil }

// Review replaces the editable fields with an operator's edits.
func (d *Draft) Review(fields DraftFields) error {
	if !d.status.CanTransitionTo(StatusReviewed) {
		return domain.NewInvalidStateError(string(d.status), string(StatusReviewed))
	}
	for _, c := range fields.Coordinates {
		if !finite(c.Lat) || !finite(c.Lon) {
			return domain.NewValidationError(ErrInvalidCoordinate.Error())
		}
	}
	for _, v := range []float64{fields.BaseDeliveryFee, fields.PerMileFee, fields.MinOrderAmount, fields.EstimatedPreparationTime} {
		if !validAmount(v) {
			return domain.NewValidationError(ErrInvalidAmount.Error())
		}
	}
	if strings.TrimSpace(fields.ZoneName) == "" {
		return domain.NewValidationError(ErrEmptyZoneName.Error())
	}
	d.apply(fields)
	d.status = StatusReviewed
	d.updatedAt = time.Now().UTC()
	return nil
}

// AssignStore sets the owning store without changing the review state.
func (d *Draft) AssignStore(storeID string) error {
	if d.status.IsTerminal() || d.status == StatusSubmitting {
		return domain.NewInvalidStateError(string(d.status), string(d.status))
	}
	d.storeID = strings.TrimSpace(storeID)
	d.updatedAt = time.Now().UTC()
	return nil
}

// BeginSubmission moves a valid draft into submitting. An invalid draft stays put.
func (d *Draft) BeginSubmission() error {
	if !d.status.CanTransitionTo(StatusSubmitting) {
		return domain.NewInvalidStateError(string(d.status), string(StatusSubmitting))
	}
	if err := d.Validate(); err != nil {
		return err
	}
	d.status = StatusSubmitting
	d.lastError = ""
	d.updatedAt = time.Now().UTC()
	return nil
}

// MarkSubmitted records the server-assigned zone id.
func (d *Draft) MarkSubmitted(zoneID string) error {
	if !d.status.CanTransitionTo(StatusSubmitted) {
		return domain.NewInvalidStateError(string(d.status), string(StatusSubmitted))
	}
	d.status = StatusSubmitted
	d.zoneID = zoneID
	d.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed returns a submitting draft to parsed with the failure reason attached.
func (d *Draft) MarkFailed(reason string) error {
	if d.status != StatusSubmitting {
		return domain.NewInvalidStateError(string(d.status), string(StatusParsed))
	}
	d.status = StatusParsed
	d.lastError = reason
	d.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (d *Draft) IncrementVersion() {
	d.version++
	d.updatedAt = time.Now().UTC()
}

// CreateInput builds the outbound create request for the zone service.
func (d *Draft) CreateInput() CreateInput {
	return CreateInput{
		StoreID:                  d.storeID,
		ZoneName:                 d.zoneName,
		BaseDeliveryFee:          d.baseDeliveryFee,
		PerMileFee:               d.perMileFee,
		MinOrderAmount:           d.minOrderAmount,
		EstimatedPreparationTime: d.estimatedPreparationTime,
		IsRestricted:             d.isRestricted,
		Coordinates:              d.Coordinates(),
	}
}

func validAmount(v float64) bool { return finite(v) && v >= 0 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
