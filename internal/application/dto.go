package application

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

// DraftDTO is the response representation of a staged draft.
type DraftDTO struct {
	ID                       uuid.UUID              `json:"id"`
	BatchID                  uuid.UUID              `json:"batchId"`
	ZoneName                 string                 `json:"zoneName"`
	BaseDeliveryFee          float64                `json:"baseDeliveryFee"`
	PerMileFee               float64                `json:"perMileFee"`
	MinOrderAmount           float64                `json:"minOrderAmount"`
	EstimatedPreparationTime float64                `json:"estimatedPreparationTime"`
	IsRestricted             bool                   `json:"isRestricted"`
	Coordinates              []placemark.Coordinate `json:"coordinates"`
	StoreID                  string                 `json:"storeId"`
	Status                   string                 `json:"status"`
	LastError                string                 `json:"lastError,omitempty"`
	Submittable              bool                   `json:"submittable"`
	BlockingReasons          []string               `json:"blockingReasons,omitempty"`
	SourceIndex              int                    `json:"sourceIndex"`
	SourceName               string                 `json:"sourceName,omitempty"`
	Notes                    []string               `json:"notes,omitempty"`
	Warnings                 []string               `json:"warnings,omitempty"`
	Version                  int64                  `json:"version"`
	CreatedAt                time.Time              `json:"createdAt"`
	UpdatedAt                time.Time              `json:"updatedAt"`
}

// StoreResolutionDTO reports how the upload's store name matched.
type StoreResolutionDTO struct {
	Query       string `json:"query"`
	Tier        string `json:"tier"`
	StoreID     string `json:"storeId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// ImportResult is returned by a successful upload.
type ImportResult struct {
	BatchID          uuid.UUID          `json:"batchId"`
	Filename         string             `json:"filename"`
	PlacemarkCount   int                `json:"placemarkCount"`
	SubmittableCount int                `json:"submittableCount"`
	Store            StoreResolutionDTO `json:"store"`
	Drafts           []DraftDTO         `json:"drafts"`
}

// SubmissionOutcome is the per-draft result of a bulk submission.
type SubmissionOutcome struct {
	DraftID  uuid.UUID `json:"draftId"`
	ZoneName string    `json:"zoneName"`
	Status   string    `json:"status"`
	ZoneID   string    `json:"zoneId,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Outcome statuses.
const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
	OutcomeBlocked   = "blocked"
)

// BulkSubmitReport summarizes a create-all run.
type BulkSubmitReport struct {
	BatchID   uuid.UUID           `json:"batchId"`
	Total     int                 `json:"total"`
	Submitted int                 `json:"submitted"`
	Failed    int                 `json:"failed"`
	Blocked   int                 `json:"blocked"`
	Outcomes  []SubmissionOutcome `json:"outcomes"`
}

// ZoneDTO is the response representation of a persisted zone.
type ZoneDTO = zone.Zone

// StoreDTO is the response representation of a directory entry.
type StoreDTO = store.Entry

func toDraftDTO(d *zone.Draft) DraftDTO {
	f := d.Fields()
	src := d.Source()
	reasons := blockingReasons(d.Validate())
	return DraftDTO{
		ID:                       d.ID(),
		BatchID:                  d.BatchID(),
		ZoneName:                 f.ZoneName,
		BaseDeliveryFee:          f.BaseDeliveryFee,
		PerMileFee:               f.PerMileFee,
		MinOrderAmount:           f.MinOrderAmount,
		EstimatedPreparationTime: f.EstimatedPreparationTime,
		IsRestricted:             f.IsRestricted,
		Coordinates:              f.Coordinates,
		StoreID:                  f.StoreID,
		Status:                   d.Status().String(),
		LastError:                d.LastError(),
		Submittable:              len(reasons) == 0,
		BlockingReasons:          reasons,
		SourceIndex:              src.Index,
		SourceName:               src.Name,
		Notes:                    src.Notes,
		Warnings:                 src.Warnings,
		Version:                  d.Version(),
		CreatedAt:                d.CreatedAt(),
		UpdatedAt:                d.UpdatedAt(),
	}
}

func toDraftDTOs(drafts []*zone.Draft) []DraftDTO {
	dtos := make([]DraftDTO, len(drafts))
	for i, d := range drafts {
		dtos[i] = toDraftDTO(d)
	}
	return dtos
}

// blockingReasons flattens a joined validation error into its messages.
func blockingReasons(err error) []string {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
