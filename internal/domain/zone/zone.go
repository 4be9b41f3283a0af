package zone

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
)

// Zone is a delivery zone as persisted by the zone service.
type Zone struct {
	ID                       string                 `json:"id"`
	StoreID                  string                 `json:"storeId"`
	ZoneName                 string                 `json:"zoneName"`
	BaseDeliveryFee          float64                `json:"baseDeliveryFee"`
	PerMileFee               float64                `json:"perMileFee"`
	MinOrderAmount           float64                `json:"minOrderAmount"`
	EstimatedPreparationTime float64                `json:"estimatedPreparationTime"`
	IsRestricted             bool                   `json:"isRestricted"`
	Coordinates              []placemark.Coordinate `json:"coordinates"`
}

// CreateInput is the payload for creating a zone.
type CreateInput struct {
	StoreID                  string                 `json:"storeId"`
	ZoneName                 string                 `json:"zoneName"`
	BaseDeliveryFee          float64                `json:"baseDeliveryFee"`
	PerMileFee               float64                `json:"perMileFee"`
	MinOrderAmount           float64                `json:"minOrderAmount"`
	EstimatedPreparationTime float64                `json:"estimatedPreparationTime"`
	IsRestricted             bool                   `json:"isRestricted"`
	Coordinates              []placemark.Coordinate `json:"coordinates"`
}

// Patch is a partial update of an existing zone. Nil fields are left unchanged.
type Patch struct {
	ZoneName                 *string                `json:"zoneName,omitempty"`
	BaseDeliveryFee          *float64               `json:"baseDeliveryFee,omitempty"`
	PerMileFee               *float64               `json:"perMileFee,omitempty"`
	MinOrderAmount           *float64               `json:"minOrderAmount,omitempty"`
	EstimatedPreparationTime *float64               `json:"estimatedPreparationTime,omitempty"`
	IsRestricted             *bool                  `json:"isRestricted,omitempty"`
	Coordinates              []placemark.Coordinate `json:"coordinates,omitempty"`
}

// Validate rejects patches that would break the zone's amount or geometry rules.
func (p Patch) Validate() error {
	for _, v := range []*float64{p.BaseDeliveryFee, p.PerMileFee, p.MinOrderAmount, p.EstimatedPreparationTime} {
		if v != nil && !validAmount(*v) {
			return ErrInvalidAmount
		}
	}
	if p.ZoneName != nil && strings.TrimSpace(*p.ZoneName) == "" {
		return ErrEmptyZoneName
	}
	for _, c := range p.Coordinates {
		if !finite(c.Lat) || !finite(c.Lon) {
			return ErrInvalidCoordinate
		}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.ZoneName == nil && p.BaseDeliveryFee == nil && p.PerMileFee == nil &&
		p.MinOrderAmount == nil && p.EstimatedPreparationTime == nil &&
		p.IsRestricted == nil && len(p.Coordinates) == 0
}

// Batch groups the drafts staged by one upload.
type Batch struct {
	ID             uuid.UUID
	Filename       string
	StoreQuery     string
	StoreID        string
	PlacemarkCount int
	CreatedAt      time.Time
}

// NewBatch creates a batch record for an upload.
func NewBatch(filename, storeQuery, storeID string, placemarkCount int) *Batch {
	return &Batch{
		ID:             uuid.New(),
		Filename:       filename,
		StoreQuery:     strings.TrimSpace(storeQuery),
		StoreID:        storeID,
		PlacemarkCount: placemarkCount,
		CreatedAt:      time.Now().UTC(),
	}
}
