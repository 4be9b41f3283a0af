package zone

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/metadata"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
)

const defaultZoneName = "Imported Zone"

// Warnings recorded on drafts whose geometry had to be substituted.
const (
	WarningNoCoordinateElement = "no coordinates element"
	WarningNoValidPairs        = "no valid coordinate pairs"
	WarningDescriptionFallback = "description looked structured but was read line by line"
)

// AssembleOptions positions a placemark within its upload.
type AssembleOptions struct {
	BatchID uuid.UUID
	// Index is the 0-based position of the placemark in the document.
	Index int
	// BatchSize is the number of placemarks in the document.
	BatchSize int
}

// Assemble builds a staged draft from one placemark and its canonical attributes.
// It always succeeds; missing values fall back to defaults and storeID is kept
// as given, even when empty.
func Assemble(p placemark.Placemark, attrs metadata.Attributes, storeID string, opts AssembleOptions) *Draft {
	var warnings []string

	coords := p.Coordinates
	switch p.GeometryStatus() {
	case placemark.GeometryMissing:
		coords = []placemark.Coordinate{{Lat: 0, Lon: 0}}
		warnings = append(warnings, WarningNoCoordinateElement)
	case placemark.GeometryEmpty:
		coords = []placemark.Coordinate{{Lat: 0, Lon: 0}}
		warnings = append(warnings, WarningNoValidPairs)
	}
	if attrs.FallbackUsed {
		warnings = append(warnings, WarningDescriptionFallback)
	}

	fields := DraftFields{
		ZoneName:                 zoneName(p, attrs, opts),
		BaseDeliveryFee:          number(attrs, metadata.KeyBaseDeliveryFee),
		PerMileFee:               number(attrs, metadata.KeyPerMileFee),
		MinOrderAmount:           number(attrs, metadata.KeyMinOrderAmount),
		EstimatedPreparationTime: number(attrs, metadata.KeyEstimatedPreparationTime),
		IsRestricted:             flag(attrs, metadata.KeyIsRestricted),
		Coordinates:              coords,
		StoreID:                  storeID,
	}

	return NewDraft(opts.BatchID, fields, DraftSource{
		Index:    opts.Index,
		Name:     p.Name,
		Notes:    reviewerNotes(attrs),
		Warnings: warnings,
	})
}

func zoneName(p placemark.Placemark, attrs metadata.Attributes, opts AssembleOptions) string {
	if v, ok := attrs.Get(metadata.KeyZoneName); ok {
		if name := strings.TrimSpace(v.Raw); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	if opts.BatchSize > 1 {
		return fmt.Sprintf("%s %d", defaultZoneName, opts.Index+1)
	}
	return defaultZoneName
}

func number(attrs metadata.Attributes, key metadata.Key) float64 {
	if v, ok := attrs.Get(key); ok && v.Kind == metadata.KindNumber {
		return v.Number
	}
	return 0
}

func flag(attrs metadata.Attributes, key metadata.Key) bool {
	v, ok := attrs.Get(key)
	if !ok {
		return false
	}
	switch v.Kind {
	case metadata.KindBool:
		return v.Bool
	case metadata.KindNumber:
		return v.Number != 0
	default:
		return false
	}
}

// reviewerNotes keeps unrecognized lines first, then unknown keys sorted by name.
func reviewerNotes(attrs metadata.Attributes) []string {
	notes := append([]string(nil), attrs.Notes...)

	keys := make([]string, 0, len(attrs.Extra))
	for k := range attrs.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		notes = append(notes, k+": "+attrs.Extra[k].Raw)
	}
	return notes
}
