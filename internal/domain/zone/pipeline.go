package zone

import (
	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/metadata"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
)

// Assembled is one draft together with the canonical attributes it was built from.
type Assembled struct {
	Draft      *Draft
	Attributes metadata.Attributes
}

// AssembleDocument extracts every placemark of doc and assembles a draft for
// each, in document order. Document-level failures abort with no drafts.
func AssembleDocument(doc []byte, storeID string, canon *metadata.Canonicalizer, batchID uuid.UUID) ([]Assembled, error) {
	seq, err := placemark.Parse(doc)
	if err != nil {
		return nil, err
	}

	total := seq.Len()
	out := make([]Assembled, 0, total)
	index := 0
	for p := range seq.All() {
		attrs := canon.Canonicalize(p.Description)
		d := Assemble(p, attrs, storeID, AssembleOptions{
			BatchID:   batchID,
			Index:     index,
			BatchSize: total,
		})
		out = append(out, Assembled{Draft: d, Attributes: attrs})
		index++
	}
	return out, nil
}
