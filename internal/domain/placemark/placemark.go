// Package placemark extracts named geometries from placemark-based geo documents (KML).
package placemark

import (
	"iter"
	"strings"

	"github.com/beevik/etree"
)

// GeometryStatus tells apart a placemark with usable coordinates, one whose
// coordinates element held no valid pair, and one with no coordinates element at all.
type GeometryStatus string

const (
	GeometryPresent GeometryStatus = "present"
	GeometryEmpty   GeometryStatus = "empty"
	GeometryMissing GeometryStatus = "missing"
)

// Placemark is one named feature extracted from the document.
type Placemark struct {
	Name                 string
	Description          string
	Coordinates          []Coordinate
	HasCoordinateElement bool
}

// GeometryStatus reports how the placemark's geometry was found.
func (p Placemark) GeometryStatus() GeometryStatus {
	switch {
	case len(p.Coordinates) > 0:
		return GeometryPresent
	case p.HasCoordinateElement:
		return GeometryEmpty
	default:
		return GeometryMissing
	}
}

// Sequence yields the placemarks of a parsed document once, in document order.
// Each Placemark is built when it is pulled; the sequence cannot be restarted.
type Sequence struct {
	nodes []*etree.Element
	next  int
}

// Parse reads the whole document and locates its placemark nodes.
// It returns ErrDocumentUnparsable for malformed markup and ErrNoGeometryFound
// when the markup holds no placemark.
func Parse(doc []byte) (*Sequence, error) {
	root, err := parseDocument(doc)
	if err != nil {
		return nil, err
	}

	nodes := findAll(root, "Placemark", true)
	if len(nodes) == 0 {
		return nil, ErrNoGeometryFound
	}
	return &Sequence{nodes: nodes}, nil
}

// Len returns the number of placemark nodes found in the document.
func (s *Sequence) Len() int { return len(s.nodes) }

// Remaining returns how many placemarks have not been pulled yet.
func (s *Sequence) Remaining() int { return len(s.nodes) - s.next }

// Next builds and returns the next placemark. ok is false once the sequence is drained.
func (s *Sequence) Next() (p Placemark, ok bool) {
	if s.next >= len(s.nodes) {
		return Placemark{}, false
	}
	node := s.nodes[s.next]
	s.next++
	return extract(node), true
}

// All returns an iterator over the placemarks not yet pulled.
func (s *Sequence) All() iter.Seq[Placemark] {
	return func(yield func(Placemark) bool) {
		for {
			p, ok := s.Next()
			if !ok || !yield(p) {
				return
			}
		}
	}
}

func extract(node *etree.Element) Placemark {
	var p Placemark
	if name := findFirst(node, "name"); name != nil {
		p.Name = strings.TrimSpace(textContent(name))
	}
	if desc := findFirst(node, "description"); desc != nil {
		p.Description = textContent(desc)
	}
	if coords := findFirst(node, "coordinates"); coords != nil {
		p.HasCoordinateElement = true
		p.Coordinates = ParseCoordinates(textContent(coords))
	}
	return p
}
