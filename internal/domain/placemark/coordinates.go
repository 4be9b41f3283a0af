package placemark

import (
	"math"
	"strconv"
	"strings"
)

// Coordinate is a single vertex in (latitude, longitude) order.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// ParseCoordinates tokenizes KML coordinate text into (lat, lon) pairs.
//
// The source order inside each token is "lon,lat[,alt]". Altitude is ignored and a
// token whose longitude or latitude is missing or not a finite number is dropped.
// Retained pairs keep their relative order, which defines the boundary walk.
func ParseCoordinates(text string) []Coordinate {
	tokens := strings.Fields(text)
	coords := make([]Coordinate, 0, len(tokens))
	for _, tok := range tokens {
		parts := strings.Split(tok, ",")
		if len(parts) < 2 {
			continue
		}
		lon, ok := parseFinite(parts[0])
		if !ok {
			continue
		}
		lat, ok := parseFinite(parts[1])
		if !ok {
			continue
		}
		coords = append(coords, Coordinate{Lat: lat, Lon: lon})
	}
	return coords
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
