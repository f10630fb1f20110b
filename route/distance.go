package route

import (
	"fmt"
	"math"
)

// DistanceResolver looks up the official distance of a catalogue event.
type DistanceResolver interface {
	ExpectedDistanceKm(eventID string) (km float64, ok bool)
}

// Provenance of an expected distance.
const (
	DistanceSourceFixed     = "fixed"
	DistanceSourceCatalogue = "catalogue"
	DistanceSourceFallback  = "fallback"
)

// ExpectedDistance is the official length a route should have.
type ExpectedDistance struct {
	Meters float64 `json:"meters"`
	Source string  `json:"source"`
	Note   string  `json:"note,omitempty"`
}

// Km returns the distance in kilometers.
func (e ExpectedDistance) Km() float64 {
	return e.Meters / 1000
}

// resolveExpectedDistance applies the category policy: short courses use the
// fixed distance, events are looked up in the catalogue, everything else (and
// a catalogue miss) uses fallbackMeters.
func resolveExpectedDistance(cfg EngineConfig, resolver DistanceResolver, category Category, sourceID string, fallbackMeters float64) ExpectedDistance {
	switch category {
	case CategoryShortCourse:
		return ExpectedDistance{Meters: cfg.ShortCourseDistance, Source: DistanceSourceFixed}
	case CategoryEvent:
		id := EventID(sourceID)
		if resolver != nil && id != "" {
			if km, ok := resolver.ExpectedDistanceKm(id); ok && km > 0 {
				return ExpectedDistance{Meters: km * 1000, Source: DistanceSourceCatalogue}
			}
		}
		return ExpectedDistance{
			Meters: fallbackMeters,
			Source: DistanceSourceFallback,
			Note:   fmt.Sprintf("no catalogue distance for %q, using %.0fm", sourceID, fallbackMeters),
		}
	default:
		return ExpectedDistance{Meters: fallbackMeters, Source: DistanceSourceFallback}
	}
}

// EventID extracts the leading run of digits from a route identifier,
// e.g. "1042_Riverside_10k" -> "1042".
func EventID(sourceID string) string {
	end := 0
	for end < len(sourceID) && sourceID[end] >= '0' && sourceID[end] <= '9' {
		end++
	}
	return sourceID[:end]
}

// targetPointCount returns floor(km * pointsPerKm), never less than 2.
func targetPointCount(meters, pointsPerKm float64) int {
	n := int(math.Floor(meters / 1000 * pointsPerKm))
	if n < 2 {
		return 2
	}
	return n
}
