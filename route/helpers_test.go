package route

import (
	"math"
	"testing"
)

// --- helpers ---

const testLat, testLon = 51.5, -0.12

// metersToLat converts a north-south distance to degrees of latitude.
func metersToLat(m float64) float64 {
	return m / EarthRadius * 180 / math.Pi
}

// metersToLon converts an east-west distance at lat to degrees of longitude.
func metersToLon(m, lat float64) float64 {
	return m / (EarthRadius * math.Cos(toRadians(lat))) * 180 / math.Pi
}

// northTrack builds n points running due north for length meters, shifted
// east by offset meters. ele < 0 leaves elevation unset.
func northTrack(name string, length float64, n int, offset, ele float64) *Track {
	pts := make([]GeoPoint, n)
	lon := testLon + metersToLon(offset, testLat)
	for i := range pts {
		lat := testLat + metersToLat(length*float64(i)/float64(n-1))
		if ele >= 0 {
			pts[i] = NewPointWithElevation(lat, lon, ele)
		} else {
			pts[i] = NewPoint(lat, lon)
		}
	}
	return NewTrack(name, pts)
}

func candidate(source string, t *Track) Candidate {
	return Candidate{Source: source, Track: t}
}

// stubResolver is a fixed event-id to km table.
type stubResolver map[string]float64

func (s stubResolver) ExpectedDistanceKm(id string) (float64, bool) {
	km, ok := s[id]
	return km, ok
}

// shiftNorth returns a copy of t moved north by m meters.
func shiftNorth(t *Track, m float64) *Track {
	pts := make([]GeoPoint, len(t.Points))
	for i, p := range t.Points {
		p.Lat += metersToLat(m)
		pts[i] = p
	}
	return NewTrack(t.Name, pts)
}

// withPoints truncates the candidate's track to its first n points.
func (c Candidate) withPoints(n int) Candidate {
	return Candidate{Source: c.Source, Track: NewTrack(c.Track.Name, c.Track.Points[:n])}
}

// sampleResult runs the engine on a clean short-course route.
func sampleResult(t *testing.T) *Result {
	t.Helper()
	res, err := NewEngine(DefaultEngineConfig(), nil).Run(RunInput{
		SourceID:  "PR_Bushy",
		Category:  CategoryShortCourse,
		Reference: northTrack("ref", 5000, 60, 0, -1),
		Candidates: []Candidate{
			candidate("watch.gpx", northTrack("watch", 5000, 600, 0, 30)),
			candidate("phone.gpx", northTrack("phone", 5000, 400, 3, 31)),
		},
	})
	if err != nil {
		t.Fatalf("sample run failed: %v", err)
	}
	return res
}
