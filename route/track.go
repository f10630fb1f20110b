package route

import (
	"strings"
	"unicode"

	"github.com/paulmach/orb"
)

// GeoPoint is a WGS84 position with an optional elevation in meters.
// A nil Ele means the source had no elevation for this point, which is
// different from an elevation of zero.
type GeoPoint struct {
	Lat float64  `json:"lat"`
	Lon float64  `json:"lon"`
	Ele *float64 `json:"ele,omitempty"`
}

// NewPoint returns a point without elevation.
func NewPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Lat: lat, Lon: lon}
}

// NewPointWithElevation returns a point carrying an elevation.
func NewPointWithElevation(lat, lon, ele float64) GeoPoint {
	return GeoPoint{Lat: lat, Lon: lon, Ele: &ele}
}

// HasElevation reports whether the point carries an elevation.
func (p GeoPoint) HasElevation() bool {
	return p.Ele != nil
}

// Elevation returns the elevation and whether it is present.
func (p GeoPoint) Elevation() (float64, bool) {
	if p.Ele == nil {
		return 0, false
	}
	return *p.Ele, true
}

// WithElevation returns a copy of p with the given elevation.
func (p GeoPoint) WithElevation(ele float64) GeoPoint {
	return GeoPoint{Lat: p.Lat, Lon: p.Lon, Ele: &ele}
}

// Orb converts the point to an orb.Point (lon, lat order).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Track is an ordered, read-only sequence of points.
type Track struct {
	Name   string
	Points []GeoPoint
}

// NewTrack builds a track over a private copy of points.
func NewTrack(name string, points []GeoPoint) *Track {
	cp := make([]GeoPoint, len(points))
	copy(cp, points)
	return &Track{Name: name, Points: cp}
}

// Len returns the number of points; a nil track has none.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Points)
}

// Length returns the sum of consecutive haversine distances in meters.
func (t *Track) Length() float64 {
	if t.Len() < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(t.Points); i++ {
		total += Distance(t.Points[i-1], t.Points[i])
	}
	return total
}

// CumulativeDistances returns, for each point, the distance travelled from the
// first point. The first entry is always 0.
func (t *Track) CumulativeDistances() []float64 {
	n := t.Len()
	cum := make([]float64, n)
	for i := 1; i < n; i++ {
		cum[i] = cum[i-1] + Distance(t.Points[i-1], t.Points[i])
	}
	return cum
}

// Start returns the first point.
func (t *Track) Start() (GeoPoint, bool) {
	if t.Len() == 0 {
		return GeoPoint{}, false
	}
	return t.Points[0], true
}

// End returns the last point.
func (t *Track) End() (GeoPoint, bool) {
	if t.Len() == 0 {
		return GeoPoint{}, false
	}
	return t.Points[len(t.Points)-1], true
}

// ElevationCount returns the number of points carrying elevation.
func (t *Track) ElevationCount() int {
	n := 0
	for _, p := range t.pointsOrNil() {
		if p.HasElevation() {
			n++
		}
	}
	return n
}

// ElevationCoverage returns the fraction (0..1) of points carrying elevation.
func (t *Track) ElevationCoverage() float64 {
	if t.Len() == 0 {
		return 0
	}
	return float64(t.ElevationCount()) / float64(t.Len())
}

// HasElevation reports whether at least one point carries elevation.
func (t *Track) HasElevation() bool {
	return t.ElevationCount() > 0
}

// LineString converts the track to an orb.LineString.
func (t *Track) LineString() orb.LineString {
	ls := make(orb.LineString, 0, t.Len())
	for _, p := range t.pointsOrNil() {
		ls = append(ls, p.Orb())
	}
	return ls
}

// Bound returns the lon/lat bounding box of the track.
func (t *Track) Bound() orb.Bound {
	return t.LineString().Bound()
}

func (t *Track) pointsOrNil() []GeoPoint {
	if t == nil {
		return nil
	}
	return t.Points
}

// Candidate is one independently captured trace of a course.
type Candidate struct {
	Source string // usually the file name
	Track  *Track
}

// PointCount returns the number of points in the candidate's track.
func (c Candidate) PointCount() int {
	return c.Track.Len()
}

// Category selects the expected-distance and proximity policies for a run.
type Category string

const (
	// CategoryShortCourse is a fixed 5 km course run as laps or a single loop.
	CategoryShortCourse Category = "short-course"
	// CategoryEvent is an annual event whose distance comes from the catalogue.
	CategoryEvent Category = "event"
	// CategoryOther covers everything else.
	CategoryOther Category = "other"
)

// ParseCategory maps a config or flag value to a Category.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short-course", "shortcourse", "parkrun":
		return CategoryShortCourse, true
	case "event":
		return CategoryEvent, true
	case "other", "":
		return CategoryOther, true
	}
	return "", false
}

// DetectCategory derives the category from a route file name: names starting
// with "PR" (case-sensitive) are short courses, names starting with a digit
// are catalogue events.
func DetectCategory(name string) Category {
	switch {
	case strings.HasPrefix(name, "PR"):
		return CategoryShortCourse
	case name != "" && unicode.IsDigit(rune(name[0])):
		return CategoryEvent
	default:
		return CategoryOther
	}
}

// ResolutionClass buckets a track by its number of elevated points:
// "low" below 400, "medium" up to 599, "high" above.
func ResolutionClass(t *Track) string {
	n := t.ElevationCount()
	switch {
	case n < 400:
		return "low"
	case n <= 599:
		return "medium"
	default:
		return "high"
	}
}
