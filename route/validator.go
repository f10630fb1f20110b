package route

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Verdict is the outcome of validating one candidate against the reference.
type Verdict struct {
	Source            string   `json:"source"`
	Accepted          bool     `json:"accepted"`
	Reasons           []string `json:"reasons,omitempty"`
	PointCount        int      `json:"pointCount"`
	Length            float64  `json:"length"`
	DistanceDiffPct   float64  `json:"distanceDiffPct"`
	ElevationCoverage float64  `json:"elevationCoverage"`
	CorridorMean      float64  `json:"corridorMean"`
	CorridorFarPct    float64  `json:"corridorFarPct"`
	StartDeviation    float64  `json:"startDeviation"`
	EndDeviation      float64  `json:"endDeviation"`
}

// Validator rejects candidates that do not plausibly trace the reference.
type Validator struct {
	cfg EngineConfig
}

// NewValidator creates a validator; zero config fields take their defaults.
func NewValidator(cfg EngineConfig) *Validator {
	return &Validator{cfg: cfg.normalized()}
}

// Validate runs every check independently and collects all failures.
func (v *Validator) Validate(c Candidate, ref *Track, expected ExpectedDistance) Verdict {
	verdict := Verdict{
		Source:            c.Source,
		PointCount:        c.PointCount(),
		Length:            c.Track.Length(),
		ElevationCoverage: c.Track.ElevationCoverage(),
	}
	reject := func(format string, args ...any) {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf(format, args...))
	}

	if !c.Track.HasElevation() {
		reject("no elevation data")
	}

	if verdict.PointCount < v.cfg.MinPoints {
		reject("too few points (%d)", verdict.PointCount)
	}

	if expected.Meters > 0 {
		verdict.DistanceDiffPct = math.Abs(verdict.Length-expected.Meters) / expected.Meters * 100
		if verdict.DistanceDiffPct > v.cfg.DistanceTolerancePct {
			reject("distance too different (%.1f%%)", verdict.DistanceDiffPct)
		}
	}

	if ref.Len() >= 2 && c.PointCount() > 0 {
		cs := corridorDeviation(c.Track, ref, v.cfg.CorridorSampleSize, v.cfg.CorridorFarDistance)
		verdict.CorridorMean = cs.Mean
		verdict.CorridorFarPct = cs.FarPct
		if cs.Mean > v.cfg.CorridorMaxMean || cs.FarPct > v.cfg.CorridorMaxFarPct {
			reject("route corridor too different from reference (mean %.1fm, %.1f%% beyond %.0fm)",
				cs.Mean, cs.FarPct, v.cfg.CorridorFarDistance)
		}
	}

	start, end, ok := endpointDeviations(c.Track, ref)
	if !ok {
		reject("could not get coordinates")
	} else {
		verdict.StartDeviation = start
		verdict.EndDeviation = end
		if start > v.cfg.EndpointTolerance {
			reject("start too far (%.0fm)", start)
		}
		if end > v.cfg.EndpointTolerance {
			reject("end too far (%.0fm)", end)
		}
	}

	verdict.Accepted = len(verdict.Reasons) == 0
	return verdict
}

// ValidateAll validates every candidate and returns the accepted ones in input
// order along with all verdicts.
func (v *Validator) ValidateAll(cands []Candidate, ref *Track, expected ExpectedDistance) ([]Candidate, []Verdict) {
	accepted := make([]Candidate, 0, len(cands))
	verdicts := make([]Verdict, 0, len(cands))
	for _, c := range cands {
		verdict := v.Validate(c, ref, expected)
		verdicts = append(verdicts, verdict)
		if verdict.Accepted {
			accepted = append(accepted, c)
		}
	}
	return accepted, verdicts
}

// corridorStats summarises how far sampled track points lie from a reference.
type corridorStats struct {
	Mean    float64
	FarPct  float64
	Samples int
}

// samplePoints picks up to size points using a fixed stride of
// max(1, n/size), starting at index 0.
func samplePoints(points []GeoPoint, size int) []GeoPoint {
	n := len(points)
	if size > n {
		size = n
	}
	if size <= 0 {
		return nil
	}
	step := n / size
	if step < 1 {
		step = 1
	}
	out := make([]GeoPoint, 0, size)
	for i := 0; i < size && i*step < n; i++ {
		out = append(out, points[i*step])
	}
	return out
}

// corridorDeviation samples the track and measures each sample's distance to
// the reference polyline. An empty reference yields +Inf.
func corridorDeviation(t, ref *Track, sampleSize int, farDistance float64) corridorStats {
	samples := samplePoints(t.pointsOrNil(), sampleSize)
	if len(samples) == 0 || ref.Len() == 0 {
		return corridorStats{Mean: math.Inf(1), FarPct: 100}
	}

	dists := make(stats.Float64Data, 0, len(samples))
	far := 0
	for _, p := range samples {
		d := nearestCorridorDistance(p, ref.Points)
		dists = append(dists, d)
		if d > farDistance {
			far++
		}
	}

	mean, _ := dists.Mean()
	return corridorStats{
		Mean:    mean,
		FarPct:  float64(far) / float64(len(samples)) * 100,
		Samples: len(samples),
	}
}

// endpointDeviations returns the start-to-start and end-to-end distances.
func endpointDeviations(t, ref *Track) (start, end float64, ok bool) {
	ts, ok1 := t.Start()
	te, ok2 := t.End()
	rs, ok3 := ref.Start()
	re, ok4 := ref.End()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}
	return Distance(ts, rs), Distance(te, re), true
}

// worstEndpointDeviation returns the larger endpoint deviation, or +Inf when
// either track is empty.
func worstEndpointDeviation(t, ref *Track) float64 {
	start, end, ok := endpointDeviations(t, ref)
	if !ok {
		return math.Inf(1)
	}
	return math.Max(start, end)
}
