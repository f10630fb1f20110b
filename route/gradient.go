package route

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Accessibility is a wheelchair/pushchair rating derived from gradients.
type Accessibility string

const (
	AccessibilityExcellent   Accessibility = "Excellent"
	AccessibilityGood        Accessibility = "Good"
	AccessibilityModerate    Accessibility = "Moderate"
	AccessibilityChallenging Accessibility = "Challenging"
	AccessibilityUnknown     Accessibility = "Unknown"
)

// SteepStats summarises segments steeper than Threshold percent.
type SteepStats struct {
	Threshold      float64 `json:"threshold"`
	Segments       int     `json:"segments"`
	Distance       float64 `json:"distance"`
	RoutePct       float64 `json:"routePct"`
	Stretches      int     `json:"stretches"`
	AvgStretch     float64 `json:"avgStretch"`
	LongestStretch float64 `json:"longestStretch"`
}

// GradientAnalysis describes the vertical profile of a track.
type GradientAnalysis struct {
	Name                 string        `json:"name"`
	TotalDistance        float64       `json:"totalDistance"`
	PointCount           int           `json:"pointCount"`
	ElevationCoveragePct float64       `json:"elevationCoveragePct"`
	MinElevation         float64       `json:"minElevation"`
	MaxElevation         float64       `json:"maxElevation"`
	AvgElevation         float64       `json:"avgElevation"`
	Gain                 float64       `json:"gain"`
	Loss                 float64       `json:"loss"`
	MaxGradient          float64       `json:"maxGradient"`
	AvgGradient          float64       `json:"avgGradient"`
	Steep5               SteepStats    `json:"steep5"`
	Steep8               SteepStats    `json:"steep8"`
	Rating               Accessibility `json:"rating"`
}

// AnalyzeGradients computes elevation statistics, steep stretches and an
// accessibility rating. Segments missing an elevation at either end count as
// flat.
func AnalyzeGradients(t *Track) GradientAnalysis {
	a := GradientAnalysis{
		Name:                 t.Name,
		TotalDistance:        t.Length(),
		PointCount:           t.Len(),
		ElevationCoveragePct: t.ElevationCoverage() * 100,
		Rating:               AccessibilityUnknown,
	}

	var elevations stats.Float64Data
	var prevEle float64
	havePrev := false
	for _, p := range t.pointsOrNil() {
		ele, ok := p.Elevation()
		if !ok {
			continue
		}
		elevations = append(elevations, ele)
		if havePrev {
			if ele > prevEle {
				a.Gain += ele - prevEle
			} else {
				a.Loss += prevEle - ele
			}
		}
		prevEle, havePrev = ele, true
	}
	if len(elevations) > 0 {
		a.MinElevation, _ = elevations.Min()
		a.MaxElevation, _ = elevations.Max()
		a.AvgElevation, _ = elevations.Mean()
	}

	if t.Len() < 2 || len(elevations) < 2 {
		return a
	}

	cum := t.CumulativeDistances()
	grades := make(stats.Float64Data, t.Len()-1)
	for i := 1; i < t.Len(); i++ {
		e1, ok1 := t.Points[i-1].Elevation()
		e2, ok2 := t.Points[i].Elevation()
		if dist := cum[i] - cum[i-1]; ok1 && ok2 && dist > 0 {
			grades[i-1] = math.Abs((e2 - e1) / dist * 100)
		}
	}
	a.MaxGradient, _ = grades.Max()
	a.AvgGradient, _ = grades.Mean()
	a.Steep5 = steepStretches(grades, cum, 5)
	a.Steep8 = steepStretches(grades, cum, 8)

	switch {
	case a.MaxGradient <= 5:
		a.Rating = AccessibilityExcellent
	case a.MaxGradient <= 8 && a.Steep5.RoutePct < 10:
		a.Rating = AccessibilityGood
	case a.MaxGradient <= 12 && a.Steep8.RoutePct < 5:
		a.Rating = AccessibilityModerate
	default:
		a.Rating = AccessibilityChallenging
	}
	return a
}

// steepStretches groups consecutive segments steeper than threshold. Segment
// i spans points i and i+1.
func steepStretches(grades []float64, cum []float64, threshold float64) SteepStats {
	s := SteepStats{Threshold: threshold}
	total := cum[len(cum)-1]

	runStart := -1
	closeRun := func(end int) {
		length := cum[end+1] - cum[runStart]
		s.Stretches++
		s.Distance += length
		s.LongestStretch = math.Max(s.LongestStretch, length)
		runStart = -1
	}
	for i, g := range grades {
		if g > threshold {
			s.Segments++
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			closeRun(i - 1)
		}
	}
	if runStart >= 0 {
		closeRun(len(grades) - 1)
	}

	if s.Stretches > 0 {
		s.AvgStretch = s.Distance / float64(s.Stretches)
	}
	if total > 0 {
		s.RoutePct = s.Distance / total * 100
	}
	return s
}
