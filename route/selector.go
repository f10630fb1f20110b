package route

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoCandidates is returned when selection is attempted on an empty set.
var ErrNoCandidates = errors.New("no candidates")

// Selection records which candidate became the geometric base and the
// resampling target derived from it.
type Selection struct {
	Base           Candidate        `json:"-"`
	BaseSource     string           `json:"base"`
	Reason         string           `json:"reason"`
	Ranked         []string         `json:"ranked"`
	TargetDistance ExpectedDistance `json:"targetDistance"`
	TargetPoints   int              `json:"targetPoints"`
}

// Selector chooses the base candidate.
type Selector struct {
	cfg      EngineConfig
	resolver DistanceResolver
}

// NewSelector creates a selector. resolver may be nil, in which case event
// routes fall back to the base length.
func NewSelector(cfg EngineConfig, resolver DistanceResolver) *Selector {
	return &Selector{cfg: cfg.normalized(), resolver: resolver}
}

// rankByPoints returns a copy of cands ordered by point count, highest first.
// Ties keep their input order.
func rankByPoints(cands []Candidate) []Candidate {
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PointCount() > ranked[j].PointCount()
	})
	return ranked
}

// Select picks the densest candidate unless the runner-up is comparably dense
// and follows the reference corridor clearly better.
func (s *Selector) Select(cands []Candidate, category Category, ref *Track, sourceID string) (Selection, error) {
	if len(cands) == 0 {
		return Selection{}, ErrNoCandidates
	}

	ranked := rankByPoints(cands)
	sel := Selection{
		Base:   ranked[0],
		Reason: "most points",
		Ranked: make([]string, len(ranked)),
	}
	for i, c := range ranked {
		sel.Ranked[i] = c.Source
	}

	if len(ranked) > 1 {
		top, second := ranked[0], ranked[1]
		if float64(second.PointCount()) > s.cfg.GuardrailPointRatio*float64(top.PointCount()) {
			if ok, reason := s.preferSecond(top, second, category, ref); ok {
				sel.Base = second
				sel.Reason = reason
			}
		}
	}
	sel.BaseSource = sel.Base.Source

	sel.TargetDistance = resolveExpectedDistance(s.cfg, s.resolver, category, sourceID, sel.Base.Track.Length())
	sel.TargetPoints = targetPointCount(sel.TargetDistance.Meters, s.cfg.PointsPerKm)
	return sel, nil
}

func (s *Selector) preferSecond(top, second Candidate, category Category, ref *Track) (bool, string) {
	topCorridor := corridorDeviation(top.Track, ref, s.cfg.CorridorSampleSize, s.cfg.CorridorFarDistance).Mean
	secondCorridor := corridorDeviation(second.Track, ref, s.cfg.CorridorSampleSize, s.cfg.CorridorFarDistance).Mean

	if category == CategoryEvent {
		topEnd := worstEndpointDeviation(top.Track, ref)
		secondEnd := worstEndpointDeviation(second.Track, ref)
		if secondEnd < s.cfg.EventEndpointGood && topEnd > s.cfg.EventEndpointPoor &&
			secondCorridor < s.cfg.EventCorridorSlack*topCorridor {
			return true, fmt.Sprintf("endpoint alignment (%.0fm vs %.0fm)", secondEnd, topEnd)
		}
	}

	if secondCorridor < s.cfg.GuardrailCorridorRatio*topCorridor {
		return true, fmt.Sprintf("corridor alignment (%.1fm vs %.1fm)", secondCorridor, topCorridor)
	}
	return false, ""
}
