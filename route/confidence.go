package route

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Level is the qualitative bucket of an overall score.
type Level string

const (
	LevelExcellent  Level = "excellent"
	LevelGood       Level = "good"
	LevelAcceptable Level = "acceptable"
	LevelPoor       Level = "poor"
)

// LevelFor buckets an overall score. Everything but poor passes.
func LevelFor(score float64) Level {
	switch {
	case score >= 85:
		return LevelExcellent
	case score >= 70:
		return LevelGood
	case score >= 55:
		return LevelAcceptable
	default:
		return LevelPoor
	}
}

// Baseline quality of the reference track.
const (
	BaselineOK     = "OK"
	BaselineLowRes = "LOW_RES"
)

// BaselineQuality describes how much the reference can be trusted as a
// yardstick.
type BaselineQuality struct {
	Status string  `json:"status"`
	Points int     `json:"points"`
	Length float64 `json:"length"`
}

// ScoreDetails carries the measurements behind each component score.
// Distances that could not be measured are reported as -1.
type ScoreDetails struct {
	OutputLength    float64 `json:"outputLength"`
	DistanceDiffPct float64 `json:"distanceDiffPct"`

	JumpCount int     `json:"jumpCount"`
	MaxJump   float64 `json:"maxJump"`

	PointsPerKm float64 `json:"pointsPerKm"`

	StartDeviation        float64 `json:"startDeviation"`
	EndDeviation          float64 `json:"endDeviation"`
	ProximityDeviation    float64 `json:"proximityDeviation"`
	ProximityBasis        string  `json:"proximityBasis"`
	RoutePattern          string  `json:"routePattern"`
	StartFinishSeparation float64 `json:"startFinishSeparation"`
	ClosedLoop            bool    `json:"closedLoop"`

	ElevationCoveragePct float64 `json:"elevationCoveragePct"`
	ElevationSpikes      int     `json:"elevationSpikes"`
	MaxSpike             float64 `json:"maxSpike"`

	FidelityMean   float64 `json:"fidelityMean"`
	FidelityMax    float64 `json:"fidelityMax"`
	FidelityBasis  string  `json:"fidelityBasis"`
	OffRoutePct    float64 `json:"offRoutePct"`
	AgreementMean  float64 `json:"agreementMean"`
	AgreementPairs int     `json:"agreementPairs"`
	CandidateCount int     `json:"candidateCount"`
}

// ConfidenceReport is the scored assessment of one output track.
type ConfidenceReport struct {
	Scores   map[Component]int `json:"scores"`
	Weights  Weights           `json:"weights"`
	Overall  float64           `json:"overall"`
	Level    Level             `json:"level"`
	Valid    bool              `json:"valid"`
	Expected ExpectedDistance  `json:"expected"`
	Baseline BaselineQuality   `json:"baseline"`
	Details  ScoreDetails      `json:"details"`
}

// ScoreInput is everything the scorer looks at.
type ScoreInput struct {
	Output     *Track
	Reference  *Track
	Base       *Track // may be nil
	Category   Category
	SourceID   string
	Candidates []Candidate // accepted candidates
}

// Scorer computes seven-factor confidence reports.
type Scorer struct {
	cfg      EngineConfig
	resolver DistanceResolver
}

// NewScorer creates a scorer. resolver may be nil.
func NewScorer(cfg EngineConfig, resolver DistanceResolver) *Scorer {
	return &Scorer{cfg: cfg.normalized(), resolver: resolver}
}

// Score evaluates the output track. It never fails; a weak result is reported
// through Level and Valid.
func (s *Scorer) Score(in ScoreInput) *ConfidenceReport {
	expected := resolveExpectedDistance(s.cfg, s.resolver, in.Category, in.SourceID, in.Reference.Length())
	if expected.Meters <= 0 && in.Base.Len() >= 2 {
		expected = ExpectedDistance{
			Meters: in.Base.Length(),
			Source: DistanceSourceFallback,
			Note:   "reference has no length, using base length",
		}
	}

	r := &ConfidenceReport{
		Scores:   make(map[Component]int, len(Components)),
		Expected: expected,
		Baseline: s.baseline(in.Reference, expected),
	}
	d := &r.Details
	d.CandidateCount = len(in.Candidates)

	r.Scores[ComponentDistance] = s.scoreDistance(in.Output, expected, d)
	r.Scores[ComponentJumps] = s.scoreJumps(in.Output, d)
	r.Scores[ComponentDensity] = scoreDensity(in.Output, d)
	r.Scores[ComponentElevation] = s.scoreElevation(in.Output, d)
	r.Scores[ComponentFidelity] = s.scoreFidelity(in.Output, in.Base, in.Reference, d)
	r.Scores[ComponentProximity] = s.scoreProximity(in, r.Scores, d)
	r.Scores[ComponentAgreement] = s.scoreAgreement(in.Candidates, d)

	r.Weights = WeightsFor(len(in.Candidates))
	r.Overall = weightedOverall(r.Scores, r.Weights)
	r.Level = LevelFor(r.Overall)
	r.Valid = r.Level != LevelPoor
	return r
}

// weightedOverall sums the weighted component scores, rounded to 1e-9 so a
// sum that is exactly on a level threshold does not fall below it.
func weightedOverall(scores map[Component]int, w Weights) float64 {
	var o float64
	for _, c := range Components {
		o += float64(scores[c]) * w[c]
	}
	return math.Round(o*1e9) / 1e9
}

func (s *Scorer) baseline(ref *Track, expected ExpectedDistance) BaselineQuality {
	b := BaselineQuality{Status: BaselineOK, Points: ref.Len(), Length: ref.Length()}
	// Compared against the resolved expected distance, so for events a short
	// reference is flagged against the catalogue distance.
	if b.Points < s.cfg.LowResReferencePts || b.Length < s.cfg.LowResReferenceRatio*expected.Meters {
		b.Status = BaselineLowRes
	}
	return b
}

func (s *Scorer) scoreDistance(out *Track, expected ExpectedDistance, d *ScoreDetails) int {
	d.OutputLength = out.Length()
	if expected.Meters <= 0 {
		d.DistanceDiffPct = -1
		return 20
	}
	d.DistanceDiffPct = math.Abs(d.OutputLength-expected.Meters) / expected.Meters * 100
	switch {
	case d.DistanceDiffPct <= 2:
		return 100
	case d.DistanceDiffPct <= 5:
		return 80
	case d.DistanceDiffPct <= 10:
		return 60
	default:
		return 20
	}
}

func (s *Scorer) scoreJumps(out *Track, d *ScoreDetails) int {
	pts := out.pointsOrNil()
	for i := 1; i < len(pts); i++ {
		gap := Distance(pts[i-1], pts[i])
		if gap > s.cfg.JumpThreshold {
			d.JumpCount++
			d.MaxJump = math.Max(d.MaxJump, gap)
		}
	}
	switch {
	case d.JumpCount == 0:
		return 100
	case d.JumpCount <= 2:
		return 70
	case d.JumpCount <= 5:
		return 40
	default:
		return 10
	}
}

func scoreDensity(out *Track, d *ScoreDetails) int {
	if km := out.Length() / 1000; km > 0 {
		d.PointsPerKm = float64(out.Len()) / km
	}
	switch {
	case d.PointsPerKm >= 120:
		return 100
	case d.PointsPerKm >= 100:
		return 90
	case d.PointsPerKm >= 80:
		return 70
	case d.PointsPerKm >= 60:
		return 50
	default:
		return 20
	}
}

func (s *Scorer) scoreElevation(out *Track, d *ScoreDetails) int {
	d.ElevationCoveragePct = out.ElevationCoverage() * 100
	pts := out.pointsOrNil()
	for i := 1; i < len(pts); i++ {
		prev, ok1 := pts[i-1].Elevation()
		cur, ok2 := pts[i].Elevation()
		if !ok1 || !ok2 {
			continue
		}
		if diff := math.Abs(cur - prev); diff > s.cfg.ElevationSpike {
			d.ElevationSpikes++
			d.MaxSpike = math.Max(d.MaxSpike, diff)
		}
	}

	cov, spikes := d.ElevationCoveragePct, d.ElevationSpikes
	switch {
	case cov >= 99 && spikes <= 2:
		return 100
	case cov >= 95 && spikes <= 5:
		return 85
	case cov >= 90 && spikes <= 10:
		return 70
	case cov >= 80:
		return 50
	default:
		return 20
	}
}

func (s *Scorer) scoreFidelity(out, base, ref *Track, d *ScoreDetails) int {
	target, basis := base, "base"
	if target.Len() == 0 {
		target, basis = ref, "reference"
	}
	if target.Len() == 0 || out.Len() == 0 {
		d.FidelityMean, d.FidelityMax, d.FidelityBasis = -1, -1, "none"
		return blendFidelity(60, 40)
	}
	d.FidelityBasis = basis

	dists := make(stats.Float64Data, 0, out.Len())
	offRoute := 0
	for _, p := range out.Points {
		dist := nearestPointDistance(p, target.Points)
		dists = append(dists, dist)
		if dist > s.cfg.CorridorFarDistance {
			offRoute++
		}
	}
	d.FidelityMean, _ = dists.Mean()
	d.FidelityMax, _ = dists.Max()
	d.OffRoutePct = float64(offRoute) / float64(len(dists)) * 100

	var meanScore, maxScore int
	switch {
	case d.FidelityMean <= 3:
		meanScore = 100
	case d.FidelityMean <= 6:
		meanScore = 90
	case d.FidelityMean <= 10:
		meanScore = 80
	case d.FidelityMean <= 15:
		meanScore = 70
	default:
		meanScore = 60
	}
	switch {
	case d.FidelityMax <= 10:
		maxScore = 100
	case d.FidelityMax <= 25:
		maxScore = 85
	case d.FidelityMax <= 50:
		maxScore = 70
	case d.FidelityMax <= 100:
		maxScore = 55
	default:
		maxScore = 40
	}
	return blendFidelity(meanScore, maxScore)
}

// blendFidelity weights the mean band 70/30 against the max band and
// truncates. The epsilon keeps 0.7*90+0.3*100 from rounding down to 92.
func blendFidelity(meanScore, maxScore int) int {
	return int(math.Floor(float64(meanScore)*0.7 + float64(maxScore)*0.3 + 1e-9))
}

func (s *Scorer) scoreProximity(in ScoreInput, scores map[Component]int, d *ScoreDetails) int {
	out := in.Output
	start, _ := out.Start()
	end, _ := out.End()
	d.StartFinishSeparation = Distance(start, end)
	d.StartDeviation, d.EndDeviation = -1, -1
	if startDev, endDev, ok := endpointDeviations(out, in.Reference); ok {
		d.StartDeviation, d.EndDeviation = startDev, endDev
	}

	switch in.Category {
	case CategoryShortCourse:
		switch {
		case d.StartFinishSeparation <= 25:
			d.RoutePattern = "single_loop"
		case d.StartFinishSeparation <= 75:
			d.RoutePattern = "lapped"
		default:
			d.RoutePattern = "lapped_offset_finish"
		}
		d.ClosedLoop = d.StartFinishSeparation <= 50

		yardstick, basis := in.Base, "base"
		if yardstick.Len() == 0 {
			yardstick, basis = in.Reference, "reference"
		}
		dev := worstEndpointDeviation(out, yardstick)
		s.recordProximity(d, dev, basis)
		score := 85
		switch {
		case dev <= 15:
			score = 100
		case dev <= 30:
			score = 95
		case dev <= 50:
			score = 90
		}
		return score

	case CategoryEvent:
		s.patternFromSeparation(d)
		refDev := worstEndpointDeviation(out, in.Reference)
		baseDev := worstEndpointDeviation(out, in.Base)
		dev, basis := refDev, "reference"
		if baseDev < refDev {
			dev, basis = baseDev, "base"
		}
		s.recordProximity(d, dev, basis)
		score := 70
		switch {
		case dev <= 25:
			score = 100
		case dev <= 50:
			score = 95
		case dev <= 75:
			score = 90
		case dev <= 100:
			score = 85
		case dev <= 150:
			score = 80
		case dev <= 200:
			score = 75
		}
		if scores[ComponentDistance] >= 95 && scores[ComponentFidelity] >= 95 && score < 80 {
			score = 80
		}
		return score

	default:
		s.patternFromSeparation(d)
		dev := worstEndpointDeviation(out, in.Reference)
		s.recordProximity(d, dev, "reference")
		switch {
		case dev <= 25:
			return 100
		case dev <= 50:
			return 85
		case dev <= 100:
			return 70
		default:
			return 30
		}
	}
}

func (s *Scorer) patternFromSeparation(d *ScoreDetails) {
	d.ClosedLoop = d.StartFinishSeparation < 50
	if d.ClosedLoop {
		d.RoutePattern = "single_loop"
	} else {
		d.RoutePattern = "point_to_point"
	}
}

func (s *Scorer) recordProximity(d *ScoreDetails, dev float64, basis string) {
	if math.IsInf(dev, 0) {
		d.ProximityDeviation, d.ProximityBasis = -1, "none"
		return
	}
	d.ProximityDeviation, d.ProximityBasis = dev, basis
}

func (s *Scorer) scoreAgreement(cands []Candidate, d *ScoreDetails) int {
	switch len(cands) {
	case 0, 1:
		d.AgreementMean = -1
		return 60
	case 2:
		d.AgreementMean = -1
		return 85
	}

	top := rankByPoints(cands)
	if len(top) > s.cfg.AgreementTopN {
		top = top[:s.cfg.AgreementTopN]
	}

	var dists stats.Float64Data
	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			d.AgreementPairs++
			for _, p := range samplePoints(top[i].Track.pointsOrNil(), s.cfg.AgreementSampleSize) {
				if dist := nearestPointDistance(p, top[j].Track.Points); !math.IsInf(dist, 0) {
					dists = append(dists, dist)
				}
			}
		}
	}
	if len(dists) == 0 {
		d.AgreementMean = -1
		return 60
	}
	d.AgreementMean, _ = dists.Mean()

	score := 60
	switch {
	case d.AgreementMean <= 15:
		score = 100
	case d.AgreementMean <= 25:
		score = 90
	case d.AgreementMean <= 40:
		score = 80
	case d.AgreementMean <= 60:
		score = 70
	}
	if len(cands) == 3 && score > 92 {
		score = 92
	}
	return score
}
