package route

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ErrNoValidCandidates is returned when every candidate was rejected.
var ErrNoValidCandidates = errors.New("no valid candidates")

// InputError marks a run that could not produce any output. It wraps one of
// ErrNoCandidates, ErrNoValidCandidates or ErrInsufficientBasePoints.
type InputError struct {
	SourceID string
	Err      error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("route %s: %v", e.SourceID, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// RunInput is one route's worth of data.
type RunInput struct {
	SourceID   string
	Category   Category
	Reference  *Track
	Candidates []Candidate
}

// Result is the outcome of a successful run.
type Result struct {
	RunID      string            `json:"runId"`
	SourceID   string            `json:"sourceId"`
	Category   Category          `json:"category"`
	StartedAt  time.Time         `json:"startedAt"`
	Verdicts   []Verdict         `json:"verdicts"`
	Selection  Selection         `json:"selection"`
	Fusion     FusionStats       `json:"fusion"`
	Report     *ConfidenceReport `json:"report"`
	Notes      []string          `json:"notes,omitempty"`
	Output     *Track            `json:"-"`
	Accepted   []Candidate       `json:"-"`
	Reference  *Track            `json:"-"`
	Validation ExpectedDistance  `json:"validationDistance"`
}

// Engine runs validation, base selection, resampling and scoring for a route.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	cfg       EngineConfig
	resolver  DistanceResolver
	validator *Validator
	selector  *Selector
	resampler *Resampler
	scorer    *Scorer
}

// NewEngine creates an engine. resolver may be nil.
func NewEngine(cfg EngineConfig, resolver DistanceResolver) *Engine {
	cfg = cfg.normalized()
	return &Engine{
		cfg:       cfg,
		resolver:  resolver,
		validator: NewValidator(cfg),
		selector:  NewSelector(cfg, resolver),
		resampler: NewResampler(cfg),
		scorer:    NewScorer(cfg, resolver),
	}
}

// Config returns the effective thresholds.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Validate runs only the validation stage.
func (e *Engine) Validate(in RunInput) (ExpectedDistance, []Candidate, []Verdict) {
	expected := resolveExpectedDistance(e.cfg, e.resolver, in.Category, in.SourceID, in.Reference.Length())
	accepted, verdicts := e.validator.ValidateAll(in.Candidates, in.Reference, expected)
	return expected, accepted, verdicts
}

// Run executes the full pipeline. A low score is not an error: check
// Result.Report.Valid.
func (e *Engine) Run(in RunInput) (*Result, error) {
	if len(in.Candidates) == 0 {
		return nil, &InputError{SourceID: in.SourceID, Err: ErrNoCandidates}
	}

	res := &Result{
		RunID:     uuid.NewString(),
		SourceID:  in.SourceID,
		Category:  in.Category,
		StartedAt: time.Now(),
		Reference: in.Reference,
	}

	expected, accepted, verdicts := e.Validate(in)
	res.Validation = expected
	res.Verdicts = verdicts
	res.Accepted = accepted
	if expected.Note != "" {
		res.Notes = append(res.Notes, expected.Note)
	}
	for _, v := range verdicts {
		if !v.Accepted {
			log.Printf("[engine] %s: rejected %s: %v", in.SourceID, v.Source, v.Reasons)
		}
	}
	log.Printf("[engine] %s: %d/%d candidates accepted", in.SourceID, len(accepted), len(in.Candidates))
	if len(accepted) == 0 {
		return nil, &InputError{SourceID: in.SourceID, Err: ErrNoValidCandidates}
	}

	sel, err := e.selector.Select(accepted, in.Category, in.Reference, in.SourceID)
	if err != nil {
		return nil, &InputError{SourceID: in.SourceID, Err: err}
	}
	res.Selection = sel
	if sel.TargetDistance.Note != "" && sel.TargetDistance.Note != expected.Note {
		res.Notes = append(res.Notes, sel.TargetDistance.Note)
	}
	log.Printf("[engine] %s: base %s (%s), %d target points over %.2fkm",
		in.SourceID, sel.BaseSource, sel.Reason, sel.TargetPoints, sel.TargetDistance.Km())

	output, fusion, err := e.resampler.Resample(sel.Base, accepted, sel.TargetPoints)
	if err != nil {
		if errors.Is(err, ErrInsufficientBasePoints) {
			return nil, &InputError{SourceID: in.SourceID, Err: err}
		}
		return nil, fmt.Errorf("resampling %s: %w", in.SourceID, err)
	}
	output.Name = in.SourceID
	res.Output = output
	res.Fusion = fusion

	res.Report = e.scorer.Score(ScoreInput{
		Output:     output,
		Reference:  in.Reference,
		Base:       sel.Base.Track,
		Category:   in.Category,
		SourceID:   in.SourceID,
		Candidates: accepted,
	})
	log.Printf("[engine] %s: confidence %.1f (%s)", in.SourceID, res.Report.Overall, res.Report.Level)
	return res, nil
}
