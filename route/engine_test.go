package route

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ShortCourseScenario(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), nil)
	res, err := e.Run(RunInput{
		SourceID:   "PR_Bushy",
		Category:   CategoryShortCourse,
		Reference:  northTrack("ref", 5000, 2, 0, -1),
		Candidates: []Candidate{candidate("watch.gpx", northTrack("watch", 5000, 600, 0, 30))},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Verdicts, 1)
	assert.True(t, res.Verdicts[0].Accepted)
	assert.Equal(t, "watch.gpx", res.Selection.BaseSource)
	assert.Equal(t, 625, res.Selection.TargetPoints)
	assert.Equal(t, 625, res.Output.Len())
	assert.Equal(t, "PR_Bushy", res.Output.Name)
	assert.InDelta(t, 5000, res.Output.Length(), 1)
	assert.GreaterOrEqual(t, res.Report.Overall, 85.0)
	assert.Equal(t, LevelExcellent, res.Report.Level)
	assert.True(t, res.Report.Valid)
}

func TestEngine_NoValidCandidates(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), nil)
	_, err := e.Run(RunInput{
		SourceID:   "PR_Bushy",
		Category:   CategoryShortCourse,
		Reference:  northTrack("ref", 5000, 2, 0, -1),
		Candidates: []Candidate{candidate("sparse.gpx", northTrack("sparse", 5000, 40, 0, 30))},
	})

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr), "err = %v", err)
	assert.Equal(t, "PR_Bushy", inputErr.SourceID)
	assert.True(t, errors.Is(err, ErrNoValidCandidates))
	assert.Contains(t, err.Error(), "no valid candidates")
}

func TestEngine_NoCandidates(t *testing.T) {
	_, err := NewEngine(DefaultEngineConfig(), nil).Run(RunInput{SourceID: "x", Reference: northTrack("ref", 5000, 2, 0, -1)})
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestEngine_EventCorridorScenario(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), stubResolver{"1042": 10})
	res, err := e.Run(RunInput{
		SourceID:  "1042_Riverside_10k",
		Category:  CategoryEvent,
		Reference: northTrack("ref", 10_000, 200, 0, -1),
		Candidates: []Candidate{
			candidate("close.gpx", northTrack("close", 10_000, 1200, 5, 20)),
			candidate("wide.gpx", northTrack("wide", 10_000, 1205, 80, 20)),
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "close.gpx", res.Accepted[0].Source)
	assert.False(t, res.Verdicts[1].Accepted)
	assert.Equal(t, "close.gpx", res.Selection.BaseSource)
	assert.Equal(t, []string{"close.gpx"}, res.Selection.Ranked)
	assert.Equal(t, 1250, res.Output.Len())
	assert.Equal(t, DistanceSourceCatalogue, res.Validation.Source)
	assert.Zero(t, res.Fusion.BackupSources)
	assert.Empty(t, res.Notes)
}

func TestEngine_EventCatalogueMissAddsNote(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), stubResolver{})
	res, err := e.Run(RunInput{
		SourceID:   "2027_New_Event",
		Category:   CategoryEvent,
		Reference:  northTrack("ref", 8000, 200, 0, -1),
		Candidates: []Candidate{candidate("a.gpx", northTrack("a", 8000, 900, 0, 10))},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Notes)
	assert.Contains(t, res.Notes[0], "no catalogue distance")
	assert.Equal(t, DistanceSourceFallback, res.Report.Expected.Source)
}

func TestEngine_ConfigDefaults(t *testing.T) {
	cfg := NewEngine(EngineConfig{MinPoints: 10}, nil).Config()
	assert.Equal(t, 10, cfg.MinPoints)
	assert.Equal(t, DefaultEngineConfig().PointsPerKm, cfg.PointsPerKm)
	assert.Equal(t, DefaultEngineConfig().CorridorMaxMean, cfg.CorridorMaxMean)
}
