package route

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResample_ExactCountAndSpacing(t *testing.T) {
	base := candidate("base", northTrack("base", 5000, 600, 0, 30))
	out, fs, err := NewResampler(DefaultEngineConfig()).Resample(base, []Candidate{base}, 625)
	require.NoError(t, err)

	require.Equal(t, 625, out.Len())
	assert.InDelta(t, 5000, out.Length(), 0.5)
	assert.Equal(t, base.Track.Points[0].Lat, out.Points[0].Lat)
	assert.InDelta(t, base.Track.Points[599].Lat, out.Points[624].Lat, 1e-12)

	step := 5000.0 / 624
	for i := 1; i < out.Len(); i++ {
		if gap := Distance(out.Points[i-1], out.Points[i]); math.Abs(gap-step) > 0.01 {
			t.Fatalf("gap %d = %.4f, want %.4f", i, gap, step)
		}
	}
	assert.Equal(t, 625, fs.Interpolated+fs.SingleBase)
	assert.Zero(t, fs.Missing)
	assert.Zero(t, fs.BackupSources, "the base is never its own backup")
}

func TestResample_InterpolatesElevation(t *testing.T) {
	a := NewPointWithElevation(testLat, testLon, 0)
	b := NewPointWithElevation(testLat+metersToLat(1000), testLon, 100)
	base := candidate("base", NewTrack("base", []GeoPoint{a, b}))

	out, fs, err := NewResampler(DefaultEngineConfig()).Resample(base, nil, 11)
	require.NoError(t, err)
	require.Equal(t, 11, out.Len())

	for i, p := range out.Points {
		ele, ok := p.Elevation()
		require.True(t, ok, "point %d", i)
		assert.InDelta(t, float64(i)*10, ele, 1e-6, "point %d", i)
	}
	assert.Equal(t, 10, fs.Interpolated)
	assert.Equal(t, 1, fs.SingleBase)
}

func TestResample_SingleBracketElevation(t *testing.T) {
	pts := []GeoPoint{
		NewPointWithElevation(testLat, testLon, 40),
		NewPoint(testLat+metersToLat(1000), testLon),
	}
	out, fs, err := NewResampler(DefaultEngineConfig()).Resample(candidate("base", NewTrack("base", pts)), nil, 5)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		ele, ok := out.Points[i].Elevation()
		require.True(t, ok)
		assert.Equal(t, 40.0, ele)
	}
	assert.False(t, out.Points[4].HasElevation())
	assert.Equal(t, 4, fs.SingleBase)
	assert.Equal(t, 1, fs.Missing)
}

func TestResample_BackupMedian(t *testing.T) {
	base := candidate("base", northTrack("base", 1000, 2, 0, -1))
	cands := []Candidate{
		base,
		candidate("a", northTrack("a", 1000, 101, 0, 10)),
		candidate("b", northTrack("b", 1000, 101, 0, 20)),
		candidate("c", northTrack("c", 1000, 101, 0, 90)),
	}

	out, fs, err := NewResampler(DefaultEngineConfig()).Resample(base, cands, 11)
	require.NoError(t, err)

	assert.Equal(t, 3, fs.BackupSources)
	assert.Equal(t, 11, fs.Backup)
	for _, p := range out.Points {
		ele, ok := p.Elevation()
		require.True(t, ok)
		assert.Equal(t, 20.0, ele)
	}
}

func TestResample_BackupRadiusIsStrict(t *testing.T) {
	base := candidate("base", northTrack("base", 1000, 2, 0, -1))

	tests := []struct {
		name   string
		offset float64
		found  bool
	}{
		{"inside radius", 49, true},
		{"outside radius", 51, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backup := candidate("backup", northTrack("backup", 1000, 101, tt.offset, 15))
			out, fs, err := NewResampler(DefaultEngineConfig()).Resample(base, []Candidate{base, backup}, 11)
			require.NoError(t, err)
			assert.Equal(t, tt.found, out.Points[5].HasElevation())
			if !tt.found {
				assert.Equal(t, 11, fs.Missing)
			}
		})
	}
}

func TestResample_GeometryFromBaseOnly(t *testing.T) {
	base := candidate("base", northTrack("base", 1000, 50, 0, 10))
	other := candidate("other", northTrack("other", 1000, 500, 30, 10))

	out, _, err := NewResampler(DefaultEngineConfig()).Resample(base, []Candidate{base, other}, 100)
	require.NoError(t, err)
	for _, p := range out.Points {
		assert.Equal(t, base.Track.Points[0].Lon, p.Lon)
	}
}

func TestResample_Errors(t *testing.T) {
	r := NewResampler(DefaultEngineConfig())

	_, _, err := r.Resample(candidate("one", northTrack("one", 100, 2, 0, 1)).withPoints(1), nil, 10)
	assert.True(t, errors.Is(err, ErrInsufficientBasePoints))

	_, _, err = r.Resample(candidate("two", northTrack("two", 100, 2, 0, 1)), nil, 1)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInsufficientBasePoints))
}
