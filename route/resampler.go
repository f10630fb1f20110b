package route

import (
	"errors"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"
)

// ErrInsufficientBasePoints is returned when the base cannot be interpolated.
var ErrInsufficientBasePoints = errors.New("insufficient base points")

// orb/geo measures with the WGS84 equatorial radius, which is larger than
// EarthRadius; widen search boxes so no candidate within range is missed.
const boundSlack = 1.01

// FusionStats counts output points by where their elevation came from.
type FusionStats struct {
	Interpolated  int `json:"interpolated"`
	SingleBase    int `json:"singleBase"`
	Backup        int `json:"backup"`
	Missing       int `json:"missing"`
	BackupSources int `json:"backupSources"`
}

// Resampler rebuilds the base geometry at a fixed point count and fills in
// elevation.
type Resampler struct {
	cfg EngineConfig
}

// NewResampler creates a resampler; zero config fields take their defaults.
func NewResampler(cfg EngineConfig) *Resampler {
	return &Resampler{cfg: cfg.normalized()}
}

// Resample produces exactly n points evenly spaced by distance along base.
// Elevation comes from the base when either bracketing point has it, otherwise
// from the median of the nearest elevated point of each other candidate within
// the backup radius. Geometry is never smoothed.
func (r *Resampler) Resample(base Candidate, cands []Candidate, n int) (*Track, FusionStats, error) {
	var fs FusionStats
	if base.PointCount() < 2 {
		return nil, fs, ErrInsufficientBasePoints
	}
	if n < 2 {
		return nil, fs, fmt.Errorf("resample: target point count %d is below 2", n)
	}

	backups := make([]*elevationIndex, 0, len(cands))
	for _, c := range cands {
		if c.Track == base.Track {
			continue
		}
		if idx := newElevationIndex(c.Track); idx != nil {
			backups = append(backups, idx)
		}
	}
	fs.BackupSources = len(backups)

	pts := base.Track.Points
	cum := base.Track.CumulativeDistances()
	total := cum[len(cum)-1]
	last := len(pts) - 1

	out := make([]GeoPoint, 0, n)
	for i := 0; i < n; i++ {
		d := float64(i) * total / float64(n-1)

		// Last index whose cumulative distance is <= d.
		idx := sort.Search(len(cum), func(k int) bool { return cum[k] > d }) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= last {
			p := pts[last]
			if p.HasElevation() {
				fs.SingleBase++
			} else if ele, ok := r.backupElevation(p, backups); ok {
				p = p.WithElevation(ele)
				fs.Backup++
			} else {
				fs.Missing++
			}
			out = append(out, p)
			continue
		}

		a, b := pts[idx], pts[idx+1]
		ratio := 0.0
		if seg := cum[idx+1] - cum[idx]; seg > 0 {
			ratio = (d - cum[idx]) / seg
		}
		p := GeoPoint{
			Lat: a.Lat + ratio*(b.Lat-a.Lat),
			Lon: a.Lon + ratio*(b.Lon-a.Lon),
		}

		aEle, aOK := a.Elevation()
		bEle, bOK := b.Elevation()
		switch {
		case aOK && bOK:
			p = p.WithElevation(aEle + ratio*(bEle-aEle))
			fs.Interpolated++
		case aOK:
			p = p.WithElevation(aEle)
			fs.SingleBase++
		case bOK:
			p = p.WithElevation(bEle)
			fs.SingleBase++
		default:
			if ele, ok := r.backupElevation(p, backups); ok {
				p = p.WithElevation(ele)
				fs.Backup++
			} else {
				fs.Missing++
			}
		}
		out = append(out, p)
	}

	return NewTrack(base.Track.Name, out), fs, nil
}

// backupElevation returns the median of each source's nearest elevated point
// strictly within the backup radius.
func (r *Resampler) backupElevation(p GeoPoint, backups []*elevationIndex) (float64, bool) {
	values := make(stats.Float64Data, 0, len(backups))
	for _, idx := range backups {
		if ele, ok := idx.nearest(p, r.cfg.BackupElevationRadius); ok {
			values = append(values, ele)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	median, err := values.Median()
	if err != nil {
		return 0, false
	}
	return median, true
}

// elevatedPoint adapts a GeoPoint for the quadtree.
type elevatedPoint struct {
	GeoPoint
}

func (e elevatedPoint) Point() orb.Point {
	return e.Orb()
}

// elevationIndex is a spatial index over the elevated points of one track.
type elevationIndex struct {
	tree *quadtree.Quadtree
	buf  []orb.Pointer
}

// newElevationIndex returns nil when the track has no elevated points.
func newElevationIndex(t *Track) *elevationIndex {
	var elevated []elevatedPoint
	bound := orb.Bound{}
	for _, p := range t.pointsOrNil() {
		if !p.HasElevation() {
			continue
		}
		if len(elevated) == 0 {
			bound = orb.Bound{Min: p.Orb(), Max: p.Orb()}
		} else {
			bound = bound.Extend(p.Orb())
		}
		elevated = append(elevated, elevatedPoint{p})
	}
	if len(elevated) == 0 {
		return nil
	}

	tree := quadtree.New(bound.Pad(1e-6))
	for _, e := range elevated {
		// The bound covers every point, so Add cannot fail.
		_ = tree.Add(e)
	}
	return &elevationIndex{tree: tree}
}

// nearest returns the elevation of the closest indexed point strictly within
// radius meters of p.
func (idx *elevationIndex) nearest(p GeoPoint, radius float64) (float64, bool) {
	box := geo.BoundAroundPoint(p.Orb(), radius*boundSlack)
	idx.buf = idx.tree.InBound(idx.buf[:0], box)

	best := radius
	var ele float64
	found := false
	for _, ptr := range idx.buf {
		e := ptr.(elevatedPoint)
		if d := Distance(p, e.GeoPoint); d < best {
			best = d
			ele = *e.Ele
			found = true
		}
	}
	return ele, found
}
