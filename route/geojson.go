package route

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature roles in an exported collection.
const (
	RoleOutput    = "output"
	RoleReference = "reference"
	RoleStart     = "start"
	RoleFinish    = "finish"
)

// ResultFeatureCollection exports a run as GeoJSON: the output line with its
// confidence properties, the reference line, and start/finish markers.
func ResultFeatureCollection(res *Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	out := lineFeature(res.Output)
	out.Properties["role"] = RoleOutput
	out.Properties["name"] = res.SourceID
	out.Properties["runId"] = res.RunID
	out.Properties["points"] = res.Output.Len()
	out.Properties["lengthMeters"] = res.Output.Length()
	out.Properties["base"] = res.Selection.BaseSource
	if res.Report != nil {
		out.Properties["confidence"] = res.Report.Overall
		out.Properties["level"] = string(res.Report.Level)
		out.Properties["valid"] = res.Report.Valid
	}
	fc.Append(out)

	if res.Reference.Len() >= 2 {
		ref := lineFeature(res.Reference)
		ref.Properties["role"] = RoleReference
		ref.Properties["points"] = res.Reference.Len()
		fc.Append(ref)
	}

	if start, ok := res.Output.Start(); ok {
		fc.Append(pointFeature(start, RoleStart))
	}
	if end, ok := res.Output.End(); ok {
		fc.Append(pointFeature(end, RoleFinish))
	}
	return fc
}

// lineFeature exports t as a LineString. Elevations travel in the
// "elevations" property, one entry per vertex, null where a point has none.
func lineFeature(t *Track) *geojson.Feature {
	f := geojson.NewFeature(t.LineString())
	if t.HasElevation() {
		eles := make([]any, t.Len())
		for i, p := range t.Points {
			if ele, ok := p.Elevation(); ok {
				eles[i] = ele
			}
		}
		f.Properties["elevations"] = eles
	}
	return f
}

func pointFeature(p GeoPoint, role string) *geojson.Feature {
	f := geojson.NewFeature(p.Orb())
	f.Properties["role"] = role
	if ele, ok := p.Elevation(); ok {
		f.Properties["ele"] = ele
	}
	return f
}

// TrackFromGeoJSON reads the first LineString feature of a collection,
// preferring one whose role is "output". Elevations come from the feature's
// "elevations" property when it has one entry per vertex.
func TrackFromGeoJSON(data []byte) (*Track, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}

	var line orb.LineString
	var eles []any
	for _, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		if line == nil || f.Properties.MustString("role", "") == RoleOutput {
			line = ls
			eles, _ = f.Properties["elevations"].([]any)
		}
	}
	if line == nil {
		return nil, fmt.Errorf("parsing GeoJSON: no LineString feature")
	}

	if len(eles) != len(line) {
		eles = nil
	}
	pts := make([]GeoPoint, len(line))
	for i, p := range line {
		pts[i] = NewPoint(p.Lat(), p.Lon())
		if eles == nil {
			continue
		}
		if ele, ok := eles[i].(float64); ok {
			pts[i] = pts[i].WithElevation(ele)
		}
	}
	return &Track{Points: pts}, nil
}

// SaveGeoJSON writes the result collection to path.
func SaveGeoJSON(path string, res *Result) error {
	data, err := json.MarshalIndent(ResultFeatureCollection(res), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing GeoJSON file: %w", err)
	}
	return nil
}
