package route

import (
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const gpxNamespace = "http://www.topografix.com/GPX/1/1"

type gpxPoint struct {
	Lat float64  `xml:"lat,attr"`
	Lon float64  `xml:"lon,attr"`
	Ele *float64 `xml:"ele,omitempty"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxTrack struct {
	Name     string       `xml:"name,omitempty"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxRoute struct {
	Name   string     `xml:"name,omitempty"`
	Points []gpxPoint `xml:"rtept"`
}

type gpxMetadata struct {
	Name        string     `xml:"name,omitempty"`
	Description string     `xml:"desc,omitempty"`
	Time        *time.Time `xml:"time,omitempty"`
}

type gpxDocument struct {
	XMLName  xml.Name     `xml:"gpx"`
	Version  string       `xml:"version,attr"`
	Creator  string       `xml:"creator,attr"`
	XMLNS    string       `xml:"xmlns,attr,omitempty"`
	Metadata *gpxMetadata `xml:"metadata,omitempty"`
	Tracks   []gpxTrack   `xml:"trk"`
	Routes   []gpxRoute   `xml:"rte"`
}

// ParseGPX reads every track point (and, when there are none, every route
// point) from a GPX document into one Track.
func ParseGPX(r io.Reader) (*Track, error) {
	var doc gpxDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing GPX: %w", err)
	}

	t := &Track{}
	if doc.Metadata != nil {
		t.Name = doc.Metadata.Name
	}
	for _, trk := range doc.Tracks {
		if t.Name == "" {
			t.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				t.Points = append(t.Points, GeoPoint(p))
			}
		}
	}
	if len(t.Points) == 0 {
		for _, rte := range doc.Routes {
			if t.Name == "" {
				t.Name = rte.Name
			}
			for _, p := range rte.Points {
				t.Points = append(t.Points, GeoPoint(p))
			}
		}
	}
	return t, nil
}

// GPXOptions controls the document written by WriteGPX.
type GPXOptions struct {
	Name        string
	Description string
	TrackName   string
	Creator     string
}

// DefaultGPXOptions names the document the way enhanced outputs are named.
func DefaultGPXOptions() GPXOptions {
	return GPXOptions{
		Name:      "Enhanced Route",
		TrackName: "Enhanced Track",
		Creator:   "gpxfuse",
	}
}

// WriteGPX writes t as a single-track, single-segment GPX 1.1 document.
func WriteGPX(w io.Writer, t *Track, opts GPXOptions) error {
	now := time.Now().UTC().Truncate(time.Second)
	doc := gpxDocument{
		Version: "1.1",
		Creator: opts.Creator,
		XMLNS:   gpxNamespace,
		Metadata: &gpxMetadata{
			Name:        opts.Name,
			Description: opts.Description,
			Time:        &now,
		},
	}
	seg := gpxSegment{Points: make([]gpxPoint, 0, t.Len())}
	for _, p := range t.pointsOrNil() {
		seg.Points = append(seg.Points, gpxPoint(p))
	}
	doc.Tracks = []gpxTrack{{Name: opts.TrackName, Segments: []gpxSegment{seg}}}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding GPX: %w", err)
	}
	return enc.Flush()
}

// SaveGPX writes t to path, creating parent directories as needed.
func SaveGPX(path string, t *Track, opts GPXOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating GPX file: %w", err)
	}
	if err := WriteGPX(f, t, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadTrack reads a .gpx, .kml or .geojson file. The track name defaults to the file
// name without extension.
func LoadTrack(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening track: %w", err)
	}
	defer func() { _ = f.Close() }()

	var t *Track
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		t, err = ParseGPX(f)
	case ".kml":
		t, err = ParseKML(f)
	case ".geojson":
		var data []byte
		if data, err = io.ReadAll(f); err == nil {
			t, err = TrackFromGeoJSON(data)
		}
	default:
		return nil, fmt.Errorf("unsupported track format: %s", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if t.Name == "" {
		t.Name = TrackID(path)
	}
	return t, nil
}

// TrackID returns the file name of path without directory or extension.
func TrackID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EnhancedFileName returns the output file name for a route id.
func EnhancedFileName(id string) string {
	return id + "_ENH.gpx"
}

// LoadCandidates loads every .gpx file in dir, sorted by name. Files that
// cannot be parsed are logged and skipped.
func LoadCandidates(dir string) ([]Candidate, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.gpx"))
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	sort.Strings(matches)

	cands := make([]Candidate, 0, len(matches))
	for _, path := range matches {
		t, err := LoadTrack(path)
		if err != nil {
			log.Printf("Warning: skipping candidate %s: %v", filepath.Base(path), err)
			continue
		}
		cands = append(cands, Candidate{Source: filepath.Base(path), Track: t})
	}
	return cands, nil
}
