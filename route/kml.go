package route

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseKML collects every <coordinates> block of a KML document, in document
// order, into one Track. KML tuples are "lon,lat[,alt]"; an altitude of zero
// is how KML exporters say "unknown", so it becomes an absent elevation.
func ParseKML(r io.Reader) (*Track, error) {
	dec := xml.NewDecoder(r)
	t := &Track{}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing KML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "name":
			var name string
			if err := dec.DecodeElement(&name, &start); err != nil {
				return nil, fmt.Errorf("parsing KML name: %w", err)
			}
			if t.Name == "" {
				t.Name = strings.TrimSpace(name)
			}
		case "coordinates":
			var text string
			if err := dec.DecodeElement(&text, &start); err != nil {
				return nil, fmt.Errorf("parsing KML coordinates: %w", err)
			}
			t.Points = append(t.Points, parseKMLCoordinates(text)...)
		}
	}
	return t, nil
}

// parseKMLCoordinates skips malformed tuples rather than failing the file.
func parseKMLCoordinates(text string) []GeoPoint {
	var pts []GeoPoint
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		p := NewPoint(lat, lon)
		if len(parts) > 2 {
			if alt, err := strconv.ParseFloat(parts[2], 64); err == nil && alt != 0 {
				p = p.WithElevation(alt)
			}
		}
		pts = append(pts, p)
	}
	return pts
}
