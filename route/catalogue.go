package route

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Event is one catalogue entry.
type Event struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Distance string `yaml:"distance" json:"distance"`
	Postcode string `yaml:"postcode,omitempty" json:"postcode,omitempty"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
}

// Catalogue is the event lookup used to resolve expected distances and
// region labels. It implements DistanceResolver.
type Catalogue struct {
	mu     sync.RWMutex
	events map[string]Event
}

// NewCatalogue builds a catalogue from events. Later duplicates win.
func NewCatalogue(events ...Event) *Catalogue {
	c := &Catalogue{events: make(map[string]Event, len(events))}
	for _, e := range events {
		c.Add(e)
	}
	return c
}

// catalogueKey normalises ids so "01001" and "1001" match.
func catalogueKey(id string) string {
	id = strings.TrimSpace(id)
	if n, err := strconv.Atoi(id); err == nil {
		return strconv.Itoa(n)
	}
	return id
}

// Add inserts or replaces an event.
func (c *Catalogue) Add(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[catalogueKey(e.ID)] = e
}

// Len returns the number of events.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Lookup returns the event with the given id.
func (c *Catalogue) Lookup(id string) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[catalogueKey(id)]
	return e, ok
}

// ExpectedDistanceKm implements DistanceResolver.
func (c *Catalogue) ExpectedDistanceKm(id string) (float64, bool) {
	e, ok := c.Lookup(id)
	if !ok {
		return 0, false
	}
	return ParseDistanceLabel(e.Distance)
}

// RegionFor returns the event's region, deriving it from the postcode when
// no region was given.
func (c *Catalogue) RegionFor(id string) string {
	e, ok := c.Lookup(id)
	if !ok {
		return "Unknown"
	}
	if e.Region != "" {
		return e.Region
	}
	return RegionFromPostcode(e.Postcode)
}

var namedDistances = map[string]float64{
	"5k":       5.0,
	"10k":      10.0,
	"half":     21.1,
	"marathon": 42.2,
}

var numericDistance = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*(km|k|mi|miles?)?$`)

// ParseDistanceLabel converts a catalogue distance such as "10K", "Half",
// "Marathon", "8.5km" or "10 mi" to kilometers.
func ParseDistanceLabel(label string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(label))
	if km, ok := namedDistances[s]; ok {
		return km, true
	}
	switch s {
	case "half marathon", "half-marathon":
		return namedDistances["half"], true
	}

	m := numericDistance.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.HasPrefix(m[2], "mi") {
		v *= 1.609344
	}
	return v, true
}

var postcodeRegions = map[string]string{
	"NN": "Northamptonshire",
	"PE": "Lincolnshire",
	"LN": "Lincolnshire",
	"LE": "Leicestershire",
	"MK": "Buckinghamshire",
	"LU": "Bedfordshire",
	"SG": "Hertfordshire",
	"CB": "Cambridgeshire",
	"NR": "Norfolk",
	"IP": "Suffolk",
	"CO": "Essex",
	"CV": "Warwickshire",
	"B":  "West Midlands",
	"DE": "Derbyshire",
	"NG": "Nottinghamshire",
	"S":  "South Yorkshire",
	"DN": "North Lincolnshire",
	"HU": "East Yorkshire",
	"WS": "Staffordshire",
}

var postcodeArea = regexp.MustCompile(`^[A-Z]{1,2}`)

// RegionFromPostcode maps the area letters of a UK postcode to a county.
// Unmapped areas come back as "Area_XX".
func RegionFromPostcode(postcode string) string {
	area := postcodeArea.FindString(strings.ToUpper(strings.TrimSpace(postcode)))
	if area == "" {
		return "Unknown"
	}
	if region, ok := postcodeRegions[area]; ok {
		return region
	}
	return "Area_" + area
}

// LoadEventsXLSX reads catalogue events from a spreadsheet. The header row must
// contain event_id, event_name and event_distance; event_postcode and region
// are optional. An empty sheet name means the first sheet.
func LoadEventsXLSX(path, sheet string) ([]Event, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalogue spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"event_id", "event_name", "event_distance"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("sheet %q: missing column %s", sheet, required)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	events := make([]Event, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id := cell(row, "event_id")
		if id == "" {
			continue
		}
		events = append(events, Event{
			ID:       id,
			Name:     cell(row, "event_name"),
			Distance: cell(row, "event_distance"),
			Postcode: cell(row, "event_postcode"),
			Region:   cell(row, "region"),
		})
	}
	return events, nil
}
