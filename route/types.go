package route

import "time"

// Config is the YAML configuration file.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Catalogue CatalogueConfig `yaml:"catalogue"`
	Paths     PathsConfig     `yaml:"paths"`
	Elevation ElevationConfig `yaml:"elevation"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// CatalogueConfig points at the event catalogue. Inline events override
// spreadsheet rows with the same id.
type CatalogueConfig struct {
	Spreadsheet string  `yaml:"spreadsheet,omitempty"`
	Sheet       string  `yaml:"sheet,omitempty"`
	Events      []Event `yaml:"events,omitempty"`
}

// PathsConfig holds the working directories.
type PathsConfig struct {
	References string `yaml:"references"`
	Candidates string `yaml:"candidates"`
	Output     string `yaml:"output"`
	Archive    string `yaml:"archive"`
	Reports    string `yaml:"reports"`
}

// ElevationConfig configures the optional elevation cross-check service.
type ElevationConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	BatchSize    int           `yaml:"batchSize"`
	BatchDelay   time.Duration `yaml:"batchDelay"`
	Timeout      time.Duration `yaml:"timeout"`
	SamplePoints int           `yaml:"samplePoints"`
}

// MQTTConfig holds broker settings. Environment variables take precedence.
type MQTTConfig struct {
	Broker        string `yaml:"broker"`
	ClientID      string `yaml:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty"`
	Password      string `yaml:"password,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty"`
	QoS           int    `yaml:"qos,omitempty"`
	Retain        *bool  `yaml:"retain,omitempty"` // nil means retained
}

// HTTPConfig holds the report server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// RunSummary is the compact view of a run that is published and served.
type RunSummary struct {
	RunID         string            `json:"runId"`
	RouteID       string            `json:"routeId"`
	Category      Category          `json:"category"`
	Region        string            `json:"region,omitempty"`
	Base          string            `json:"base"`
	Candidates    int               `json:"candidates"`
	Accepted      int               `json:"accepted"`
	Points        int               `json:"points"`
	LengthKm      float64           `json:"lengthKm"`
	Overall       float64           `json:"overall"`
	Level         Level             `json:"level"`
	Valid         bool              `json:"valid"`
	Scores        map[Component]int `json:"scores"`
	Baseline      string            `json:"baseline"`
	Output        string            `json:"output,omitempty"`
	Saved         bool              `json:"saved"`
	Notes         []string          `json:"notes,omitempty"`
	Timestamp     int64             `json:"timestamp"`
	Accessibility string            `json:"accessibility,omitempty"`
}

// Summarize condenses a result for publishing.
func Summarize(res *Result) *RunSummary {
	s := &RunSummary{
		RunID:      res.RunID,
		RouteID:    res.SourceID,
		Category:   res.Category,
		Base:       res.Selection.BaseSource,
		Candidates: len(res.Verdicts),
		Accepted:   len(res.Accepted),
		Points:     res.Output.Len(),
		LengthKm:   res.Output.Length() / 1000,
		Notes:      res.Notes,
		Timestamp:  res.StartedAt.Unix(),
	}
	if res.Report != nil {
		s.Overall = res.Report.Overall
		s.Level = res.Report.Level
		s.Valid = res.Report.Valid
		s.Scores = res.Report.Scores
		s.Baseline = res.Report.Baseline.Status
	}
	return s
}
