package route

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultReportsPath is the default location of the run summary cache.
const DefaultReportsPath = ".reports.json"

// reportCache is the on-disk format of the summary cache.
type reportCache struct {
	Reports     []*RunSummary `json:"reports"`
	LastUpdated int64         `json:"lastUpdated"`
}

// LoadReports loads cached run summaries. A missing file is not an error.
func LoadReports(path string) ([]*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading reports file: %w", err)
	}

	var cache reportCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing reports file: %w", err)
	}
	return cache.Reports, nil
}

// SaveReports writes run summaries to a JSON cache file.
func SaveReports(path string, reports []*RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating reports directory: %w", err)
	}

	data, err := json.MarshalIndent(reportCache{Reports: reports, LastUpdated: time.Now().Unix()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling reports: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing reports file: %w", err)
	}
	return nil
}

// ResultStore keeps the latest run per route for the HTTP handlers and,
// when a cache path is set, persists the summaries after every update.
type ResultStore struct {
	mu        sync.RWMutex
	saveMu    sync.Mutex
	summaries map[string]*RunSummary
	results   map[string]*Result
	cachePath string
}

// NewResultStore creates an in-memory store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		summaries: make(map[string]*RunSummary),
		results:   make(map[string]*Result),
	}
}

// NewResultStoreWithCache creates a store backed by cachePath and loads any
// summaries already cached there.
func NewResultStoreWithCache(cachePath string) *ResultStore {
	s := NewResultStore()
	s.cachePath = cachePath
	if cachePath == "" {
		return s
	}
	reports, err := LoadReports(cachePath)
	if err != nil {
		log.Printf("Warning: ignoring reports cache %s: %v", cachePath, err)
		return s
	}
	for _, r := range reports {
		s.summaries[r.RouteID] = r
	}
	return s
}

// Record stores a run. res may be nil when only a summary is known.
func (s *ResultStore) Record(summary *RunSummary, res *Result) error {
	s.mu.Lock()
	s.summaries[summary.RouteID] = summary
	if res != nil {
		s.results[summary.RouteID] = res
	}
	s.mu.Unlock()

	if s.cachePath == "" {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return SaveReports(s.cachePath, s.Summaries())
}

// Summary returns a copy of the latest summary for a route.
func (s *ResultStore) Summary(routeID string) (*RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[routeID]
	if !ok {
		return nil, false
	}
	cp := *sum
	return &cp, true
}

// Summaries returns copies of all summaries ordered by route id.
func (s *ResultStore) Summaries() []*RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RunSummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		cp := *sum
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out
}

// Result returns the full in-memory result of the latest run, if this
// process produced one.
func (s *ResultStore) Result(routeID string) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[routeID]
	return res, ok
}

// Len returns the number of routes with a summary.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries)
}
