package route

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func TestLoadReports_MissingFile(t *testing.T) {
	reports, err := LoadReports(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadReports error: %v", err)
	}
	if reports != nil {
		t.Errorf("reports = %v, want nil", reports)
	}
}

func TestSaveLoadReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "reports.json")
	in := []*RunSummary{
		{RouteID: "PR_Bushy", Overall: 90, Level: LevelExcellent, Valid: true},
		{RouteID: "1042_Riverside", Overall: 50, Level: LevelPoor},
	}
	if err := SaveReports(path, in); err != nil {
		t.Fatalf("SaveReports error: %v", err)
	}
	out, err := LoadReports(path)
	if err != nil {
		t.Fatalf("LoadReports error: %v", err)
	}
	if len(out) != 2 || out[0].RouteID != "PR_Bushy" || out[1].Level != LevelPoor {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestResultStore_RecordAndQuery(t *testing.T) {
	s := NewResultStore()
	if s.Len() != 0 {
		t.Fatal("new store should be empty")
	}

	res := sampleResult(t)
	if err := s.Record(Summarize(res), res); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := s.Record(&RunSummary{RouteID: "1042_Riverside"}, nil); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	sum, ok := s.Summary("PR_Bushy")
	if !ok {
		t.Fatal("PR_Bushy not found")
	}
	if sum.Points != 625 {
		t.Errorf("Points = %d, want 625", sum.Points)
	}
	sum.Points = 0
	if again, _ := s.Summary("PR_Bushy"); again.Points != 625 {
		t.Error("Summary should return a copy")
	}

	all := s.Summaries()
	if len(all) != 2 || all[0].RouteID != "1042_Riverside" {
		t.Errorf("Summaries not sorted by route id: %+v", all)
	}

	if _, ok := s.Result("PR_Bushy"); !ok {
		t.Error("full result should be kept")
	}
	if _, ok := s.Result("1042_Riverside"); ok {
		t.Error("no result was recorded for 1042_Riverside")
	}
}

func TestResultStore_Cache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")
	s := NewResultStoreWithCache(path)
	if err := s.Record(&RunSummary{RouteID: "PR_A", Overall: 88}, nil); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	reloaded := NewResultStoreWithCache(path)
	sum, ok := reloaded.Summary("PR_A")
	if !ok || sum.Overall != 88 {
		t.Errorf("cached summary = %+v, %v", sum, ok)
	}
}

func TestResultStore_Concurrent(t *testing.T) {
	s := NewResultStoreWithCache(filepath.Join(t.TempDir(), "reports.json"))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Record(&RunSummary{RouteID: fmt.Sprintf("route-%02d", i)}, nil)
			_ = s.Summaries()
		}(i)
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Errorf("Len = %d, want 20", s.Len())
	}
}

func TestSummarize(t *testing.T) {
	res := sampleResult(t)
	s := Summarize(res)
	if s.RouteID != "PR_Bushy" || s.Base != "watch.gpx" {
		t.Errorf("summary = %+v", s)
	}
	if s.Candidates != 2 || s.Accepted != 2 {
		t.Errorf("Candidates/Accepted = %d/%d, want 2/2", s.Candidates, s.Accepted)
	}
	if s.Level != res.Report.Level || s.Baseline != BaselineOK {
		t.Errorf("Level = %s, Baseline = %s", s.Level, s.Baseline)
	}
}
