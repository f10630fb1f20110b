package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// elevationServer answers every location with lat*100 as its elevation.
func elevationServer(t *testing.T, batches *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var req elevationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if batches != nil {
			batches.Add(1)
		}
		var resp elevationResponse
		for _, loc := range req.Locations {
			resp.Results = append(resp.Results, struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
				Elevation float64 `json:"elevation"`
			}{loc.Latitude, loc.Longitude, loc.Latitude * 100})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestElevationClient_LookupBatches(t *testing.T) {
	var batches atomic.Int32
	srv := elevationServer(t, &batches)
	defer srv.Close()

	c := NewElevationClient(ElevationConfig{URL: srv.URL, BatchSize: 4}, WithHTTPClient(srv.Client()))
	pts := make([]GeoPoint, 10)
	for i := range pts {
		pts[i] = NewPoint(float64(i), 0)
	}

	got, err := c.Lookup(context.Background(), pts)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for i, ele := range got {
		if ele != float64(i)*100 {
			t.Errorf("elevation[%d] = %v, want %v", i, ele, float64(i)*100)
		}
	}
	if n := batches.Load(); n != 3 {
		t.Errorf("batches = %d, want 3", n)
	}
}

func TestElevationClient_BatchDelay(t *testing.T) {
	srv := elevationServer(t, nil)
	defer srv.Close()

	c := NewElevationClient(ElevationConfig{URL: srv.URL, BatchSize: 1, BatchDelay: 40 * time.Millisecond}, WithHTTPClient(srv.Client()))
	start := time.Now()
	if _, err := c.Lookup(context.Background(), []GeoPoint{NewPoint(1, 1), NewPoint(2, 2), NewPoint(3, 3)}); err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 75*time.Millisecond {
		t.Errorf("3 batches took %v, want at least 2 delays", elapsed)
	}
}

func TestElevationClient_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	inner := elevationServer(t, nil)
	defer inner.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := NewElevationClient(ElevationConfig{URL: srv.URL}, WithHTTPClient(srv.Client()), WithBaseBackoff(time.Millisecond))
	got, err := c.Lookup(context.Background(), []GeoPoint{NewPoint(2, 0)})
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if got[0] != 200 {
		t.Errorf("elevation = %v, want 200", got[0])
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestElevationClient_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewElevationClient(ElevationConfig{URL: srv.URL}, WithHTTPClient(srv.Client()), WithMaxRetries(2), WithBaseBackoff(time.Millisecond))
	_, err := c.Lookup(context.Background(), []GeoPoint{NewPoint(1, 1)})
	if err == nil || !strings.Contains(err.Error(), "all 2 attempts failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestElevationClient_InvalidJSON(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewElevationClient(ElevationConfig{URL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := c.Lookup(context.Background(), []GeoPoint{NewPoint(1, 1)})
	if err == nil || !strings.Contains(err.Error(), "parsing response") {
		t.Errorf("unexpected error: %v", err)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, parse errors should not be retried", n)
	}
}

func TestElevationClient_ContextCancelled(t *testing.T) {
	srv := elevationServer(t, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewElevationClient(ElevationConfig{URL: srv.URL, BatchDelay: time.Hour}, WithHTTPClient(srv.Client()))
	if _, err := c.Lookup(ctx, []GeoPoint{NewPoint(1, 1)}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestElevationClient_CrossCheck(t *testing.T) {
	srv := elevationServer(t, nil)
	defer srv.Close()

	tr := NewTrack("hill", []GeoPoint{
		NewPointWithElevation(1, 0, 110), // service says 100
		NewPoint(2, 0),
		NewPointWithElevation(3, 0, 300), // exact
	})
	c := NewElevationClient(ElevationConfig{URL: srv.URL}, WithHTTPClient(srv.Client()))
	check, err := c.CrossCheck(context.Background(), tr, 50)
	if err != nil {
		t.Fatalf("CrossCheck() error: %v", err)
	}
	if check.Samples != 2 {
		t.Errorf("Samples = %d, want 2", check.Samples)
	}
	if check.MeanDiff != 5 || check.MaxDiff != 10 {
		t.Errorf("MeanDiff = %v, MaxDiff = %v, want 5 and 10", check.MeanDiff, check.MaxDiff)
	}

	if _, err := c.CrossCheck(context.Background(), NewTrack("flat", []GeoPoint{NewPoint(1, 1)}), 50); err == nil {
		t.Error("expected error for track without elevation")
	}
}
