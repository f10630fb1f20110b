package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/gpxfuse/route"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// populatedStore returns a store holding one short-course run.
func populatedStore(t *testing.T) *route.ResultStore {
	t.Helper()
	res, err := route.NewEngine(route.DefaultEngineConfig(), nil).Run(route.RunInput{
		SourceID:  "PR_Bushy",
		Category:  route.CategoryShortCourse,
		Reference: northTrack("ref", 5000, 60, 0, -1),
		Candidates: []route.Candidate{
			{Source: "watch.gpx", Track: northTrack("watch", 5000, 600, 0, 30)},
			{Source: "phone.gpx", Track: northTrack("phone", 5000, 400, 3, 31)},
		},
	})
	require.NoError(t, err)

	store := route.NewResultStore()
	require.NoError(t, store.Record(route.Summarize(res), res))
	return store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// /health and /reports
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	h := newHTTPServer(populatedStore(t), t.TempDir(), route.NewRouteRenderer())
	rec := get(t, h, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status  string `json:"status"`
		Reports int    `json:"reports"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Reports)
}

func TestReportsEndpoint(t *testing.T) {
	t.Run("empty store returns empty list", func(t *testing.T) {
		h := newHTTPServer(route.NewResultStore(), t.TempDir(), route.NewRouteRenderer())
		rec := get(t, h, "/reports")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("lists summaries", func(t *testing.T) {
		h := newHTTPServer(populatedStore(t), t.TempDir(), route.NewRouteRenderer())
		rec := get(t, h, "/reports")
		require.Equal(t, http.StatusOK, rec.Code)

		var summaries []route.RunSummary
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&summaries))
		require.Len(t, summaries, 1)
		assert.Equal(t, "PR_Bushy", summaries[0].RouteID)
		assert.Equal(t, 625, summaries[0].Points)
	})

	t.Run("rejects POST", func(t *testing.T) {
		h := newHTTPServer(route.NewResultStore(), t.TempDir(), route.NewRouteRenderer())
		req := httptest.NewRequest(http.MethodPost, "/reports", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestReportByID(t *testing.T) {
	h := newHTTPServer(populatedStore(t), t.TempDir(), route.NewRouteRenderer())

	rec := get(t, h, "/reports/PR_Bushy")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Summary route.RunSummary `json:"summary"`
		Result  struct {
			SourceID string `json:"sourceId"`
			Report   struct {
				Overall float64 `json:"overall"`
			} `json:"report"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "PR_Bushy", body.Summary.RouteID)
	assert.Equal(t, "PR_Bushy", body.Result.SourceID)
	assert.Equal(t, body.Summary.Overall, body.Result.Report.Overall)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/reports/PR_Nowhere").Code)
}

// ---------------------------------------------------------------------------
// /routes
// ---------------------------------------------------------------------------

func TestRouteFiles_FromMemory(t *testing.T) {
	h := newHTTPServer(populatedStore(t), t.TempDir(), route.NewRouteRenderer())

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/routes/PR_Bushy.gpx", "application/gpx+xml", "<trkpt"},
		{"/routes/PR_Bushy.geojson", "application/geo+json", "FeatureCollection"},
		{"/routes/PR_Bushy.svg", "image/svg+xml", "<svg"},
		{"/routes/PR_Bushy.png", "image/png", "PNG"},
		{"/routes/PR_Bushy/profile.svg", "image/svg+xml", "<path"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestRouteFiles_FromOutputDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PR_Old_ENH.gpx"), []byte("<gpx>old</gpx>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PR_Old.geojson"), []byte(`{"type":"FeatureCollection"}`), 0644))
	h := newHTTPServer(route.NewResultStore(), dir, route.NewRouteRenderer())

	rec := get(t, h, "/routes/PR_Old.gpx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<gpx>old</gpx>", rec.Body.String())

	rec = get(t, h, "/routes/PR_Old.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FeatureCollection")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/routes/PR_Old.svg").Code)
}

func TestRouteFiles_NotFound(t *testing.T) {
	h := newHTTPServer(route.NewResultStore(), t.TempDir(), route.NewRouteRenderer())

	tests := []string{
		"/routes/PR_Bushy.gpx",
		"/routes/PR_Bushy.txt",
		"/routes/PR_Bushy",
		"/routes/.gpx",
		"/routes/PR_Bushy/profile.svg",
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusNotFound, get(t, h, path).Code)
		})
	}
}

func TestValidRouteID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"PR_Bushy", true},
		{"10K_Richmond", true},
		{"", false},
		{".", false},
		{"..", false},
		{`a\b`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validRouteID(tt.id), tt.id)
	}
}

func TestStoredFileName(t *testing.T) {
	assert.Equal(t, "PR_Bushy_ENH.gpx", storedFileName("PR_Bushy", ".gpx"))
	assert.Equal(t, "PR_Bushy.svg", storedFileName("PR_Bushy", ".svg"))
}
