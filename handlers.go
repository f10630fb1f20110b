package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kwv/gpxfuse/route"
)

// routeFile content types, keyed by extension.
var routeContentTypes = map[string]string{
	".gpx":     "application/gpx+xml",
	".geojson": "application/geo+json",
	".svg":     "image/svg+xml",
	".png":     "image/png",
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(store *route.ResultStore, outputDir string, renderer *route.RouteRenderer) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Reports   int       `json:"reports"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Reports:   store.Len(),
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("GET /reports", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, store.Summaries())
	})

	mux.HandleFunc("GET /reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		summary, ok := store.Summary(id)
		if !ok {
			http.Error(w, fmt.Sprintf("no report for %s", id), http.StatusNotFound)
			return
		}
		resp := struct {
			Summary *route.RunSummary `json:"summary"`
			Result  *route.Result     `json:"result,omitempty"`
		}{Summary: summary}
		if res, ok := store.Result(id); ok {
			resp.Result = res
		}
		writeJSON(w, resp)
	})

	// Enhanced route downloads: {id}.gpx, {id}.geojson, {id}.svg and {id}.png.
	mux.HandleFunc("GET /routes/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := r.PathValue("file")
		ext := strings.ToLower(filepath.Ext(file))
		contentType, ok := routeContentTypes[ext]
		id := strings.TrimSuffix(file, filepath.Ext(file))
		if !ok || !validRouteID(id) {
			http.Error(w, "unknown route file", http.StatusNotFound)
			return
		}

		var buf bytes.Buffer
		err := renderRouteFile(&buf, store, renderer, id, ext)
		if errors.Is(err, errNoResult) {
			path := filepath.Join(outputDir, storedFileName(id, ext))
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				http.Error(w, fmt.Sprintf("no %s output for %s", ext, id), http.StatusNotFound)
				return
			}
			buf.Reset()
			buf.Write(data)
			err = nil
		}
		if err != nil {
			log.Printf("[HTTP] Error rendering %s: %v", file, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(buf.Bytes()); err != nil {
			log.Printf("[HTTP] Error writing %s: %v", file, err)
		}
	})

	mux.HandleFunc("GET /routes/{id}/profile.svg", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		res, ok := store.Result(id)
		if !ok {
			http.Error(w, fmt.Sprintf("no result for %s", id), http.StatusNotFound)
			return
		}
		var buf bytes.Buffer
		if err := renderer.RenderProfileSVG(&buf, res.Output); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(buf.Bytes()); err != nil {
			log.Printf("[HTTP] Error writing profile for %s: %v", id, err)
		}
	})

	return mux
}

var errNoResult = errors.New("no in-memory result")

// renderRouteFile produces a route file from the result held in memory.
func renderRouteFile(buf *bytes.Buffer, store *route.ResultStore, renderer *route.RouteRenderer, id, ext string) error {
	res, ok := store.Result(id)
	if !ok {
		return errNoResult
	}
	switch ext {
	case ".gpx":
		return route.WriteGPX(buf, res.Output, route.DefaultGPXOptions())
	case ".geojson":
		return json.NewEncoder(buf).Encode(route.ResultFeatureCollection(res))
	case ".svg":
		return renderer.RenderSVG(buf, route.LayersFor(res))
	case ".png":
		title := fmt.Sprintf("%s  %.1f %s", id, res.Report.Overall, res.Report.Level)
		return renderer.RenderPNG(buf, route.LayersFor(res), title)
	}
	return errNoResult
}

// storedFileName is the name a saved output has in the output directory.
func storedFileName(id, ext string) string {
	if ext == ".gpx" {
		return route.EnhancedFileName(id)
	}
	return id + ext
}

func validRouteID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id && !strings.ContainsAny(id, `/\`)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
