package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/gpxfuse/route"
)

// mqttConnectTimeout bounds the first broker connection attempt.
const mqttConnectTimeout = 5 * time.Second

// App encapsulates the application state and dependencies
type App struct {
	Config     *route.Config
	Catalogue  *route.Catalogue
	Engine     *route.Engine
	Store      *route.ResultStore
	MQTTClient *route.MQTTClient
	Publisher  *route.Publisher
	Renderer   *route.RouteRenderer

	out io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile  string
	Category    string
	Candidates  string
	References  string
	Output      string
	HTTPPort    int
	Workers     int
	CrossCheck  bool
	Render      bool
	Archive     bool
	SaveInvalid bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		out:      os.Stdout,
		Renderer: route.NewRouteRenderer(),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Category = opts.Category
	a.Candidates = opts.Candidates
	a.References = opts.References
	a.Output = opts.Output
	a.HTTPPort = opts.HTTPPort
	a.Workers = opts.Workers
	a.CrossCheck = opts.CrossCheck
	a.Render = opts.Render
	a.Archive = opts.Archive
	a.SaveInvalid = opts.SaveInvalid
}

// setup loads the configuration, applies flag overrides and builds the
// engine. It is idempotent so that a mode followed by -http reuses state.
func (a *App) setup() error {
	if a.Engine != nil {
		return nil
	}

	config, err := route.LoadConfig(a.ConfigFile)
	switch {
	case err == nil:
		log.Printf("Loaded config from %s", a.ConfigFile)
	case a.ConfigFile == "config.yaml" && errors.Is(err, os.ErrNotExist):
		log.Printf("No config.yaml found, using defaults")
		config = route.DefaultConfig()
	default:
		return fmt.Errorf("loading config: %w", err)
	}

	if a.Candidates != "" {
		config.Paths.Candidates = a.Candidates
	}
	if a.References != "" {
		config.Paths.References = a.References
	}
	if a.Output != "" {
		config.Paths.Output = a.Output
	}
	if a.HTTPPort != 0 {
		config.HTTP.Port = a.HTTPPort
	}
	a.Config = config

	cat, err := route.BuildCatalogue(config.Catalogue)
	if err != nil {
		return fmt.Errorf("building event catalogue: %w", err)
	}
	if cat.Len() > 0 {
		log.Printf("Loaded %d catalogue events", cat.Len())
	}
	a.Catalogue = cat
	a.Engine = route.NewEngine(config.Engine, cat)
	a.Store = route.NewResultStoreWithCache(config.Paths.Reports)

	if a.Renderer == nil {
		a.Renderer = route.NewRouteRenderer()
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	return nil
}

// connectMQTT sets up the publisher when a broker is configured. Failures are
// logged; publishing is best effort.
func (a *App) connectMQTT() {
	if a.Publisher != nil {
		return
	}
	client, err := route.ConnectMQTT(&a.Config.MQTT, mqttConnectTimeout)
	if err != nil {
		log.Printf("[MQTT] Warning: %v, summaries will not be published", err)
		return
	}
	if client == nil {
		return
	}
	a.MQTTClient = client
	a.Publisher = route.NewPublisherFromConfig(client.GetClient(), &a.Config.MQTT)
	log.Println("[MQTT] summary publisher initialized")
}

func (a *App) disconnectMQTT() {
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
}

// categoryFor applies the -category override or derives it from the id.
func (a *App) categoryFor(id string) (route.Category, error) {
	if a.Category == "" {
		return route.DetectCategory(id), nil
	}
	c, ok := route.ParseCategory(a.Category)
	if !ok {
		return "", fmt.Errorf("unknown category %q", a.Category)
	}
	return c, nil
}

// loadInput reads a reference file and its candidate directory.
func (a *App) loadInput(referencePath, candidateDir string) (route.RunInput, error) {
	ref, err := route.LoadTrack(referencePath)
	if err != nil {
		return route.RunInput{}, fmt.Errorf("loading reference: %w", err)
	}
	id := route.TrackID(referencePath)
	category, err := a.categoryFor(id)
	if err != nil {
		return route.RunInput{}, err
	}
	cands, err := route.LoadCandidates(candidateDir)
	if err != nil {
		return route.RunInput{}, err
	}
	return route.RunInput{
		SourceID:   id,
		Category:   category,
		Reference:  ref,
		Candidates: cands,
	}, nil
}

// RunEnhance runs the engine for one reference against the candidate directory.
func (a *App) RunEnhance(referencePath string) error {
	if err := a.setup(); err != nil {
		return err
	}
	in, err := a.loadInput(referencePath, a.Config.Paths.Candidates)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Enhancing %s (%s) from %d candidates in %s\n",
		in.SourceID, in.Category, len(in.Candidates), a.Config.Paths.Candidates)

	a.connectMQTT()
	defer a.disconnectMQTT()

	res, err := a.Engine.Run(in)
	if err != nil {
		return err
	}
	sum, err := a.finish(res, a.Config.Paths.Candidates)
	a.printResult(res, sum)
	return err
}

// finish saves, archives, records and publishes a successful run.
func (a *App) finish(res *route.Result, candidateDir string) (*route.RunSummary, error) {
	sum := route.Summarize(res)
	if res.Category == route.CategoryEvent {
		sum.Region = a.Catalogue.RegionFor(route.EventID(res.SourceID))
	}
	if res.Output.HasElevation() {
		sum.Accessibility = string(route.AnalyzeGradients(res.Output).Rating)
	}

	var saveErr error
	if res.Report.Valid || a.SaveInvalid {
		path, err := a.saveOutputs(res)
		if err != nil {
			saveErr = err
		} else {
			sum.Output = path
			sum.Saved = true
			if a.Archive {
				if err := a.archiveCandidates(res, candidateDir); err != nil {
					log.Printf("Warning: archiving candidates for %s: %v", res.SourceID, err)
				}
			}
		}
	} else {
		log.Printf("%s: confidence %.1f is poor, not saved (use -save-invalid to keep it)", res.SourceID, res.Report.Overall)
	}

	if err := a.Store.Record(sum, res); err != nil {
		log.Printf("Warning: saving reports cache: %v", err)
	}
	if a.Publisher != nil {
		if err := a.Publisher.PublishSummary(sum); err != nil {
			log.Printf("[MQTT] Error publishing %s: %v", res.SourceID, err)
		}
	}
	return sum, saveErr
}

// saveOutputs writes the GPX, the GeoJSON and, with -render, the SVG map.
func (a *App) saveOutputs(res *route.Result) (string, error) {
	dir := a.Config.Paths.Output
	gpxPath := filepath.Join(dir, route.EnhancedFileName(res.SourceID))

	opts := route.DefaultGPXOptions()
	opts.Description = fmt.Sprintf("%s: confidence %.1f (%s), base %s",
		res.SourceID, res.Report.Overall, res.Report.Level, res.Selection.BaseSource)
	if err := route.SaveGPX(gpxPath, res.Output, opts); err != nil {
		return "", err
	}
	if err := route.SaveGeoJSON(filepath.Join(dir, res.SourceID+".geojson"), res); err != nil {
		return "", err
	}

	if a.Render {
		svgPath := filepath.Join(dir, res.SourceID+".svg")
		f, err := os.Create(svgPath)
		if err != nil {
			return "", fmt.Errorf("creating SVG file: %w", err)
		}
		renderErr := a.Renderer.RenderSVG(f, route.LayersFor(res))
		if err := f.Close(); renderErr == nil {
			renderErr = err
		}
		if renderErr != nil {
			return "", fmt.Errorf("rendering %s: %w", res.SourceID, renderErr)
		}
	}

	log.Printf("%s: saved %s", res.SourceID, gpxPath)
	return gpxPath, nil
}

// archiveCandidates moves the candidates that were submitted for the run
// into {archive}/{routeID}/.
func (a *App) archiveCandidates(res *route.Result, candidateDir string) error {
	dest := filepath.Join(a.Config.Paths.Archive, res.SourceID)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	for _, v := range res.Verdicts {
		if err := os.Rename(filepath.Join(candidateDir, v.Source), filepath.Join(dest, v.Source)); err != nil {
			return err
		}
	}
	log.Printf("%s: archived %d candidates to %s", res.SourceID, len(res.Verdicts), dest)
	return nil
}

func (a *App) printResult(res *route.Result, sum *route.RunSummary) {
	r := res.Report
	fmt.Fprintf(a.out, "\n%s\n", res.SourceID)
	fmt.Fprintf(a.out, "  Base:       %s (%s)\n", res.Selection.BaseSource, res.Selection.Reason)
	fmt.Fprintf(a.out, "  Points:     %d over %.2f km (expected %.2f km, %s)\n",
		res.Output.Len(), res.Output.Length()/1000, r.Expected.Km(), r.Expected.Source)
	fmt.Fprintf(a.out, "  Elevation:  %d interpolated, %d single, %d backup, %d missing\n",
		res.Fusion.Interpolated, res.Fusion.SingleBase, res.Fusion.Backup, res.Fusion.Missing)
	for _, c := range route.Components {
		fmt.Fprintf(a.out, "  %-11s %3d  (weight %.3f)\n", string(c)+":", r.Scores[c], r.Weights[c])
	}
	fmt.Fprintf(a.out, "  Confidence: %.1f %s (baseline %s)\n", r.Overall, strings.ToUpper(string(r.Level)), r.Baseline.Status)
	for _, n := range res.Notes {
		fmt.Fprintf(a.out, "  Note:       %s\n", n)
	}
	if sum.Saved {
		fmt.Fprintf(a.out, "  Saved:      %s\n", sum.Output)
	}
}

// RunValidate prints the verdict of every candidate without fusing.
func (a *App) RunValidate(referencePath string) error {
	if err := a.setup(); err != nil {
		return err
	}
	in, err := a.loadInput(referencePath, a.Config.Paths.Candidates)
	if err != nil {
		return err
	}

	expected, accepted, verdicts := a.Engine.Validate(in)
	fmt.Fprintf(a.out, "%s (%s): expected %.2f km (%s)\n", in.SourceID, in.Category, expected.Km(), expected.Source)
	if expected.Note != "" {
		fmt.Fprintf(a.out, "  Note: %s\n", expected.Note)
	}
	for _, v := range verdicts {
		status := "OK"
		if !v.Accepted {
			status = "REJECTED"
		}
		fmt.Fprintf(a.out, "  %-30s %-8s %5d pts %7.2f km  corridor %6.1fm  start %5.0fm  end %5.0fm\n",
			v.Source, status, v.PointCount, v.Length/1000, v.CorridorMean, v.StartDeviation, v.EndDeviation)
		for _, reason := range v.Reasons {
			fmt.Fprintf(a.out, "      - %s\n", reason)
		}
	}
	fmt.Fprintf(a.out, "%d of %d candidates accepted\n", len(accepted), len(verdicts))
	return nil
}

// referenceFiles lists the reference tracks in dir.
func referenceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading references: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".gpx", ".kml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// RunBatch enhances every reference with a matching {candidates}/{id}/ folder.
func (a *App) RunBatch() error {
	if err := a.setup(); err != nil {
		return err
	}
	refs, err := referenceFiles(a.Config.Paths.References)
	if err != nil {
		return err
	}

	var jobs []route.RunInput
	dirs := make(map[string]string)
	for _, ref := range refs {
		id := route.TrackID(ref)
		dir := filepath.Join(a.Config.Paths.Candidates, id)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		in, err := a.loadInput(ref, dir)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", id, err)
			continue
		}
		jobs = append(jobs, in)
		dirs[id] = dir
	}
	if len(jobs) == 0 {
		fmt.Fprintf(a.out, "No routes with candidates under %s\n", a.Config.Paths.Candidates)
		return nil
	}
	fmt.Fprintf(a.out, "Enhancing %d routes with %d workers\n", len(jobs), a.Workers)

	a.connectMQTT()
	defer a.disconnectMQTT()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	outcomes := route.RunBatch(ctx, a.Engine, jobs, a.Workers)

	fmt.Fprintf(a.out, "\n%-30s %8s %-11s %s\n", "Route", "Score", "Level", "Status")
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(a.out, "%-30s %8s %-11s %v\n", o.SourceID, "-", "-", o.Err)
			continue
		}
		sum, err := a.finish(o.Result, dirs[o.SourceID])
		status := "not saved"
		switch {
		case err != nil:
			status = err.Error()
		case sum.Saved:
			status = "saved"
		}
		fmt.Fprintf(a.out, "%-30s %8.1f %-11s %s\n", o.SourceID, sum.Overall, sum.Level, status)
	}

	c := route.CountOutcomes(outcomes)
	fmt.Fprintf(a.out, "\n%d routes: %d valid, %d poor, %d failed\n", c.Total, c.Valid, c.Invalid, c.Failed)
	return nil
}

// RunAnalyze prints gradient statistics for every GPX file in dir.
func (a *App) RunAnalyze(dir string) error {
	if err := a.setup(); err != nil {
		return err
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.gpx"))
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		fmt.Fprintf(a.out, "No GPX files in %s\n", dir)
		return nil
	}

	var client *route.ElevationClient
	if a.CrossCheck {
		if !a.Config.Elevation.Enabled {
			log.Printf("[elevation] Warning: elevation.enabled is false in config, cross-checking anyway")
		}
		client = route.NewElevationClient(a.Config.Elevation)
	}

	fmt.Fprintf(a.out, "%-30s %8s %6s %7s %7s %7s %6s %-12s %s\n",
		"Route", "km", "Res", "Gain", "Loss", "MaxGr%", ">5%", "Rating", "Elevation check")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	for _, path := range paths {
		t, err := route.LoadTrack(path)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", filepath.Base(path), err)
			continue
		}
		g := route.AnalyzeGradients(t)
		check := "-"
		if client != nil {
			c, err := client.CrossCheck(ctx, t, a.Config.Elevation.SamplePoints)
			if err != nil {
				check = "error: " + err.Error()
			} else {
				check = fmt.Sprintf("mean %.1fm, max %.1fm (%d samples)", c.MeanDiff, c.MaxDiff, c.Samples)
			}
		}
		fmt.Fprintf(a.out, "%-30s %8.2f %6s %7.0f %7.0f %7.1f %5.1f%% %-12s %s\n",
			route.TrackID(path), g.TotalDistance/1000, route.ResolutionClass(t),
			g.Gain, g.Loss, g.MaxGradient, g.Steep5.RoutePct, g.Rating, check)
	}
	return nil
}

// RunService serves reports and enhanced routes until interrupted.
func (a *App) RunService() error {
	if err := a.setup(); err != nil {
		return err
	}
	a.connectMQTT()
	defer a.disconnectMQTT()

	// Republish what is already known so retained topics are current.
	if a.Publisher != nil {
		for _, s := range a.Store.Summaries() {
			if err := a.Publisher.PublishSummary(s); err != nil {
				log.Printf("[MQTT] Error republishing %s: %v", s.RouteID, err)
				break
			}
		}
	}

	addr := fmt.Sprintf("0.0.0.0:%d", a.Config.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           newHTTPServer(a.Store, a.Config.Paths.Output, a.Renderer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Fprintln(a.out, "\nService Running")
	fmt.Fprintln(a.out, "===============")
	fmt.Fprintf(a.out, "\nHTTP endpoints (port %d):\n", a.Config.HTTP.Port)
	fmt.Fprintln(a.out, "  GET /health               - Health check")
	fmt.Fprintln(a.out, "  GET /reports              - All run summaries")
	fmt.Fprintln(a.out, "  GET /reports/{id}         - One route's summary and full report")
	fmt.Fprintln(a.out, "  GET /routes/{id}.gpx      - Enhanced GPX")
	fmt.Fprintln(a.out, "  GET /routes/{id}.geojson  - Enhanced route as GeoJSON")
	fmt.Fprintln(a.out, "  GET /routes/{id}.svg      - Route map")
	switch {
	case a.MQTTClient == nil:
		fmt.Fprintln(a.out, "\nMQTT: disabled")
	case a.MQTTClient.IsConnected():
		fmt.Fprintln(a.out, "\nMQTT: connected, publishing run summaries")
	default:
		fmt.Fprintln(a.out, "\nMQTT: connecting in background")
	}
	fmt.Fprintln(a.out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}

	fmt.Fprintln(a.out, "\nShutting down service...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[HTTP] shutdown: %v", err)
	}
	fmt.Fprintln(a.out, "Service stopped")
	return nil
}
