package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line.
type AppOptions struct {
	ConfigFile  string
	Enhance     string
	Validate    string
	Batch       bool
	Analyze     string
	CrossCheck  bool
	HTTPMode    bool
	HTTPPort    int
	Category    string
	Candidates  string
	References  string
	Output      string
	Workers     int
	Render      bool
	Archive     bool
	SaveInvalid bool
}

// Runner is implemented by App; tests substitute a mock.
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunEnhance(referencePath string) error
	RunValidate(referencePath string) error
	RunBatch() error
	RunAnalyze(dir string) error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("Error: %v", err)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("gpxfuse", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (optional)")
	fs.StringVar(&opts.Enhance, "enhance", "", "Enhance one route: path to its reference GPX/KML file")
	fs.StringVar(&opts.Validate, "validate", "", "Validate the candidates of one route and exit")
	fs.BoolVar(&opts.Batch, "batch", false, "Enhance every reference that has a candidate folder")
	fs.StringVar(&opts.Analyze, "analyze", "", "Print gradient/accessibility analysis for the GPX files in a directory")
	fs.BoolVar(&opts.CrossCheck, "crosscheck", false, "With -analyze: compare elevations against the elevation service")
	fs.BoolVar(&opts.HTTPMode, "http", false, "Serve reports and enhanced routes over HTTP (default mode; after -enhance/-batch, serve their results)")
	fs.IntVar(&opts.HTTPPort, "http-port", 0, "HTTP server port (default: from config, else 8080)")
	fs.StringVar(&opts.Category, "category", "", "Route category: short-course, event or other (default: from file name)")
	fs.StringVar(&opts.Candidates, "candidates", "", "Candidate GPX directory (overrides config)")
	fs.StringVar(&opts.References, "references", "", "Reference directory for -batch (overrides config)")
	fs.StringVar(&opts.Output, "output", "", "Output directory for enhanced routes (overrides config)")
	fs.IntVar(&opts.Workers, "workers", 4, "Parallel routes in -batch mode")
	fs.BoolVar(&opts.Render, "render", false, "Also write an SVG map next to each enhanced route")
	fs.BoolVar(&opts.Archive, "archive", false, "Move consumed candidates to the archive after a successful save")
	fs.BoolVar(&opts.SaveInvalid, "save-invalid", false, "Save the output even when confidence is poor")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "gpxfuse version: %s\n", Version)
	app.ApplyOptions(opts)

	var err error
	switch {
	case opts.Enhance != "":
		err = app.RunEnhance(opts.Enhance)
	case opts.Validate != "":
		return app.RunValidate(opts.Validate)
	case opts.Batch:
		err = app.RunBatch()
	case opts.Analyze != "":
		return app.RunAnalyze(opts.Analyze)
	default:
		opts.HTTPMode = true
	}
	if err != nil || !opts.HTTPMode {
		return err
	}

	fmt.Fprintln(out, "gpxfuse service starting...")
	return app.RunService()
}
