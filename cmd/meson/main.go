// Meson - correlator ingestion for lattice meson spectroscopy
//
// Meson reads two-point correlator output from HiRep, Hadrons and
// Flexlatsim runs, as listed in a YAML config, and combines them into one
// ensemble ready for statistical analysis.
//
// Components:
//   - reader: per-format parsers and the format registry
//   - cache: LRU cache of parsed inputs
//   - ingest: parallel ingestion and merging
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"github.com/edbennett/meson-analysis/pkg/cache"
	"github.com/edbennett/meson-analysis/pkg/config"
	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
	"github.com/edbennett/meson-analysis/pkg/ingest"
	"github.com/edbennett/meson-analysis/pkg/metrics"
	"github.com/edbennett/meson-analysis/pkg/progress"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

const version = "0.3.0"

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Config file path (default: ./meson.yaml)")
	initConfig := flag.Bool("init", false, "Initialize default config file")
	listFormats := flag.Bool("formats", false, "List supported input formats and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Meson %s\n", version)
		os.Exit(0)
	}

	formats := reader.Default()
	if *listFormats {
		for _, name := range formats.List() {
			fmt.Println(name)
		}
		os.Exit(0)
	}

	// Determine config path
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	// Initialize config if requested
	if *initConfig {
		if err := config.InitConfig(cfgPath); err != nil {
			merrors.Display(err)
			os.Exit(1)
		}
		fmt.Printf("Config initialized at: %s\n", cfgPath)
		fmt.Println("Add jobs to this file to describe the inputs.")
		os.Exit(0)
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		merrors.Display(err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		merrors.Display(err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	var (
		m        *metrics.Metrics
		registry *prometheus.Registry
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		m = metrics.New(registry)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("interrupted, stopping after jobs in flight")
		cancel()
	}()

	var loader cache.Loader = formats
	if cfg.Cache.Enabled {
		c, err := cache.New(formats, cfg.Cache.Capacity, cache.WithLogger(log), cache.WithMetrics(m))
		if err != nil {
			merrors.Display(err)
			os.Exit(1)
		}
		loader = c
	}

	if len(cfg.Jobs) == 0 {
		fmt.Printf("No jobs configured in %s\n", cfgPath)
		os.Exit(0)
	}

	jobs := make([]ingest.Job, 0, len(cfg.Jobs))
	for _, jc := range cfg.Jobs {
		opts := jc.Options()
		opts.Logger = log
		opts.Metrics = m
		jobs = append(jobs, ingest.Job{
			Name:    jc.Name,
			Format:  jc.Format,
			Path:    jc.Path,
			Options: opts,
		})
	}

	var (
		runOpts []ingest.RunOption
		bar     *progress.Bar
	)
	// info logs share stderr with the bar
	if log.GetLevel() < logrus.InfoLevel {
		bar = progress.New(len(jobs), "Ingesting")
		bar.Start()
		runOpts = append(runOpts, ingest.WithProgress(func(job ingest.Job, err error) {
			bar.Finished(jobLabel(job), err)
		}))
	}

	results, err := ingest.Run(ctx, loader, jobs, cfg.Ingest.Concurrency, runOpts...)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		merrors.Display(err)
		os.Exit(1)
	}

	combined, err := ingest.Combine(cfg.Ingest.Ensemble, results, correlator.WithLogger(log))
	if err != nil {
		merrors.Display(err)
		os.Exit(1)
	}

	fmt.Println("Inputs:")
	for _, r := range results {
		printSummary(os.Stdout, jobLabel(r.Job), r.Ensemble)
	}
	fmt.Println()
	fmt.Println("Combined:")
	printSummary(os.Stdout, combined.Source(), combined)
	if err := combined.Check(); err != nil {
		fmt.Println()
		merrors.Display(err)
	}

	if registry != nil {
		if err := writeMetrics(registry, cfg.Metrics.Output); err != nil {
			merrors.Display(err)
			os.Exit(1)
		}
	}
}

// newLogger builds the logger described by cfg. Validate has already
// checked the level and format.
func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}

	format := cfg.Format
	if format == "auto" {
		format = "json"
		if merrors.IsTTY(os.Stderr) {
			format = "text"
		}
	}
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   merrors.IsTTY(os.Stderr),
		})
	}
	return log
}

func jobLabel(job ingest.Job) string {
	if job.Name != "" {
		return job.Name
	}
	return job.Path
}

func printSummary(w io.Writer, name string, e *correlator.Ensemble) {
	nt := "?"
	if n, err := e.NT(); err == nil {
		nt = fmt.Sprint(n)
	}
	consistent := "✓"
	if !e.IsConsistent() {
		consistent = "✗"
	}
	fmt.Fprintf(w, "  %s %-24s records=%-6d NT=%-4s channels=%s\n",
		consistent, name, e.Len(), nt, strings.Join(e.Channels(), ","))
}

// writeMetrics writes the text exposition of registry to path, or to
// stdout when path is empty.
func writeMetrics(registry *prometheus.Registry, path string) error {
	if path != "" {
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			return merrors.Wrap(err, merrors.ErrMetricsWriteFailed, merrors.CategoryIO, "failed to write metrics").
				WithContext("path", path)
		}
		return nil
	}

	families, err := registry.Gather()
	if err != nil {
		return merrors.Wrap(err, merrors.ErrMetricsWriteFailed, merrors.CategoryInternal, "failed to gather metrics")
	}
	fmt.Println()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return merrors.Wrap(err, merrors.ErrMetricsWriteFailed, merrors.CategoryIO, "failed to write metrics")
		}
	}
	return nil
}
