// Package build runs build cycles: fetch the content, publish it, emit and render the artifacts,
// then write them to the output directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/static-dev/contentful/internal/assets"
	"github.com/static-dev/contentful/internal/cms"
	"github.com/static-dev/contentful/internal/collection"
	"github.com/static-dev/contentful/internal/config"
	"github.com/static-dev/contentful/internal/constants"
	"github.com/static-dev/contentful/internal/emit"
	"github.com/static-dev/contentful/internal/fetcher"
	"github.com/static-dev/contentful/internal/render"
	"github.com/ubuntu/decorate"
)

// Builder runs the build cycles of a project.
type Builder struct {
	cfg config.Config

	orchestrator *collection.Orchestrator
	fanOut       *render.FanOut

	outFs     afero.Fs
	outputDir string

	root       string
	watchPaths []string
	debounce   time.Duration

	mu sync.Mutex

	cycles   *prometheus.CounterVec
	duration prometheus.Histogram
	assets   prometheus.Gauge
}

// Summary describes a completed build cycle.
type Summary struct {
	// ID identifies the cycle in logs.
	ID string
	// Collections is the number of items per content type.
	Collections map[string]int
	// Assets are the names of the artifacts written to the output directory.
	Assets   []string
	Duration time.Duration
}

type options struct {
	client     fetcher.Client
	engine     render.Engine
	fs         afero.Fs
	root       string
	outputDir  string
	registerer prometheus.Registerer
	watchPaths []string
	debounce   time.Duration
}

// Options represents an optional function to override Builder default values.
type Options func(*options)

// WithClient sets the client retrieving the entries, instead of the Contentful API client.
func WithClient(c fetcher.Client) Options {
	return func(o *options) {
		o.client = c
	}
}

// WithEngine sets the template engine.
func WithEngine(e render.Engine) Options {
	return func(o *options) {
		o.engine = e
	}
}

// WithFs sets the filesystem templates are read from and artifacts written to.
func WithFs(fs afero.Fs) Options {
	return func(o *options) {
		o.fs = fs
	}
}

// WithRoot sets the project directory. Template paths and a relative output directory are relative to it.
func WithRoot(dir string) Options {
	return func(o *options) {
		o.root = dir
	}
}

// WithOutputDir sets the directory artifacts are written to.
func WithOutputDir(dir string) Options {
	return func(o *options) {
		if dir != "" {
			o.outputDir = dir
		}
	}
}

// WithRegisterer sets the registerer of the build metrics.
func WithRegisterer(reg prometheus.Registerer) Options {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithWatchPaths adds paths watched in watch mode, on top of the template directories.
func WithWatchPaths(paths ...string) Options {
	return func(o *options) {
		o.watchPaths = append(o.watchPaths, paths...)
	}
}

// WithDebounce sets how long watch mode waits for changes to settle before rebuilding.
func WithDebounce(d time.Duration) Options {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// New validates cfg and returns a Builder for it. No request is sent.
func New(cfg config.Config, args ...Options) (b *Builder, err error) {
	defer decorate.OnError(&err, "could not create builder")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := options{
		fs:         afero.NewOsFs(),
		outputDir:  constants.DefaultOutputDir,
		registerer: prometheus.NewRegistry(),
		debounce:   constants.DefaultDebounce,
	}
	for _, opt := range args {
		opt(&opts)
	}

	if opts.client == nil {
		cmsOpts := []cms.Options{cms.WithPreview(cfg.Preview), cms.WithEnvironment(cfg.Environment)}
		if cfg.Host != "" {
			cmsOpts = append(cmsOpts, cms.WithBaseURL(cfg.Host))
		}
		opts.client = cms.New(cfg.AccessToken, cfg.SpaceID, cmsOpts...)
	}
	if opts.engine == nil {
		if opts.engine, err = render.NewHTMLEngine(0); err != nil {
			return nil, err
		}
	}

	orchestrator, err := collection.New(fetcher.New(opts.client, cfg.IncludeLevel), cfg.AddDataTo, cfg.ContentTypes,
		collection.WithAggressiveRefresh(cfg.AggressiveRefresh),
		collection.WithConcurrency(cfg.Concurrency),
		collection.WithRegisterer(opts.registerer))
	if err != nil {
		return nil, err
	}

	projectFs := opts.fs
	if opts.root != "" && opts.root != "." {
		projectFs = afero.NewBasePathFs(opts.fs, opts.root)
	}
	outFs := projectFs
	if filepath.IsAbs(opts.outputDir) {
		outFs = opts.fs
	}

	b = &Builder{
		cfg:          cfg,
		orchestrator: orchestrator,
		fanOut:       render.New(opts.engine, projectFs, render.WithConcurrency(cfg.Concurrency)),

		outFs:     outFs,
		outputDir: opts.outputDir,

		root:       opts.root,
		watchPaths: opts.watchPaths,
		debounce:   opts.debounce,

		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentful_build_cycles_total",
			Help: "Number of build cycles, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contentful_build_duration_seconds",
			Help:    "Duration of build cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		assets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contentful_build_assets",
			Help: "Number of artifacts produced by the last build cycle.",
		}),
	}
	for _, c := range []prometheus.Collector{b.cycles, b.duration, b.assets} {
		if err := opts.registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register build metrics: %v", err)
		}
	}

	return b, nil
}

// Build runs one build cycle. Without force, content is only retrieved on the first cycle, unless
// aggressive refresh is enabled.
//
// If the content cannot be fetched, nothing is written. Emission and rendering failures are returned,
// but the artifacts which were produced are still written.
func (b *Builder) Build(ctx context.Context, force bool) (s Summary, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s.ID = uuid.NewString()
	log := slog.With("cycle", s.ID)
	start := time.Now()
	defer func() {
		s.Duration = time.Since(start)
		b.duration.Observe(s.Duration.Seconds())
	}()

	log.Info("Starting build cycle", "force", force)

	m, err := b.orchestrator.Run(ctx, force)
	if err != nil {
		result := "error"
		if ctx.Err() != nil {
			result = "canceled"
		}
		b.cycles.WithLabelValues(result).Inc()
		return s, fmt.Errorf("build cycle %s failed: %w", s.ID, err)
	}
	s.Collections = make(map[string]int, len(m))
	for name, items := range m {
		s.Collections[name] = len(items)
	}

	set := assets.NewSet()
	var errs []error

	perType := make(map[string]string)
	for _, ct := range b.cfg.ContentTypes {
		if ct.JSON != "" {
			perType[ct.Name] = ct.JSON
		}
	}
	if err := emit.Emit(set, m, b.cfg.JSON, perType); err != nil {
		errs = append(errs, err)
	}

	if err := b.fanOut.RenderAll(ctx, m, b.cfg.ContentTypes, b.cfg.AddDataTo.Snapshot(), set); err != nil {
		errs = append(errs, err)
	}

	if err := ctx.Err(); err != nil {
		b.cycles.WithLabelValues("canceled").Inc()
		return s, fmt.Errorf("build cycle %s canceled: %w", s.ID, err)
	}

	if err := set.Commit(b.outFs, b.outputDir); err != nil {
		errs = append(errs, err)
	}
	s.Assets = set.Names()
	b.assets.Set(float64(len(s.Assets)))

	if err := errors.Join(errs...); err != nil {
		b.cycles.WithLabelValues("partial").Inc()
		log.Warn("Build cycle completed with errors", "assets", len(s.Assets), "error", err)
		return s, fmt.Errorf("build cycle %s completed with errors: %w", s.ID, err)
	}

	b.cycles.WithLabelValues("success").Inc()
	log.Info("Build cycle completed", "assets", len(s.Assets), "duration", time.Since(start))
	return s, nil
}
