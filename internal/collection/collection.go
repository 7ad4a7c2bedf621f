// Package collection fetches every configured content type and publishes the result for templates.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/static-dev/contentful/internal/config"
	"github.com/static-dev/contentful/internal/constants"
	"golang.org/x/sync/errgroup"
)

// Map holds the items of every content type, by content type name, in retrieval order.
type Map map[string][]any

// Orchestrator runs a fetch of all content types per build cycle, following the refresh policy.
type Orchestrator struct {
	fetcher dFetcher
	dest    dPublisher
	types   []config.ContentType

	aggressiveRefresh bool
	concurrency       int

	mu      sync.Mutex
	current Map
	fetched bool

	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	skipped  prometheus.Counter
}

type dFetcher interface {
	Fetch(ctx context.Context, ct config.ContentType) ([]any, error)
}

type dPublisher interface {
	Publish(key string, value any)
}

type options struct {
	aggressiveRefresh bool
	concurrency       int
	registerer        prometheus.Registerer
}

// Options represents an optional function to override Orchestrator default values.
type Options func(*options)

// WithAggressiveRefresh makes every run fetch again.
func WithAggressiveRefresh(aggressive bool) Options {
	return func(o *options) {
		o.aggressiveRefresh = aggressive
	}
}

// WithConcurrency sets the number of content types fetched at once.
func WithConcurrency(n int) Options {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRegisterer sets the registerer of the fetch metrics.
func WithRegisterer(reg prometheus.Registerer) Options {
	return func(o *options) {
		o.registerer = reg
	}
}

// New returns an orchestrator fetching types with f and publishing into dest.
func New(f dFetcher, dest dPublisher, types []config.ContentType, args ...Options) (*Orchestrator, error) {
	opts := options{
		concurrency: constants.DefaultConcurrency,
		registerer:  prometheus.NewRegistry(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contentful_fetches_total",
		Help: "Number of content type fetches, by result.",
	}, []string{"content_type", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contentful_fetch_duration_seconds",
		Help:    "Duration of content type fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"content_type"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contentful_refresh_skipped_total",
		Help: "Number of runs served from the previously published collections.",
	})
	for _, c := range []prometheus.Collector{fetches, duration, skipped} {
		if err := opts.registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collection metrics: %v", err)
		}
	}

	return &Orchestrator{
		fetcher: f,
		dest:    dest,
		types:   types,

		aggressiveRefresh: opts.aggressiveRefresh,
		concurrency:       opts.concurrency,

		fetches:  fetches,
		duration: duration,
		skipped:  skipped,
	}, nil
}

// Run returns the collections of the current build cycle.
//
// The first run always fetches. Later runs return the previously published map, without any
// retrieval, unless aggressive refresh is enabled or force is set.
// Content types are fetched concurrently. If any of them fails, the error is returned and nothing
// is published. Otherwise a new map is published, as a whole, under the contentful key.
func (o *Orchestrator) Run(ctx context.Context, force bool) (Map, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fetched && !o.aggressiveRefresh && !force {
		slog.Debug("Reusing previously fetched collections")
		o.skipped.Inc()
		return o.current, nil
	}

	results := make([][]any, len(o.types))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, ct := range o.types {
		g.Go(func() error {
			start := time.Now()
			items, err := o.fetcher.Fetch(gCtx, ct)
			o.duration.WithLabelValues(ct.Name).Observe(time.Since(start).Seconds())
			if err != nil {
				o.fetches.WithLabelValues(ct.Name, "error").Inc()
				return err
			}
			o.fetches.WithLabelValues(ct.Name, "success").Inc()
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("Fetching collections failed, keeping the previous ones", "error", err)
		return nil, err
	}

	m := make(Map, len(o.types))
	for i, ct := range o.types {
		items := results[i]
		if items == nil {
			items = []any{}
		}
		m[ct.Name] = items
	}

	o.dest.Publish(constants.LocalsKey, m)
	o.current = m
	o.fetched = true
	slog.Info("Published collections", "contentTypes", len(m))

	return m, nil
}

// Current returns the last published map, or nil if nothing was published yet.
func (o *Orchestrator) Current() Map {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}
