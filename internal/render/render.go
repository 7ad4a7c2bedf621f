// Package render renders every item of the templated content types into its own artifact.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/spf13/afero"
	"github.com/static-dev/contentful/internal/collection"
	"github.com/static-dev/contentful/internal/config"
	"github.com/static-dev/contentful/internal/constants"
	"github.com/static-dev/contentful/internal/entry"
	"golang.org/x/sync/errgroup"
)

// Error is the failure to render one item, or a whole content type when Index is negative.
type Error struct {
	ContentType string
	Index       int
	ItemID      string
	Path        string
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("content type %q", e.ContentType)
	if e.Index >= 0 {
		msg += fmt.Sprintf(", item %d", e.Index)
	}
	if e.ItemID != "" {
		msg += fmt.Sprintf(" (id %q)", e.ItemID)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(", output %q", e.Path)
	}
	return fmt.Sprintf("could not render %s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sink registers named artifacts.
type Sink interface {
	Add(name string, content []byte)
}

// FanOut renders templated content types with an Engine.
type FanOut struct {
	engine      Engine
	fs          afero.Fs
	concurrency int
}

type options struct {
	concurrency int
}

// Options represents an optional function to override FanOut default values.
type Options func(*options)

// WithConcurrency sets the number of items rendered at once.
func WithConcurrency(n int) Options {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// New returns a FanOut rendering with engine the templates read from fs.
func New(engine Engine, fs afero.Fs, args ...Options) *FanOut {
	opts := options{concurrency: constants.DefaultConcurrency}
	for _, opt := range args {
		opt(&opts)
	}

	return &FanOut{
		engine:      engine,
		fs:          fs,
		concurrency: opts.concurrency,
	}
}

// RenderAll renders every item of every templated content type of types and registers the result
// in sink under the item's output path.
//
// Templates are checked before anything is rendered. Each item is rendered with its own copy of
// globals, holding the item under the item key. A failing item does not stop its siblings: every
// failure is returned joined, as *Error, and successful artifacts stay registered.
func (f *FanOut) RenderAll(ctx context.Context, m collection.Map, types []config.ContentType, globals map[string]any, sink Sink) error {
	if err := config.ValidateTemplates(types); err != nil {
		return err
	}

	var mu sync.Mutex
	var errs []error
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for _, ct := range types {
		if ct.Template == nil {
			continue
		}

		src, err := afero.ReadFile(f.fs, ct.Template.Path)
		if err != nil {
			fail(&Error{ContentType: ct.Name, Index: -1, Err: fmt.Errorf("could not read template: %w", err)})
			continue
		}

		items := m[ct.Name]
		slog.Debug("Rendering content type", "contentType", ct.Name, "template", ct.Template.Path, "items", len(items))

		for i, item := range items {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := f.renderItem(ct, string(src), i, item, globals, sink); err != nil {
					fail(err)
				}
				return nil
			})
		}
	}

	// Item failures are collected, not returned.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// renderItem renders one item into sink. A panic in the output function or the engine fails the
// item only.
func (f *FanOut) renderItem(ct config.ContentType, src string, i int, item any, globals map[string]any, sink Sink) (err error) {
	rerr := &Error{ContentType: ct.Name, Index: i, ItemID: entry.ID(item)}
	defer func() {
		if r := recover(); r != nil {
			rerr.Err = fmt.Errorf("panic: %v", r)
			err = rerr
		}
	}()

	out, err := ct.Template.Output(item)
	if err != nil {
		rerr.Err = fmt.Errorf("could not compute output path: %w", err)
		return rerr
	}
	rerr.Path = out

	locals := maps.Clone(globals)
	if locals == nil {
		locals = make(map[string]any, 1)
	}
	locals[constants.ItemKey] = item

	html, err := f.engine.Render(ct.Template.Path, src, locals)
	if err != nil {
		rerr.Err = err
		return rerr
	}

	sink.Add(out, []byte(html))
	return nil
}
