// Package fetcher retrieves and transforms the items of one content type.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/static-dev/contentful/internal/cms"
	"github.com/static-dev/contentful/internal/config"
	"github.com/static-dev/contentful/internal/entry"
)

var (
	// ErrRetrieval is matched by errors of the remote retrieval.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrStructuralMismatch is matched by errors of an ordered content type whose manifest is malformed.
	ErrStructuralMismatch = errors.New("unexpected ordered manifest")
	// ErrTransform is matched by errors returned by a custom transform.
	ErrTransform = errors.New("transform failed")
)

// Error is an error fetching one content type.
type Error struct {
	ContentType string
	// Kind is one of ErrRetrieval, ErrStructuralMismatch or ErrTransform.
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("content type %q: %v: %v", e.ContentType, e.Kind, e.Err)
}

// Unwrap returns the kind and the cause of the error.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Client retrieves entries.
type Client interface {
	Entries(ctx context.Context, q cms.Query) (*cms.EntryCollection, error)
}

// Fetcher retrieves content types with a shared client.
type Fetcher struct {
	client       Client
	includeLevel int
}

// New returns a fetcher resolving includeLevel levels of links.
func New(client Client, includeLevel int) *Fetcher {
	return &Fetcher{
		client:       client,
		includeLevel: includeLevel,
	}
}

// Query returns the request parameters of ct. Filters take precedence over the defaults.
func (f *Fetcher) Query(ct config.ContentType) cms.Query {
	q := cms.Query{
		"content_type": ct.RemoteID(),
		"include":      f.includeLevel,
	}
	maps.Copy(q, ct.Filters)
	return q
}

// Fetch retrieves the items of ct and returns them transformed, in retrieval order.
func (f *Fetcher) Fetch(ctx context.Context, ct config.ContentType) ([]any, error) {
	q := f.Query(ct)
	slog.Debug("Fetching content type", "contentType", ct.Name, "query", q.String())

	col, err := f.client.Entries(ctx, q)
	if err != nil {
		return nil, &Error{ContentType: ct.Name, Kind: ErrRetrieval, Err: err}
	}

	items := col.Items
	if ct.Ordered {
		if items, err = unwrapManifest(col); err != nil {
			return nil, &Error{ContentType: ct.Name, Kind: ErrStructuralMismatch, Err: err}
		}
	}

	if limit := ct.Limit(); len(items) > limit {
		slog.Warn("Truncating items to the configured limit", "contentType", ct.Name, "received", len(items), "limit", limit)
		items = items[:limit]
	}

	out, err := transform(ct.Transform, items)
	if err != nil {
		return nil, &Error{ContentType: ct.Name, Kind: ErrTransform, Err: err}
	}

	slog.Info("Fetched content type", "contentType", ct.Name, "items", len(out))
	return out, nil
}

// unwrapManifest returns the list held by the first field of the single manifest entry.
func unwrapManifest(col *cms.EntryCollection) ([]any, error) {
	if n := len(col.Items); n != 1 {
		return nil, fmt.Errorf("expected exactly one manifest entry, got %d", n)
	}

	name, value, ok := col.FirstField(0)
	if !ok {
		return nil, errors.New("manifest entry has no fields")
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("manifest field %q holds %T, not a list", name, value)
	}
	return list, nil
}

func transform(t config.Transform, items []any) (out []any, err error) {
	switch t.Mode() {
	case config.TransformDisabled:
		return items, nil
	case config.TransformNormalize:
		out = make([]any, len(items))
		for i, item := range items {
			out[i] = entry.Normalize(item)
		}
		return out, nil
	case config.TransformCustom:
		fn := t.Func()
		out = make([]any, len(items))
		for i, item := range items {
			if out[i], err = applyCustom(fn, item); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown transform mode %v", t.Mode())
	}
}

// applyCustom runs user code, turning a panic into an error.
func applyCustom(fn config.TransformFunc, item any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(item)
}
