// Package emit serializes fetched collections into JSON assets.
package emit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/static-dev/contentful/internal/collection"
)

// Sink registers named assets.
type Sink interface {
	Add(name string, content []byte)
}

// Emit registers the whole map as JSON under globalName, when set, and the collection of every
// content type named in perType under its file name.
//
// A collection which cannot be serialized only fails its own asset: the others are still emitted,
// and all errors are returned joined.
func Emit(sink Sink, m collection.Map, globalName string, perType map[string]string) error {
	var errs []error

	if globalName != "" {
		if err := emit(sink, globalName, m); err != nil {
			errs = append(errs, err)
		}
	}

	for name, file := range perType {
		if file == "" {
			continue
		}
		items, ok := m[name]
		if !ok {
			errs = append(errs, fmt.Errorf("asset %q: unknown content type %q", file, name))
			continue
		}
		if err := emit(sink, file, items); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func emit(sink Sink, name string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("asset %q: %v", name, err)
	}
	sink.Add(name, data)
	slog.Debug("Emitted JSON asset", "asset", name, "size", len(data))
	return nil
}

// Marshal returns the JSON encoding of v, indented by two spaces, without escaping HTML.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
