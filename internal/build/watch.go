package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch runs a build cycle, then a new one each time the templates or the watched paths change,
// until ctx is done.
//
// Bursts of changes are debounced into a single cycle. Cycle failures are logged and do not stop
// watching. Watch always returns a non-nil error, which is either a context error or a watcher error.
func (b *Builder) Watch(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, watchErrs, err := b.watch(ctx)
	if err != nil {
		return err
	}

	// Initial build
	b.rebuild(ctx)

	return b.loop(ctx, changes, watchErrs)
}

// loop rebuilds after each debounced burst of changes until ctx is done or the watcher fails.
func (b *Builder) loop(ctx context.Context, changes <-chan struct{}, watchErrs <-chan error) error {
	debounceTimer := time.NewTimer(b.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Context canceled, stopping watch")
			return ctx.Err()

		case _, ok := <-changes:
			if !ok {
				// The watcher closes its channels once ctx is done.
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("changes channel closed unexpectedly")
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(b.debounce)

		case <-debounceTimer.C:
			slog.Info("Rebuilding after changes")
			b.rebuild(ctx)

		case err, ok := <-watchErrs:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("watcher errors channel closed unexpectedly")
			}
			return err
		}
	}
}

func (b *Builder) rebuild(ctx context.Context) {
	s, err := b.Build(ctx, false)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Build cycle failed", "cycle", s.ID, "error", err)
		}
		return
	}
	slog.Info("Build cycle done", "cycle", s.ID, "assets", len(s.Assets), "duration", s.Duration)
}

// WatchedPaths returns the directories and files watched for changes.
func (b *Builder) WatchedPaths() []string {
	var paths []string
	for _, ct := range b.cfg.ContentTypes {
		if ct.Template == nil {
			continue
		}
		paths = append(paths, filepath.Join(b.root, filepath.Dir(filepath.FromSlash(ct.Template.Path))))
	}
	for _, p := range b.watchPaths {
		paths = append(paths, filepath.Clean(p))
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}

// watch sends on changes whenever a watched path changes.
//
// errors receives unrecoverable watcher errors.
func (b *Builder) watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	paths := b.WatchedPaths()
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("nothing to watch: no content type has a template and no watch path is set")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}
	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, nil, fmt.Errorf("failed to add %s to watcher: %v", p, err)
		}
		slog.Info("Watching for changes", "path", p)
	}

	outputDir := b.outputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(b.root, outputDir)
	}
	if abs, err := filepath.Abs(outputDir); err == nil {
		outputDir = abs
	}

	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				slog.Debug("Watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if within(outputDir, event.Name) {
					continue
				}

				slog.Debug("Change detected", "file", event.Name, "op", event.Op.String())
				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				slog.Warn("Watcher error", "error", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// within reports whether path is dir or inside it.
func within(dir, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
