package build

import "context"

// Loop runs the rebuild loop of Watch over the given watcher channels.
func (b *Builder) Loop(ctx context.Context, changes <-chan struct{}, watchErrs <-chan error) error {
	return b.loop(ctx, changes, watchErrs)
}
