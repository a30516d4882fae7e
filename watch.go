package serial

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchRemoval reports the disappearance of a device node, which is how a
// USB serial adapter being unplugged shows up under /dev. The returned
// channel is closed once the node is removed or renamed away. Watching
// stops, without closing the channel, when ctx is done.
func WatchRemoval(ctx context.Context, device string) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWatchNotAvailable, err)
	}

	// Watch the parent directory; inotify watches on the node itself are
	// not reliable for device files.
	if err := w.Add(filepath.Dir(device)); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: %w", ErrWatchNotAvailable, err)
	}

	removed := make(chan struct{})
	target := filepath.Clean(device)

	go func() {
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					close(removed)
					return
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return removed, nil
}
