package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces a burst of appends into one re-cook. The
// proxy writes record by record; without a quiet period every line
// would trigger its own cook pass.
const debounceDelay = 200 * time.Millisecond

// Watch re-cooks the artifact whenever the input file changes, then
// notifies connected websocket clients. Blocks until ctx is cancelled.
//
// When the input is already a cooked artifact there is nothing to
// re-cook, but clients are still told to reload on change.
func (v *Viewer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file itself. Appends, renames
	// and atomic replaces all keep delivering events that way.
	dir := filepath.Dir(v.inputPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	slog.Info("watching for changes", "input", v.inputPath)

	base := filepath.Base(v.inputPath)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			pending = time.After(debounceDelay)

		case <-pending:
			pending = nil
			if err := v.Recook(); err != nil {
				slog.Error("re-cook failed", "input", v.inputPath, "error", err)
				continue
			}
			v.hub.broadcastReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("file watcher error", "error", err)
		}
	}
}
