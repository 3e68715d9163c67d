package mcptools

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/redcellhq/redcell/internal/observability"
)

const watchDebounce = 250 * time.Millisecond

// Watch observes the MCP binding file and logs a notice when it
// changes. Bindings resolve at swarm construction, so edits take
// effect on the next start; the notice tells the operator a restart is
// needed. Blocks until ctx is cancelled.
//
// The watch is set on the parent directory because editors replace
// files by rename, which silently drops a watch set on the file
// itself.
func Watch(ctx context.Context, path string, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create mcp config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	base := filepath.Base(path)

	var mu sync.Mutex
	var timer *time.Timer
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	notify := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			logger.Info(context.Background(),
				"mcp config changed; tool bindings refresh on next start", "path", path)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				notify()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "mcp config watch error", "error", err)
		}
	}
}
