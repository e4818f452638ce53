// Package watch drives repeated reconciliation passes from two trigger
// sources: a fixed-interval ticker and debounced filesystem-change events
// on the tracked config paths. Both sources are serialized onto one
// goroutine, so two passes never run concurrently; events arriving while a
// pass is in flight coalesce into a single follow-up pass.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc executes one sync pass and returns the set of paths to track
// until the next pass. Returning the path set from the pass itself means
// manifest edits (agents added or removed) adjust the watch set without a
// restart.
type RunFunc func(ctx context.Context) (paths []string, err error)

const defaultDebounce = 500 * time.Millisecond

// Watcher is the continuous-sync loop.
type Watcher struct {
	// Interval between timer-driven passes. Zero disables the ticker.
	Interval time.Duration

	// Debounce is how long to wait after a file change before syncing, so
	// an editor's burst of writes triggers one pass. Zero means a default
	// of 500ms.
	Debounce time.Duration

	// FSEvents enables the filesystem-change trigger.
	FSEvents bool

	Logger *slog.Logger

	// Run executes one pass. A pass error is logged and the loop continues;
	// transient failures must not kill the watch process.
	Run RunFunc
}

// Start runs the loop until the context is cancelled. Cancellation takes
// effect between passes: an in-flight pass finishes first, preserving the
// lock store's per-agent durability. The first pass runs immediately.
func (w *Watcher) Start(ctx context.Context) error {
	if w.Interval <= 0 && !w.FSEvents {
		w.Interval = 30 * time.Second
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	var fw *fsnotify.Watcher
	if w.FSEvents {
		var err error
		fw, err = fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer fw.Close()
	}

	tracked := map[string]bool{}
	watchedDirs := map[string]bool{}
	w.runPass(ctx, fw, tracked, watchedDirs)

	var tickC <-chan time.Time
	if w.Interval > 0 {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	// The debounce timer starts disarmed; each relevant file event re-arms
	// it, and only its expiry triggers a pass.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	armed := false

	var eventC chan fsnotify.Event
	var errC chan error
	if fw != nil {
		eventC = fw.Events
		errC = fw.Errors
	}

	for {
		select {
		case <-ctx.Done():
			w.logger().Info("watch stopped")
			return nil

		case <-tickC:
			if armed {
				stopTimer(timer)
				armed = false
			}
			w.runPass(ctx, fw, tracked, watchedDirs)

		case ev := <-eventC:
			if !interesting(ev, tracked) {
				continue
			}
			w.logger().Debug("config change detected", "path", ev.Name, "op", ev.Op.String())
			if armed {
				stopTimer(timer)
			}
			timer.Reset(debounce)
			armed = true

		case err := <-errC:
			w.logger().Warn("file watcher error", "error", err)

		case <-timer.C:
			armed = false
			w.runPass(ctx, fw, tracked, watchedDirs)
		}
	}
}

// runPass executes one sync pass and refreshes the watch set from its
// result. Pass failures are logged, never fatal.
func (w *Watcher) runPass(ctx context.Context, fw *fsnotify.Watcher, tracked, watchedDirs map[string]bool) {
	if ctx.Err() != nil {
		return
	}

	paths, err := w.Run(ctx)
	if err != nil {
		w.logger().Error("sync pass failed", "error", err)
	}
	if fw == nil || paths == nil {
		return
	}

	for k := range tracked {
		delete(tracked, k)
	}
	next := map[string]bool{}
	for _, p := range paths {
		clean := filepath.Clean(p)
		tracked[clean] = true
		next[filepath.Dir(clean)] = true
	}

	// Watch parent directories rather than files: editors typically replace
	// files on save, which would silently drop a file-level watch.
	for dir := range next {
		if !watchedDirs[dir] {
			if err := fw.Add(dir); err != nil {
				w.logger().Warn("watching directory failed", "dir", dir, "error", err)
				continue
			}
			watchedDirs[dir] = true
		}
	}
	for dir := range watchedDirs {
		if !next[dir] {
			_ = fw.Remove(dir)
			delete(watchedDirs, dir)
		}
	}
}

func interesting(ev fsnotify.Event, tracked map[string]bool) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return false
	}
	return tracked[filepath.Clean(ev.Name)]
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
