/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads r whenever a list file in dir changes, until ctx is done.
// Bursts of writes are coalesced into a single reload. Reload errors are
// passed to logf; the previous lists stay in place when a reload fails.
func Watch(ctx context.Context, dir string, r *Registry, logf func(string, ...any)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("catalog: watch %s: %w", dir, err)
	}

	reload := newReloadThrottle(100*time.Millisecond, func() {
		if err := r.Reload(); err != nil {
			logf("LISTS: Reload of %s failed: %v", dir, err)
			return
		}
		logf("LISTS: Reloaded %d list(s) from %s", len(r.Variants()), dir)
	})

	go func() {
		defer func() {
			reload.Stop()
			_ = watcher.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logf("LISTS: Watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Ext(evt.Name), ".yaml") {
					continue
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				reload.Trigger()
			}
		}
	}()

	return nil
}

// reloadThrottle runs fn once per burst of triggers.
type reloadThrottle struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	fn    func()
}

func newReloadThrottle(delay time.Duration, fn func()) *reloadThrottle {
	return &reloadThrottle{delay: delay, fn: fn}
}

func (t *reloadThrottle) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() {
			t.mu.Lock()
			t.timer = nil
			t.mu.Unlock()

			t.fn()
		})
	}
}

func (t *reloadThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
