package catalog

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 250 * time.Millisecond

// Watch reloads the catalog whenever a routine file in one of its
// directories changes. It blocks until ctx is cancelled. Directories that
// do not exist are skipped. onReload, when set, receives the result of
// each reload.
func (c *Catalog) Watch(ctx context.Context, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range c.dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			c.log.Warn("catalog: cannot watch %s: %v", dir, err)
			continue
		}
		watched++
		c.log.Debug("catalog: watching %s", dir)
	}
	if watched == 0 {
		<-ctx.Done()
		return nil
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRoutineFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDelay)

		case <-pending:
			pending = nil
			err := c.Reload()
			if err != nil {
				c.log.Warn("catalog: reload failed: %v", err)
			} else {
				c.log.Info("catalog: routines reloaded")
			}
			if onReload != nil {
				onReload(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("catalog: watcher error: %v", err)
		}
	}
}
