package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"

	"spectral/internal/logging"
)

// Follow copies the run's log files to w as they grow, starting with their
// current contents, until ctx is done. Files created later are picked up.
func (m *Manager) Follow(ctx context.Context, runID string, w io.Writer) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	dir := filepath.Join(m.RunPath(runID), logsDir)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logging.Sandbox("Following logs of run %s", runID)

	f := &follower{w: w, offsets: make(map[string]int64)}
	existing, _ := filepath.Glob(filepath.Join(dir, "*.log"))
	sort.Strings(existing)
	for _, path := range existing {
		if err := f.copyNew(path); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".log" {
				continue
			}
			switch {
			case event.Op&fsnotify.Create != 0, event.Op&fsnotify.Write != 0:
				if err := f.copyNew(event.Name); err != nil {
					return err
				}
			case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
				delete(f.offsets, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.SandboxWarn("log watcher error: %v", err)
		}
	}
}

type follower struct {
	w       io.Writer
	offsets map[string]int64
	last    string
}

// copyNew writes bytes appended to path since the previous call.
func (f *follower) copyNew(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return err
	}
	off := f.offsets[path]
	if fi.Size() < off {
		off = 0 // truncated
	}
	if fi.Size() == off {
		return nil
	}

	if f.last != path {
		if _, err := fmt.Fprintf(f.w, "==> %s <==\n", filepath.Base(path)); err != nil {
			return err
		}
		f.last = path
	}
	if _, err := file.Seek(off, io.SeekStart); err != nil {
		return err
	}
	n, err := io.Copy(f.w, file)
	f.offsets[path] = off + n
	return err
}
