package mirror

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mindweave/internal/storage"
)

const (
	reconcileDelay = 200 * time.Millisecond
	// settleDelay lets an editor finish writing before the file is read.
	settleDelay = 100 * time.Millisecond
)

// Watch imports vault edits until ctx is cancelled, calling cb after each
// change to the store. A file is imported once its events have been quiet
// for a moment.
//
// New directories created at runtime are added to the watch list. Renames
// trigger a debounced full sync, since fsnotify reports only the old path.
// Removals are ignored.
func (m *Mirror) Watch(ctx context.Context, imp Importer, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, m.root); err != nil {
		return err
	}

	m.logger.Info("watcher: started", slog.String("root", m.root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	pending := make(map[string]struct{})
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			m.logger.Info("watcher: stopped")
			return nil

		case <-settle.C:
			for rel := range pending {
				m.importFile(ctx, rel, imp, cb)
			}
			clear(pending)

		case <-reconcileCh:
			if err := m.syncDir(ctx, "", imp, cb); err != nil && ctx.Err() == nil {
				m.logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if strings.HasPrefix(info.Name(), ".") {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						m.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
						continue
					}
					if rel, relErr := filepath.Rel(m.root, absPath); relErr == nil {
						_ = m.syncDir(ctx, rel, imp, cb)
					}
					continue
				}
			}

			if !storage.IsNoteFile(absPath) {
				continue
			}
			rel, relErr := filepath.Rel(m.root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = struct{}{}
				settle.Reset(settleDelay)
			case ev.Op&fsnotify.Rename != 0:
				scheduleReconcile()
			case ev.Op&fsnotify.Remove != 0:
				m.logger.Debug("watcher: file removed, note kept", slog.String("path", rel))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
