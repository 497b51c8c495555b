// Package watcher ingests files dropped into configured folders.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"docchat/internal/docs"
)

// Watcher monitors drop folders and feeds created files into document
// intake. Every failure is logged and swallowed; a bad file never
// stops the watch loop.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	ingester  *docs.Ingester
	folders   []string
	logger    *zap.SugaredLogger
}

func New(ingester *docs.Ingester, folders []string, logger *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		ingester:  ingester,
		folders:   folders,
		logger:    logger,
	}, nil
}

// Start registers the configured folders and runs the event loop until
// the context is cancelled. Folders that cannot be watched are skipped.
func (w *Watcher) Start(ctx context.Context) error {
	watching := 0
	for _, folder := range w.folders {
		if err := w.validatePath(folder); err != nil {
			w.logger.Warnw("skipping drop folder", "folder", folder, "error", err)
			continue
		}
		if err := w.fsWatcher.Add(folder); err != nil {
			w.logger.Warnw("failed to watch folder", "folder", folder, "error", err)
			continue
		}
		w.logger.Infow("watching drop folder", "folder", folder)
		watching++
	}

	go w.eventLoop(ctx)

	w.logger.Infow("file watcher started", "folder_count", watching)
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.fsWatcher.Close()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.ingest(ctx, event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorw("watcher error", "error", err)
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		w.logger.Warnw("failed to open dropped file", "file", path, "error", err)
		return
	}
	defer f.Close()

	doc, err := w.ingester.IngestFile(ctx, filepath.Base(path), f, info.Size())
	if err != nil {
		w.logger.Warnw("failed to ingest dropped file", "file", path, "error", err)
		return
	}
	w.logger.Infow("dropped file ingested", "file", path, "id", doc.ID, "status", doc.Status)
}

func (w *Watcher) validatePath(path string) error {
	systemDirs := []string{"/etc", "/System", "/Windows", "/sys", "/proc"}
	for _, sysDir := range systemDirs {
		if strings.HasPrefix(path, sysDir) {
			return fmt.Errorf("cannot watch system directory: %s", path)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
