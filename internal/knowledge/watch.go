package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"entomo/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a Catalog when its files change. Parent directories are
// watched rather than the files so editors that save by rename are seen.
type Watcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher registers the catalog's directories. Run starts delivering events.
func NewWatcher(catalog *Catalog, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	paths := catalog.paths()
	if len(paths) == 0 {
		return nil, errors.New("knowledge watch: no files configured")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("knowledge watch: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w := &Watcher{
		catalog:  catalog,
		watcher:  fw,
		files:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "knowledge-watch"),
	}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		w.files[filepath.Clean(p)] = struct{}{}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("knowledge watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run reloads the catalog after each burst of changes until ctx ends.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("knowledge file changed",
				logging.String("path", event.Name),
				logging.String("op", event.Op.String()),
			)
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "knowledge watch error", "knowledge_watch_error",
				logging.Error(err),
			)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if _, ok := w.files[filepath.Clean(event.Name)]; !ok {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}

func (w *Watcher) reload() {
	if err := w.catalog.Reload(); err != nil {
		logging.WarnWithContext(w.logger, "knowledge reload failed", "knowledge_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "previous knowledge and class index stay active"),
		)
		return
	}
	w.logger.Info("knowledge reloaded",
		logging.Int("records", w.catalog.Store().Len()),
		logging.Int("classes", len(w.catalog.Index())),
	)
}
