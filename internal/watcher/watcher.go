// Package watcher follows the upload directory and feeds changes to the
// corpus manager: new files are ingested incrementally, anything else
// triggers a full reinitialisation.
package watcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"

	"docsearch/internal/domain"
)

// DefaultDebounce is the quiet period before a batch of changes is applied.
const DefaultDebounce = 500 * time.Millisecond

// Sink receives the watcher's decisions.
type Sink interface {
	IngestFile(ctx context.Context, path string) (bool, error)
	Initialize(ctx context.Context) (map[domain.Kind]int, error)
}

// Watcher watches one directory, non-recursively.
type Watcher struct {
	dir       string
	sink      Sink
	logger    arbor.ILogger
	fsWatcher *fsnotify.Watcher
	debouncer *debouncer
}

func New(dir string, sink Sink, debounce time.Duration, logger arbor.ILogger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:       dir,
		sink:      sink,
		logger:    logger,
		fsWatcher: fsw,
		debouncer: newDebouncer(debounce, logger),
	}, nil
}

// Run processes events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsWatcher.Close()
	defer w.debouncer.stop()

	w.logger.Info().Str("dir", w.dir).Msg("Watching document directory")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		case batch := <-w.debouncer.output:
			w.apply(ctx, batch)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if _, err := domain.KindFromPath(event.Name); err != nil {
		return
	}
	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return
		}
		w.debouncer.add(event.Name, OpCreate)
	case event.Op&fsnotify.Write != 0:
		w.debouncer.add(event.Name, OpModify)
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.debouncer.add(event.Name, OpDelete)
	}
}

// apply ingests created files one by one. A modified or removed file cannot
// be expressed as an append, so the whole corpus is rebuilt instead.
func (w *Watcher) apply(ctx context.Context, batch []Event) {
	for _, e := range batch {
		if e.Operation != OpCreate {
			counts, err := w.sink.Initialize(ctx)
			if err != nil {
				w.logger.Error().Err(err).Str("path", e.Path).Msg("Reinitialisation failed")
				return
			}
			w.logger.Info().
				Str("trigger", e.Path).
				Str("operation", e.Operation.String()).
				Int("pdf", counts[domain.KindPDF]).
				Int("docx", counts[domain.KindDOCX]).
				Int("csv", counts[domain.KindCSV]).
				Msg("Corpus reinitialised")
			return
		}
	}
	for _, e := range batch {
		ok, err := w.sink.IngestFile(ctx, e.Path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", e.Path).Msg("Watched file not ingested")
			continue
		}
		if ok {
			w.logger.Info().Str("path", e.Path).Msg("Watched file ingested")
		}
	}
}
