package indexer

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// EventHandler applies file changes. *Pipeline implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev Event) (*EventResult, error)
}

// Watcher watches the workspace and dispatches debounced, de-duplicated file
// events to a handler.
type Watcher struct {
	handler   EventHandler
	discovery *Discovery
	rootDir   string
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	workers   int

	mu      sync.Mutex
	pending map[string]EventKind
	paused  bool

	flushCh  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

// NewWatcher registers every non-ignored directory under rootDir.
func NewWatcher(rootDir string, discovery *Discovery, handler EventHandler, debounce time.Duration, workers int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if workers <= 0 {
		workers = 1
	}

	w := &Watcher{
		handler:   handler,
		discovery: discovery,
		rootDir:   rootDir,
		watcher:   fsw,
		debounce:  debounce,
		workers:   workers,
		pending:   make(map[string]EventKind),
		flushCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	if err := w.addDirectoriesRecursively(rootDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher and waits for dispatched events to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.watcher.Close()
	})
}

// Pause holds events until Resume. Events keep accumulating.
func (w *Watcher) Pause() {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
}

// Resume dispatches anything held while paused.
func (w *Watcher) Resume() {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
	w.signal()
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)
	defer w.inflight.Wait()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.record(event) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.signal)

		case <-w.flushCh:
			w.flush(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) signal() {
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

// record adds a relevant event to the pending set.
func (w *Watcher) record(event fsnotify.Event) bool {
	rel, ok := w.discovery.relative(event.Name)
	if !ok || rel == "" || w.discovery.Ignored(rel) {
		return false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return w.recordDirectory(event.Name)
		}
	}

	var kind EventKind
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// May be a directory; the handler sorts that out.
		kind = EventDeleted
	case event.Op&fsnotify.Create != 0:
		kind = EventCreated
	case event.Op&fsnotify.Write != 0:
		kind = EventModified
	default:
		return false
	}
	if kind != EventDeleted && !w.discovery.Match(rel) {
		return false
	}

	w.mu.Lock()
	w.pending[rel] = kind
	w.mu.Unlock()
	return true
}

// recordDirectory watches a new directory and queues the files already in it.
func (w *Watcher) recordDirectory(dir string) bool {
	if err := w.addDirectoriesRecursively(dir); err != nil {
		log.Printf("Warning: failed to watch new directory %s: %v", dir, err)
	}
	files, err := w.discovery.discoverUnder(context.Background(), dir)
	if err != nil {
		log.Printf("Warning: failed to scan new directory %s: %v", dir, err)
		return false
	}
	if len(files) == 0 {
		return false
	}
	w.mu.Lock()
	for _, f := range files {
		w.pending[f] = EventCreated
	}
	w.mu.Unlock()
	return true
}

// flush hands the pending set to the handler unless paused.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.paused || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]EventKind)
	w.mu.Unlock()

	events := make([]Event, 0, len(batch))
	for path, kind := range batch {
		events = append(events, Event{Path: path, Kind: kind})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.dispatch(ctx, events)
	}()
}

func (w *Watcher) dispatch(ctx context.Context, events []Event) {
	log.Printf("Reindexing due to changes in %d file(s)...", len(events))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(w.workers)
	for _, ev := range events {
		g.Go(func() error {
			if _, err := w.handler.HandleEvent(ctx, ev); err != nil {
				log.Printf("Warning: failed to apply %s event for %s: %v", ev.Kind, ev.Path, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("Reindex complete in %v", time.Since(start))
}

// addDirectoriesRecursively adds all directories in the tree to the watcher.
func (w *Watcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Log but continue - don't fail the entire watch for one directory
			log.Printf("Warning: error accessing %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if rel, ok := w.discovery.relative(path); !ok || (rel != "" && w.discovery.Ignored(rel)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}
