package shader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period a Watcher waits for before reporting changed files.
const DefaultDebounce = 250 * time.Millisecond

// ChangeHandler receives the absolute paths of .wgsl files that changed during one debounce window.
type ChangeHandler func(paths []string)

// Watcher watches a shader directory and reports edited .wgsl files in debounced batches.
type Watcher struct {
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	onChange ChangeHandler

	mu      sync.Mutex
	pending map[string]struct{}
	done    chan struct{}
}

// NewWatcher creates a Watcher for dir. Start must be called to begin receiving events.
//
// Parameters:
//   - logger: the logger for watcher diagnostics
//   - dir: the directory holding the .wgsl sources
//   - debounce: the quiet period; zero selects DefaultDebounce
//   - onChange: called from the watcher goroutine with each batch of changed files
//
// Returns:
//   - *Watcher: the watcher
//   - error: an error if the underlying file watcher could not be created
func NewWatcher(logger *zap.Logger, dir string, debounce time.Duration, onChange ChangeHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		logger:   logger.Named("shader_watcher"),
		watcher:  fw,
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start adds the directory to the watch list and processes events until ctx is cancelled or Stop is called.
//
// Parameters:
//   - ctx: cancels the event loop
//
// Returns:
//   - error: an error if the directory could not be watched
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.dir, err)
	}
	w.logger.Info("watching shaders", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	debounceTimer := time.NewTimer(w.debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if shouldProcessEvent(event) {
					w.logger.Debug("shader change detected", zap.String("file", event.Name), zap.String("op", event.Op.String()))
					w.mu.Lock()
					w.pending[event.Name] = struct{}{}
					w.mu.Unlock()
					debounceTimer.Reset(w.debounce)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("watcher error", zap.Error(err))
			case <-debounceTimer.C:
				w.flush()
			case <-ctx.Done():
				w.logger.Info("stopping shader watcher")
				return
			}
		}
	}()
	return nil
}

// Stop closes the underlying file watcher and waits for the event loop to exit if it was started.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	select {
	case <-w.done:
	case <-time.After(time.Second):
	}
	return err
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	if len(paths) == 0 || w.onChange == nil {
		return
	}
	sort.Strings(paths)
	w.onChange(paths)
}

// shouldProcessEvent accepts create and write events on .wgsl files. Editors that save by
// rename surface as a create of the final name.
func shouldProcessEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".wgsl")
}
