// Package watcher reports transcript changes on disk to the TUI.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/strrl/claude-history/internal/orchestrator"
)

// Watcher watches one transcript directory tree. fsnotify is not recursive,
// so every subdirectory is added, including ones created later.
type Watcher struct {
	fs     *fsnotify.Watcher
	send   func(tea.Msg)
	logger *slog.Logger

	mu   sync.Mutex
	root string
}

// New creates a watcher that delivers orchestrator.ChangedMsg through send,
// typically (*tea.Program).Send.
func New(send func(tea.Msg), logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{fs: fw, send: send, logger: logger}, nil
}

// Watch replaces the watched tree with root. A missing root is not an error;
// nothing is watched until Watch is called again.
func (w *Watcher) Watch(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.fs.WatchList() {
		_ = w.fs.Remove(p)
	}
	w.root = root

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			w.logger.Debug("Watch root missing", "root", root)
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", root, err)
	}
	return w.addTree(root)
}

// Root returns the directory currently watched
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// Run forwards relevant events until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			w.mu.Unlock()
			return
		}
	}
	if !Relevant(event) {
		return
	}
	w.logger.Debug("Transcript changed", "path", event.Name, "op", event.Op.String())
	w.send(orchestrator.ChangedMsg{Paths: []string{event.Name}})
}

// Relevant reports whether event touches a transcript file
func Relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".jsonl" || ext == ".json"
}

// Close stops the underlying watcher; Run returns afterwards
func (w *Watcher) Close() error {
	return w.fs.Close()
}
