package blockdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/store"
)

// Watcher keeps the block store in sync with a directory of *.json block
// files. A file is stored under the id it declares.
type Watcher struct {
	dir    string
	reg    *block.Registry
	blocks store.BlockStore
	log    zerolog.Logger

	mu     sync.Mutex
	byPath map[string]string

	ready chan struct{}
}

func New(dir string, reg *block.Registry, blocks store.BlockStore, log zerolog.Logger) *Watcher {
	return &Watcher{
		dir:    dir,
		reg:    reg,
		blocks: blocks,
		log:    log.With().Str("component", "blockdir").Str("dir", dir).Logger(),
		byPath: make(map[string]string),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once Run is watching the directory.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// LoadAll stores every valid block file in the directory and returns how
// many were loaded. Invalid files are logged and skipped.
func (w *Watcher) LoadAll(ctx context.Context) (int, error) {
	paths, err := filepath.Glob(filepath.Join(w.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("listing block files: %w", err)
	}
	loaded := 0
	for _, path := range paths {
		if err := w.loadFile(ctx, path); err != nil {
			w.log.Warn().Err(err).Str("file", path).Msg("skipping block file")
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Run watches the directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	close(w.ready)
	w.log.Info().Msg("watching block directory")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".json") {
		return
	}
	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.removeFile(ctx, ev.Name)
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		// Editors may emit a write for a partially written file; the next
		// write event reloads it.
		if err := w.loadFile(ctx, ev.Name); err != nil {
			w.log.Warn().Err(err).Str("file", ev.Name).Msg("skipping block file")
		}
	}
}

func (w *Watcher) loadFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b, err := w.reg.Load(raw)
	if err != nil {
		return err
	}
	if err := w.blocks.SaveBlock(ctx, b.ID, raw); err != nil {
		return fmt.Errorf("saving block %q: %w", b.ID, err)
	}

	w.mu.Lock()
	prev, had := w.byPath[path]
	w.byPath[path] = b.ID
	w.mu.Unlock()
	if had && prev != b.ID {
		w.deleteBlock(ctx, prev)
	}

	w.log.Info().Str("file", path).Str("block", b.ID).Msg("block loaded")
	return nil
}

func (w *Watcher) removeFile(ctx context.Context, path string) {
	w.mu.Lock()
	id, ok := w.byPath[path]
	delete(w.byPath, path)
	w.mu.Unlock()
	if !ok {
		return
	}
	w.deleteBlock(ctx, id)
	w.log.Info().Str("file", path).Str("block", id).Msg("block removed")
}

func (w *Watcher) deleteBlock(ctx context.Context, id string) {
	if err := w.blocks.DeleteBlock(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		w.log.Error().Err(err).Str("block", id).Msg("failed to delete block")
	}
}
