package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string // directories to watch (recursive)
	InitialScan bool     // if true, walk roots and emit existing files
	Debounce    time.Duration
	Logger      *slog.Logger
}

// StartWatcher emits paths of spreadsheet files created or written under the
// roots. Events for the same path within Debounce are coalesced. Both
// channels are closed when ctx ends.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher.start.failed", "error", "no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watcher.create.failed", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && AllowedExt(filepath.Ext(path)) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("watcher.add_root.failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	for _, p := range initial {
		select {
		case evCh <- p:
		default:
			logger.Warn("watcher.initial_scan.dropped", "path", p)
		}
	}

	go func() {
		var (
			mu      sync.Mutex
			timer   *time.Timer
			pending = map[string]struct{}{}
			senders sync.WaitGroup
		)
		defer close(errCh)
		defer close(evCh)
		defer senders.Wait()
		defer func() {
			mu.Lock()
			if timer != nil && timer.Stop() {
				senders.Done()
			}
			mu.Unlock()
		}()
		defer func() { _ = w.Close() }()

		flush := func() {
			mu.Lock()
			defer mu.Unlock()
			for p := range pending {
				select {
				case evCh <- p:
				default:
					logger.Warn("watcher.event.dropped", "path", p)
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create && !IsHidden(e.Name) {
					// new subdirectories are watched too; files make Add fail, which is fine
					_ = w.Add(e.Name)
				}
				if IsHidden(e.Name) || !AllowedExt(filepath.Ext(e.Name)) ||
					e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if cfg.Debounce <= 0 {
					mu.Lock()
					pending[e.Name] = struct{}{}
					mu.Unlock()
					flush()
					continue
				}
				mu.Lock()
				pending[e.Name] = struct{}{}
				if timer != nil && timer.Stop() {
					senders.Done()
				}
				senders.Add(1)
				timer = time.AfterFunc(cfg.Debounce, func() {
					defer senders.Done()
					flush()
				})
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
