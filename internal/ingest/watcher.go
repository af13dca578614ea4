package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (non-recursive)
	InitialScan bool          // if true, emit PDFs already present
	Debounce    time.Duration // coalesce rapid create/write/rename bursts
}

// StartWatcher reports new PDFs appearing in cfg.Roots, each path once until
// it is removed or renamed away. Hidden files and sources already carrying the
// done- prefix are ignored. Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, r := range cfg.Roots {
		if err := w.Add(r); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
		if cfg.InitialScan {
			files, _, err := ListPDFs(r)
			if err != nil {
				logger.Warn("initial scan failed", "root", r, "error", err)
				continue
			}
			for _, f := range files {
				if !IsProcessed(f) {
					initial = append(initial, f)
				}
			}
		}
	}
	logger.Info("watching input folders", "roots", cfg.Roots, "debounce", cfg.Debounce)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func(w *fsnotify.Watcher) {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}(w)

		reported := map[string]struct{}{}
		emit := func(p string) bool {
			if _, dup := reported[p]; dup {
				return true
			}
			select {
			case evCh <- p:
				reported[p] = struct{}{}
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		var (
			timer   *time.Timer
			timerC  <-chan time.Time
			pending = map[string]struct{}{}
			order   []string
		)
		flush := func() bool {
			for _, p := range order {
				// Skip files that vanished again (temp files, renamed away).
				if _, err := os.Stat(p); err != nil {
					continue
				}
				if !emit(p) {
					return false
				}
			}
			pending = map[string]struct{}{}
			order = nil
			return true
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
					delete(reported, e.Name)
				}
				if !wanted(e) {
					continue
				}
				if _, seen := pending[e.Name]; !seen {
					pending[e.Name] = struct{}{}
					order = append(order, e.Name)
				}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(cfg.Debounce)
				}
				timerC = timer.C
			case <-timerC:
				timerC = nil
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func wanted(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Rename) {
		return false
	}
	if IsHidden(e.Name) || IsProcessed(e.Name) {
		return false
	}
	return AllowedExt(filepath.Ext(e.Name))
}
