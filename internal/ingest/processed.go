package ingest

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/pdf-splitter/constants"
)

// MarkSourceProcessed renames path to done-<name> in the same folder and
// returns the new path. An existing done-<name> is never replaced. Failures
// are logged at debug and leave path unchanged.
func MarkSourceProcessed(path string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if IsProcessed(path) {
		return path
	}
	target := filepath.Join(filepath.Dir(path), constants.DoneSourcePrefix+filepath.Base(path))
	if err := claimTarget(path, target); err != nil {
		logger.Debug("source rename skipped", "path", path, "target", target, "error", err)
		return path
	}
	logger.Info("source marked processed", "path", path, "new_path", target)
	return target
}

// SourceCompleter adapts MarkSourceProcessed to the catalog callback.
func SourceCompleter(logger *slog.Logger) func(string) string {
	return func(path string) string {
		return MarkSourceProcessed(path, logger)
	}
}

// claimTarget moves path to target without replacing an existing file. A hard
// link fails when target exists; filesystems without links fall back to a
// checked rename.
func claimTarget(path, target string) error {
	err := os.Link(path, target)
	switch {
	case err == nil:
		if rmErr := os.Remove(path); rmErr != nil {
			_ = os.Remove(target)
			return rmErr
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return err
	}
	if _, statErr := os.Lstat(target); statErr == nil {
		return &fs.PathError{Op: "rename", Path: target, Err: fs.ErrExist}
	}
	return os.Rename(path, target)
}
