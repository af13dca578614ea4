package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

// Loader turns a folder of PDFs into page records.
type Loader struct {
	lib    PageCounter
	logger *slog.Logger
}

func NewLoader(lib PageCounter, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{lib: lib, logger: logger}
}

// LoadFolder reads every PDF directly inside dir, emitting one progress message
// per file. Cancellation is checked before each file. A file that cannot be
// opened is reported through progress and skipped.
func (l *Loader) LoadFolder(ctx context.Context, dir string, progress func(string)) ([]entity.PageRecord, DirStats, error) {
	if progress == nil {
		progress = func(string) {}
	}
	files, stats, err := ListPDFs(dir)
	if err != nil {
		return nil, stats, err
	}
	if len(files) == 0 {
		return nil, stats, ErrNoPDFFiles
	}

	var pages []entity.PageRecord
	for i, path := range files {
		if ctx.Err() != nil {
			l.logger.Info("load cancelled", "folder", dir, "files_done", i)
			return nil, stats, common.ErrCancelled
		}
		name := filepath.Base(path)
		progress(fmt.Sprintf("Processing %s (%d/%d)", name, i+1, len(files)))

		n, err := l.lib.PageCount(path)
		if err != nil {
			stats.Failed++
			l.logger.Warn("failed to open source", "path", path, "error", err)
			progress(fmt.Sprintf("Error loading %s: %v", name, err))
			continue
		}
		for p := 0; p < n; p++ {
			pages = append(pages, entity.PageRecord{SourcePath: path, PageNumber: p})
		}
		stats.Loaded++
		stats.Pages += uint32(n)
		l.logger.Debug("source loaded", "path", path, "pages", n)
	}

	if len(pages) == 0 {
		return nil, stats, ErrNoPages
	}
	progress(fmt.Sprintf("Loaded %d pages total.", len(pages)))
	l.logger.Info("folder loaded", "folder", dir, "files", stats.Loaded, "failed", stats.Failed, "pages", len(pages))
	return pages, stats, nil
}
