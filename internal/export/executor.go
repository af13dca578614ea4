package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/pdf"
)

// Extractor is the part of the PDF library the executor needs.
type Extractor interface {
	ExtractPages(out string, refs []pdf.PageRef) error
}

// Executor writes planned jobs through the PDF library.
type Executor struct {
	lib    Extractor
	logger *slog.Logger
}

func NewExecutor(lib Extractor, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{lib: lib, logger: logger}
}

// Run validates every job and, only if all pass, writes them in order. A
// failing job is recorded and the batch continues. Cancellation is checked
// before each job; on cancellation the results so far are returned with
// common.ErrCancelled.
func (e *Executor) Run(ctx context.Context, jobs []entity.ExportJob, progress func(string)) ([]entity.ExportResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	preview := BuildPreview(jobs)
	progress(fmt.Sprintf("Starting export of %d pages...", preview.TotalPages))

	if err := Validate(jobs); err != nil {
		e.logger.Warn("export.validate.failed", "jobs", len(jobs), "error", err)
		return nil, err
	}
	progress(preview.Summary())

	results := make([]entity.ExportResult, 0, len(jobs))
	for i, job := range jobs {
		if ctx.Err() != nil {
			e.logger.Info("export.cancelled", "done", i, "jobs", len(jobs))
			return results, common.ErrCancelled
		}
		progress(fmt.Sprintf("Exporting %d/%d: %s", i+1, len(jobs), job.OutputPath))
		res := e.runJob(job)
		results = append(results, res)
		progress(res.Message)
	}

	ok, failed := entity.ExportRun{Results: results}.Tally()
	progress(fmt.Sprintf("Export complete! %d successful, %d failed.", ok, failed))
	e.logger.Info("export.done", "succeeded", ok, "failed", failed)
	return results, nil
}

func (e *Executor) runJob(job entity.ExportJob) entity.ExportResult {
	start := time.Now()
	res := entity.ExportResult{Job: job}

	err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755)
	if err == nil {
		err = e.lib.ExtractPages(job.OutputPath, pageRefs(job))
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		res.Message = fmt.Sprintf("Failed: %s: %v", job.OutputPath, err)
		e.logger.Error("export.job.failed", "output", job.OutputPath, "pages", len(job.Pages()), "error", err)
		return res
	}
	res.Success = true
	res.Message = "Exported: " + job.OutputPath
	e.logger.Debug("export.job.ok", "output", job.OutputPath, "pages", len(job.Pages()),
		"elapsed_ms", res.Duration.Milliseconds())
	return res
}

func pageRefs(job entity.ExportJob) []pdf.PageRef {
	pages := job.Pages()
	refs := make([]pdf.PageRef, len(pages))
	for i, p := range pages {
		refs[i] = pdf.PageRef{Path: p.SourcePath, Page: p.PageNumber}
	}
	return refs
}
