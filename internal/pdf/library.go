// Package pdf wraps the PDF libraries the splitter delegates to: pdfcpu for
// page counting and extraction, MuPDF or poppler for rasterization.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageRef addresses one page of one source file. Page is 0-based.
type PageRef struct {
	Path string
	Page int
}

// Library is everything the splitter needs from a PDF toolkit.
type Library interface {
	PageCount(path string) (int, error)
	Validate(path string) error
	// ExtractPages writes refs, in order, into a new document at out.
	ExtractPages(out string, refs []PageRef) error
	RenderPage(ctx context.Context, path string, page int, scale float64) (image.Image, error)
}

var disableConfigDir sync.Once

// Toolkit implements Library with pdfcpu plus a Renderer.
type Toolkit struct {
	conf     *model.Configuration
	renderer Renderer
	logger   *slog.Logger
}

// NewToolkit builds a Toolkit. A nil renderer selects MuPDF.
func NewToolkit(renderer Renderer, logger *slog.Logger) *Toolkit {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = NewFitzRenderer(logger)
	}
	// pdfcpu would otherwise write its config tree below the user config dir.
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Toolkit{conf: conf, renderer: renderer, logger: logger}
}

func (t *Toolkit) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

func (t *Toolkit) Validate(path string) error {
	if err := api.ValidateFile(path, t.conf); err != nil {
		return fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (t *Toolkit) RenderPage(ctx context.Context, path string, page int, scale float64) (image.Image, error) {
	return t.renderer.RenderPage(ctx, path, page, scale)
}

// ExtractPages copies each run of same-source pages with pdfcpu's collect, which
// keeps the requested order, and merges the runs when there is more than one.
func (t *Toolkit) ExtractPages(out string, refs []PageRef) error {
	if len(refs) == 0 {
		return errors.New("no pages to extract")
	}
	runs := SourceRuns(refs)
	if len(runs) == 1 {
		return t.collect(runs[0], out)
	}

	tmpDir, err := os.MkdirTemp("", "pdfsplit-merge-*")
	if err != nil {
		return err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			t.logger.Warn("failed to remove temp dir", "path", dir, "error", err)
		}
	}(tmpDir)

	parts := make([]string, 0, len(runs))
	for i, run := range runs {
		part := filepath.Join(tmpDir, fmt.Sprintf("part-%03d.pdf", i+1))
		if err := t.collect(run, part); err != nil {
			return err
		}
		parts = append(parts, part)
	}
	if err := api.MergeCreateFile(parts, out, false, t.conf); err != nil {
		return fmt.Errorf("merge %d parts into %s: %w", len(parts), filepath.Base(out), err)
	}
	t.logger.Debug("pages merged", "out", out, "parts", len(parts), "pages", len(refs))
	return nil
}

func (t *Toolkit) collect(run Run, out string) error {
	if err := api.CollectFile(run.Path, out, run.Selection(), t.conf); err != nil {
		return fmt.Errorf("extract pages %v of %s: %w", run.Selection(), filepath.Base(run.Path), err)
	}
	return nil
}

// Run is a maximal sequence of consecutive refs sharing one source.
type Run struct {
	Path  string
	Pages []int
}

// Selection renders the run as pdfcpu page selectors (1-based).
func (r Run) Selection() []string {
	out := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = strconv.Itoa(p + 1)
	}
	return out
}

// SourceRuns splits refs into runs of consecutive same-source pages.
func SourceRuns(refs []PageRef) []Run {
	var runs []Run
	for _, ref := range refs {
		if n := len(runs); n > 0 && runs[n-1].Path == ref.Path {
			runs[n-1].Pages = append(runs[n-1].Pages, ref.Page)
			continue
		}
		runs = append(runs, Run{Path: ref.Path, Pages: []int{ref.Page}})
	}
	return runs
}
