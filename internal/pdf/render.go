package pdf

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gen2brain/go-fitz"
)

// baseDPI is the resolution at scale 1.0.
const baseDPI = 72.0

// Renderer rasterizes a single page. page is 0-based.
type Renderer interface {
	RenderPage(ctx context.Context, path string, page int, scale float64) (image.Image, error)
}

// Renderer names accepted by NewRenderer.
const (
	RendererMuPDF    = "mupdf"
	RendererPdftoppm = "pdftoppm"
)

// NewRenderer picks the renderer named by kind. Unknown names fall back to MuPDF.
func NewRenderer(kind, pdftoppmBin string, runner Runner, logger *slog.Logger) Renderer {
	if kind == RendererPdftoppm {
		return NewPopplerRenderer(pdftoppmBin, runner, logger)
	}
	return NewFitzRenderer(logger)
}

// FitzRenderer renders through MuPDF.
type FitzRenderer struct {
	logger *slog.Logger
}

func NewFitzRenderer(logger *slog.Logger) *FitzRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FitzRenderer{logger: logger}
}

func (r *FitzRenderer) RenderPage(ctx context.Context, path string, page int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", page+1, doc.NumPage())
	}
	img, err := doc.ImageDPI(page, baseDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d of %s: %w", page+1, filepath.Base(path), err)
	}
	r.logger.Debug("page rendered", "renderer", RendererMuPDF, "path", path, "page", page+1, "scale", scale)
	return img, nil
}

// PopplerRenderer shells out to pdftoppm.
type PopplerRenderer struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPopplerRenderer(bin string, runner Runner, logger *slog.Logger) *PopplerRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if bin == "" {
		bin = "pdftoppm"
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &PopplerRenderer{bin: bin, runner: runner, logger: logger}
}

func (r *PopplerRenderer) RenderPage(ctx context.Context, path string, page int, scale float64) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "pdfsplit-pp-*")
	if err != nil {
		return nil, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page + 1)
	dpi := strconv.Itoa(int(baseDPI*scale + 0.5))
	// pdftoppm -f N -l N -r DPI -png -singlefile <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.bin, "-f", n, "-l", n, "-r", dpi, "-png", "-singlefile", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %s of %s: %w: %s", n, filepath.Base(path), err, stderrSummary(errb, 512))
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode pdftoppm output: %w", err)
	}
	r.logger.Debug("page rendered", "renderer", RendererPdftoppm, "path", path, "page", page+1, "dpi", dpi)
	return img, nil
}
