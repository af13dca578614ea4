package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSourceRuns(t *testing.T) {
	refs := []PageRef{
		{Path: "a.pdf", Page: 0},
		{Path: "a.pdf", Page: 2},
		{Path: "b.pdf", Page: 1},
		{Path: "a.pdf", Page: 1},
	}
	want := []Run{
		{Path: "a.pdf", Pages: []int{0, 2}},
		{Path: "b.pdf", Pages: []int{1}},
		{Path: "a.pdf", Pages: []int{1}},
	}
	got := SourceRuns(refs)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SourceRuns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "3"}, got[0].Selection()); diff != "" {
		t.Errorf("Selection mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPagesRejectsEmpty(t *testing.T) {
	tk := NewToolkit(&fakeRenderer{}, quietLogger())
	if err := tk.ExtractPages("out.pdf", nil); err == nil {
		t.Fatal("expected error for empty page list")
	}
}

// writePDF writes a document with one empty page per width, so pages can be
// told apart by their MediaBox.
func writePDF(t *testing.T, path string, widths ...int) {
	t.Helper()
	var buf bytes.Buffer
	offsets := []int{}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(widths))
	for i := range widths {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(widths)))
	for _, w := range widths {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 300] /Resources << >> >>", w))
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func pageWidths(t *testing.T, path string) []int {
	t.Helper()
	dims, err := api.PageDimsFile(path)
	if err != nil {
		t.Fatalf("page dims of %s: %v", filepath.Base(path), err)
	}
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d.Width)
	}
	return out
}

func TestToolkitExtractPages(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	writePDF(t, a, 101, 102, 103)
	writePDF(t, b, 201, 202)
	tk := NewToolkit(&fakeRenderer{}, quietLogger())

	if n, err := tk.PageCount(a); err != nil || n != 3 {
		t.Fatalf("PageCount = %d, %v", n, err)
	}

	tests := []struct {
		name string
		refs []PageRef
		want []int
	}{
		{
			name: "single source keeps requested order",
			refs: []PageRef{{Path: a, Page: 2}, {Path: a, Page: 0}},
			want: []int{103, 101},
		},
		{
			name: "sources are merged in order",
			refs: []PageRef{{Path: a, Page: 1}, {Path: b, Page: 0}, {Path: a, Page: 2}},
			want: []int{102, 201, 103},
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, fmt.Sprintf("out-%d.pdf", i))
			if err := tk.ExtractPages(out, tt.refs); err != nil {
				t.Fatalf("ExtractPages: %v", err)
			}
			if n, err := tk.PageCount(out); err != nil || n != len(tt.want) {
				t.Fatalf("PageCount(out) = %d, %v", n, err)
			}
			if diff := cmp.Diff(tt.want, pageWidths(t, out)); diff != "" {
				t.Errorf("page order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToolkitExtractPageOutOfRange(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	writePDF(t, a, 101, 102)
	tk := NewToolkit(&fakeRenderer{}, quietLogger())
	if err := tk.ExtractPages(filepath.Join(dir, "out.pdf"), []PageRef{{Path: a, Page: 5}}); err == nil {
		t.Fatal("expected error for a page past the end")
	}
}

type fakeRenderer struct {
	width, height int
	fail          map[int]bool
	calls         atomic.Int32
}

func (f *fakeRenderer) RenderPage(ctx context.Context, path string, page int, scale float64) (image.Image, error) {
	f.calls.Add(1)
	if f.fail[page] {
		return nil, errors.New("render failed")
	}
	w, h := f.width, f.height
	if w == 0 {
		w, h = 200, 300
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func TestThumbnailFitsWidth(t *testing.T) {
	r := &fakeRenderer{width: 400, height: 600}
	img, err := Thumbnail(context.Background(), r, "a.pdf", 0, 0.3, 100)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 150 {
		t.Errorf("thumbnail size = %dx%d, want 100x150", b.Dx(), b.Dy())
	}

	small, err := Thumbnail(context.Background(), r, "a.pdf", 0, 0.3, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if small.Bounds().Dx() != 400 {
		t.Errorf("thumbnail was upscaled to %d", small.Bounds().Dx())
	}
}

func TestThumbnailsOrderedAndBounded(t *testing.T) {
	r := &fakeRenderer{}
	refs := []PageRef{{Path: "a.pdf", Page: 0}, {Path: "a.pdf", Page: 1}, {Path: "b.pdf", Page: 0}}
	imgs, err := Thumbnails(context.Background(), r, refs, 0.3, 50, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 3 {
		t.Fatalf("got %d images, want 3", len(imgs))
	}
	for i, img := range imgs {
		if img == nil || img.Bounds().Dx() != 50 {
			t.Errorf("image %d = %v", i, img)
		}
	}
}

func TestThumbnailsError(t *testing.T) {
	r := &fakeRenderer{fail: map[int]bool{1: true}}
	refs := []PageRef{{Path: "a.pdf", Page: 0}, {Path: "a.pdf", Page: 1}}
	if _, err := Thumbnails(context.Background(), r, refs, 0.3, 0, 1); err == nil {
		t.Fatal("expected render error")
	}
}

// fakeRunner emulates pdftoppm -singlefile by writing <prefix>.png.
type fakeRunner struct {
	args []string
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.args = append([]string{name}, args...)
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	prefix := args[len(args)-1]
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(0, 0, color.White)
	out, err := os.Create(prefix + ".png")
	if err != nil {
		return nil, nil, err
	}
	defer out.Close()
	return nil, nil, png.Encode(out, img)
}

func TestPopplerRenderer(t *testing.T) {
	runner := &fakeRunner{}
	r := NewPopplerRenderer("", runner, quietLogger())
	img, err := r.RenderPage(context.Background(), "/in/a.pdf", 2, 1.0)
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("image size = %v", b)
	}
	want := []string{"pdftoppm", "-f", "3", "-l", "3", "-r", "72", "-png", "-singlefile", "/in/a.pdf"}
	if diff := cmp.Diff(want, runner.args[:len(want)]); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}
}

func TestPopplerRendererError(t *testing.T) {
	r := NewPopplerRenderer("pdftoppm", &fakeRunner{err: errors.New("exit status 1")}, quietLogger())
	if _, err := r.RenderPage(context.Background(), "/in/a.pdf", 0, 1.0); err == nil {
		t.Fatal("expected error")
	}
}

func TestStderrSummary(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "", max: 10, want: ""},
		{in: "Syntax Warning: x\n\n  Syntax Error: bad xref\n", max: 100, want: "Syntax Warning: x; Syntax Error: bad xref"},
		{in: "first line\nI/O Error", max: 9, want: "...I/O Error"},
	}
	for _, tt := range tests {
		if got := stderrSummary([]byte(tt.in), tt.max); got != tt.want {
			t.Errorf("stderrSummary(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
	if got := sourceArg([]string{"-f", "1", "/in/Scan.PDF", "/tmp/page"}); got != "/in/Scan.PDF" {
		t.Errorf("sourceArg = %q", got)
	}
}

func TestNewRenderer(t *testing.T) {
	if _, ok := NewRenderer(RendererPdftoppm, "", &fakeRunner{}, nil).(*PopplerRenderer); !ok {
		t.Error("pdftoppm did not select PopplerRenderer")
	}
	if _, ok := NewRenderer("anything", "", nil, nil).(*FitzRenderer); !ok {
		t.Error("default did not select FitzRenderer")
	}
}
