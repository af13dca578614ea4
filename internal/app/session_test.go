package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/async"
	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/export"
	"github.com/joseph-ayodele/pdf-splitter/internal/ingest"
	"github.com/joseph-ayodele/pdf-splitter/internal/pdf"
	"github.com/joseph-ayodele/pdf-splitter/internal/profiles"
	"github.com/joseph-ayodele/pdf-splitter/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLib counts pages by file name and writes a marker file per extraction.
type fakeLib struct {
	pages map[string]int
}

func (f fakeLib) PageCount(path string) (int, error) {
	name := filepath.Base(path)
	if n, ok := f.pages[name]; ok {
		return n, nil
	}
	return 0, errors.New("not a pdf")
}

func (f fakeLib) ExtractPages(out string, refs []pdf.PageRef) error {
	return os.WriteFile(out, []byte("%PDF-1.7"), 0o644)
}

// fakeHistory records runs. When gate is set, RecordRun signals entered and
// blocks until gate closes.
type fakeHistory struct {
	runs    []entity.ExportRun
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeHistory) RecordRun(ctx context.Context, run entity.ExportRun) error {
	if f.gate != nil {
		close(f.entered)
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeHistory) ListRuns(context.Context, int) ([]repository.RunSummary, error) {
	return nil, nil
}

func (f *fakeHistory) ListResults(context.Context, uuid.UUID) ([]repository.ResultRow, error) {
	return nil, nil
}

func (f *fakeHistory) FindByOutput(context.Context, string) ([]repository.ResultRow, error) {
	return nil, nil
}

type harness struct {
	session *Session
	history *fakeHistory
	svc     *profiles.Service
	in      string
	out     string
	lines   []string
}

func newHarness(t *testing.T, pages map[string]int, opts Options) *harness {
	t.Helper()
	logger := quietLogger()
	root := t.TempDir()
	h := &harness{in: filepath.Join(root, "in"), out: filepath.Join(root, "out"), history: &fakeHistory{}}
	if err := os.MkdirAll(h.in, 0o755); err != nil {
		t.Fatal(err)
	}
	for name := range pages {
		if err := os.WriteFile(filepath.Join(h.in, name), []byte("%PDF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store, err := repository.NewProfileStore(filepath.Join(root, "profiles.json"), logger)
	if err != nil {
		t.Fatal(err)
	}
	h.svc = profiles.NewService(store, logger)
	_, err = h.svc.CreateProfile(profiles.CreateProfileRequest{
		Name:          "Letters",
		OutputPattern: "{sender}/{year}",
		Fields: []entity.IndexField{
			{Name: "Sender", Required: true},
			{Name: "Year"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	lib := fakeLib{pages: pages}
	runner := async.NewRunner(ingest.NewLoader(lib, logger), export.NewExecutor(lib, logger), logger)
	if opts.OutputDir == "" {
		opts.OutputDir = h.out
	}
	opts.OnStatus = func(line string) { h.lines = append(h.lines, line) }
	h.session = New(h.svc, runner, export.NewReporter(logger), h.history, opts, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = h.session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		runner.Shutdown(sctx)
	})
	return h
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (h *harness) load(t *testing.T) Outcome {
	t.Helper()
	ctx := testCtx(t)
	id, err := h.session.LoadFolder(ctx, h.in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := h.session.Wait(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestLoadPopulatesCatalog(t *testing.T) {
	h := newHarness(t, map[string]int{"a.pdf": 2, "b.pdf": 3}, Options{})
	out := h.load(t)
	if out.State != constants.TaskCompleted {
		t.Fatalf("load ended %s: %s", out.State, out.Message)
	}
	if out.Stats == nil || out.Stats.Loaded != 2 {
		t.Errorf("stats = %+v", out.Stats)
	}

	ctx := testCtx(t)
	pages, err := h.session.Pages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 5 {
		t.Errorf("pages = %d, want 5", len(pages))
	}
	status, _ := h.session.Status(ctx)
	if !slices.Contains(status, "Loaded 5 pages total.") {
		t.Errorf("status log = %q", status)
	}
}

func TestLoadEmptyFolderFails(t *testing.T) {
	h := newHarness(t, nil, Options{})
	out := h.load(t)
	if out.State != constants.TaskFailed || out.Message != "No PDF files found in the selected folder." {
		t.Errorf("outcome = %+v", out)
	}
	if h.lines[len(h.lines)-1] != out.Message {
		t.Errorf("failure not in status log: %q", h.lines)
	}
}

func TestAssignRequiresFilledFields(t *testing.T) {
	h := newHarness(t, map[string]int{"a.pdf": 1}, Options{})
	h.load(t)
	ctx := testCtx(t)
	h.session.SelectAll(ctx)

	if _, err := h.session.Assign(ctx, "Letters"); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("Assign with empty required field: %v", err)
	}
	if err := h.svc.SetFieldValue("Letters", "Sender", "Acme"); err != nil {
		t.Fatal(err)
	}
	n, err := h.session.Assign(ctx, "Letters")
	if err != nil || n != 1 {
		t.Fatalf("Assign = %d, %v", n, err)
	}
	if _, err := h.session.Assign(ctx, "Letters"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("Assign with nothing selected: %v", err)
	}
}

func TestExportWritesFilesAndReport(t *testing.T) {
	h := newHarness(t, map[string]int{"a.pdf": 2}, Options{ReportXLSX: true})
	h.load(t)
	ctx := testCtx(t)
	if err := h.svc.SetFieldValue("Letters", "Sender", "Acme"); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.SetFieldValue("Letters", "Year", "2024"); err != nil {
		t.Fatal(err)
	}
	h.session.SelectAll(ctx)
	if _, err := h.session.Assign(ctx, "Letters"); err != nil {
		t.Fatal(err)
	}

	id, preview, err := h.session.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := preview.Summary(); got != "Will create 1 files in 1 folders" {
		t.Errorf("preview = %q", got)
	}
	out, err := h.session.Wait(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.TaskCompleted || out.Run == nil {
		t.Fatalf("export outcome = %+v", out)
	}
	if ok, failed := out.Run.Tally(); ok != 1 || failed != 0 {
		t.Errorf("tally = %d ok, %d failed", ok, failed)
	}
	want := filepath.Join(h.out, "Acme", "2024.pdf")
	if diff := cmp.Diff(want, out.Run.Results[0].Job.OutputPath); diff != "" {
		t.Errorf("output path mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if out.Report == "" {
		t.Fatal("no report written")
	}
	if _, err := os.Stat(out.Report); err != nil {
		t.Errorf("report missing: %v", err)
	}
	if len(h.history.runs) != 1 || h.history.runs[0].ID != id {
		t.Errorf("history runs = %+v", h.history.runs)
	}
	last, _ := h.session.LastRun(ctx)
	if last == nil || last.ID != id {
		t.Errorf("LastRun = %+v", last)
	}
}

func TestSlowHistoryDoesNotBlockRequests(t *testing.T) {
	h := newHarness(t, map[string]int{"a.pdf": 1}, Options{})
	h.history.entered = make(chan struct{})
	h.history.gate = make(chan struct{})
	h.load(t)
	ctx := testCtx(t)
	if err := h.svc.SetFieldValue("Letters", "Sender", "Acme"); err != nil {
		t.Fatal(err)
	}
	h.session.SelectAll(ctx)
	if _, err := h.session.Assign(ctx, "Letters"); err != nil {
		t.Fatal(err)
	}
	id, _, err := h.session.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-h.history.entered:
	case <-ctx.Done():
		t.Fatal("history never written")
	}
	qctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := h.session.Status(qctx); err != nil {
		t.Fatalf("Status while history is written: %v", err)
	}

	close(h.history.gate)
	out, err := h.session.Wait(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if out.State != constants.TaskCompleted || len(h.history.runs) != 1 {
		t.Errorf("outcome = %+v, history runs = %d", out, len(h.history.runs))
	}
}

func TestPlanAssignLeavesCatalogAndSources(t *testing.T) {
	logger := quietLogger()
	h := newHarness(t, map[string]int{"a.pdf": 2}, Options{Completer: ingest.SourceCompleter(logger)})
	h.load(t)
	ctx := testCtx(t)
	if err := h.svc.SetFieldValue("Letters", "Sender", "Acme"); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.SetFieldValue("Letters", "Year", "2024"); err != nil {
		t.Fatal(err)
	}
	h.session.SelectAll(ctx)

	jobs, preview, err := h.session.PlanAssign(ctx, "Letters")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || len(jobs[0].Pages()) != 2 || preview.TotalFiles != 1 {
		t.Errorf("jobs = %d, preview = %+v", len(jobs), preview)
	}
	if _, err := os.Stat(filepath.Join(h.in, "a.pdf")); err != nil {
		t.Errorf("source renamed by a plan: %v", err)
	}
	counts, _ := h.session.Counts(ctx)
	if counts.Assigned != 0 || counts.Selected != 2 {
		t.Errorf("counts after plan = %+v", counts)
	}
	if _, err := os.Stat(h.out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output folder created by a plan: %v", err)
	}
}

func TestExportWithNothingAssigned(t *testing.T) {
	h := newHarness(t, map[string]int{"a.pdf": 1}, Options{})
	h.load(t)
	ctx := testCtx(t)
	if _, _, err := h.session.Export(ctx); !errors.Is(err, common.ErrNothingToExport) {
		t.Fatalf("Export = %v", err)
	}
	status, _ := h.session.Status(ctx)
	if got := status[len(status)-1]; got != "No pages have been assigned index profiles yet." {
		t.Errorf("last status = %q", got)
	}
}

func TestCompletedSourceIsRenamed(t *testing.T) {
	logger := quietLogger()
	h := newHarness(t, map[string]int{"a.pdf": 2}, Options{Completer: ingest.SourceCompleter(logger)})
	h.load(t)
	ctx := testCtx(t)
	if err := h.svc.SetFieldValue("Letters", "Sender", "Acme"); err != nil {
		t.Fatal(err)
	}

	h.session.Select(ctx, entity.PageKey{SourcePath: filepath.Join(h.in, "a.pdf"), PageNumber: 0})
	h.session.Assign(ctx, "Letters")
	if _, err := os.Stat(filepath.Join(h.in, "a.pdf")); err != nil {
		t.Fatalf("renamed before all pages were assigned: %v", err)
	}

	h.session.SelectAll(ctx)
	h.session.Assign(ctx, "Letters")
	if _, err := os.Stat(filepath.Join(h.in, "done-a.pdf")); err != nil {
		t.Fatalf("source not marked processed: %v", err)
	}
	pages, _ := h.session.Pages(ctx)
	for _, p := range pages {
		if filepath.Base(p.SourcePath) != "done-a.pdf" {
			t.Errorf("page %d still points at %s", p.PageNumber, p.SourcePath)
		}
	}
}

func TestRequestsAfterStopFail(t *testing.T) {
	logger := quietLogger()
	store, err := repository.NewProfileStore(filepath.Join(t.TempDir(), "profiles.json"), logger)
	if err != nil {
		t.Fatal(err)
	}
	runner := async.NewRunner(nil, nil, logger)
	s := New(profiles.NewService(store, logger), runner, nil, nil, Options{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if _, err := s.Counts(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Counts after stop = %v", err)
	}
}
