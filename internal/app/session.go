// Package app owns the page catalog and drives the background runner from a
// single control goroutine.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/async"
	"github.com/joseph-ayodele/pdf-splitter/internal/catalog"
	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/export"
	"github.com/joseph-ayodele/pdf-splitter/internal/ingest"
	"github.com/joseph-ayodele/pdf-splitter/internal/profiles"
	"github.com/joseph-ayodele/pdf-splitter/internal/repository"
)

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("session stopped")

const maxStatusLines = 1000

// Options configures a Session.
type Options struct {
	// OutputDir is used for profiles without an output folder.
	OutputDir string
	// ReportXLSX writes an XLSX report next to the exported files.
	ReportXLSX bool
	// Completer runs when every page of a source has been assigned.
	Completer catalog.SourceCompleter
	// OnStatus receives each status-log line on the control goroutine.
	OnStatus func(string)
}

// Outcome is how a background task ended.
type Outcome struct {
	TaskID  uuid.UUID
	Kind    constants.TaskKind
	State   constants.TaskState
	Message string
	Err     error
	Stats   *ingest.DirStats
	Run     *entity.ExportRun
	Report  string
}

// Session is the control loop. The catalog is only touched from Run; other
// goroutines go through the request methods.
type Session struct {
	catalog  *catalog.Catalog
	profiles *profiles.Service
	runner   *async.Runner
	reporter *export.Reporter
	history  repository.HistoryRepository
	opts     Options
	logger   *slog.Logger

	reqs    chan func()
	stopped chan struct{}

	status    []string
	pending   map[uuid.UUID]*Outcome
	recording map[uuid.UUID]struct{}
	outcomes  map[uuid.UUID]Outcome
	waiters   map[uuid.UUID][]chan Outcome
	lastRun   *entity.ExportRun
}

// New builds a session. reporter and history may be nil.
func New(
	svc *profiles.Service,
	runner *async.Runner,
	reporter *export.Reporter,
	history repository.HistoryRepository,
	opts Options,
	logger *slog.Logger,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		catalog:   catalog.New(opts.Completer, logger),
		profiles:  svc,
		runner:    runner,
		reporter:  reporter,
		history:   history,
		opts:      opts,
		logger:    logger,
		reqs:      make(chan func()),
		stopped:   make(chan struct{}),
		pending:   make(map[uuid.UUID]*Outcome),
		recording: make(map[uuid.UUID]struct{}),
		outcomes:  make(map[uuid.UUID]Outcome),
		waiters:   make(map[uuid.UUID][]chan Outcome),
	}
}

// Run serves requests and runner events until ctx is done or the runner's
// event stream closes.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopped)
	events := s.runner.Events()
	s.logger.Info("session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", "reason", ctx.Err())
			return ctx.Err()
		case fn := <-s.reqs:
			fn()
		case ev, ok := <-events:
			if !ok {
				s.logger.Info("session stopped", "reason", "runner closed")
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

// do runs fn on the control goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() { defer close(done); fn() }
	select {
	case s.reqs <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrStopped
	}
}

// LoadFolder starts loading dir, replacing any load in progress.
func (s *Session) LoadFolder(ctx context.Context, dir string) (uuid.UUID, error) {
	var (
		id  uuid.UUID
		err error
	)
	if derr := s.do(ctx, func() {
		id, err = s.runner.StartLoad(dir)
		if err == nil {
			s.track(id, constants.TaskKindLoad)
		}
	}); derr != nil {
		return uuid.Nil, derr
	}
	return id, err
}

// Export plans jobs from the assigned pages and starts writing them.
func (s *Session) Export(ctx context.Context) (uuid.UUID, export.Preview, error) {
	var (
		id      uuid.UUID
		preview export.Preview
		err     error
	)
	if derr := s.do(ctx, func() {
		var jobs []entity.ExportJob
		jobs, err = s.plan()
		if err != nil {
			s.log(exportErrorLine(err))
			return
		}
		preview = export.BuildPreview(jobs)
		id, err = s.runner.StartExport(jobs)
		if err == nil {
			s.track(id, constants.TaskKindExport)
		}
	}); derr != nil {
		return uuid.Nil, export.Preview{}, derr
	}
	return id, preview, err
}

// PlanExport returns the jobs an export would run without starting it.
func (s *Session) PlanExport(ctx context.Context) ([]entity.ExportJob, export.Preview, error) {
	var (
		jobs []entity.ExportJob
		err  error
	)
	if derr := s.do(ctx, func() { jobs, err = s.plan() }); derr != nil {
		return nil, export.Preview{}, derr
	}
	if err != nil {
		return nil, export.Preview{}, err
	}
	return jobs, export.BuildPreview(jobs), nil
}

// PlanAssign returns the jobs an export would run if profile were assigned to
// the selected pages. Neither the catalog nor the source files change.
func (s *Session) PlanAssign(ctx context.Context, profile string) ([]entity.ExportJob, export.Preview, error) {
	var (
		jobs []entity.ExportJob
		err  error
	)
	if derr := s.do(ctx, func() {
		if err = s.profiles.ValidateForApply(profile); err != nil {
			return
		}
		var pages []entity.PageRecord
		selected := 0
		for _, p := range s.catalog.All() {
			if p.Selected {
				name := profile
				p.AssignedProfile = &name
				p.Selected = false
				selected++
			}
			if p.IsAssigned() {
				pages = append(pages, p)
			}
		}
		if selected == 0 {
			err = common.InvalidArgumentErrorf("no pages selected")
			return
		}
		jobs, err = export.BuildJobs(pages, nil, s.profiles.GetProfile, s.opts.OutputDir, nil, s.logger)
	}); derr != nil {
		return nil, export.Preview{}, derr
	}
	if err != nil {
		return nil, export.Preview{}, err
	}
	return jobs, export.BuildPreview(jobs), nil
}

// Cancel requests cancellation of the running task of kind.
func (s *Session) Cancel(ctx context.Context, kind constants.TaskKind) (bool, error) {
	var ok bool
	err := s.do(ctx, func() {
		ok = s.runner.Cancel(kind)
		if ok {
			s.log(fmt.Sprintf("Cancelling %s...", kind))
		}
	})
	return ok, err
}

// Wait blocks until task id has ended.
func (s *Session) Wait(ctx context.Context, id uuid.UUID) (Outcome, error) {
	ch := make(chan Outcome, 1)
	if err := s.do(ctx, func() {
		if out, ok := s.outcomes[id]; ok {
			ch <- out
			return
		}
		s.waiters[id] = append(s.waiters[id], ch)
	}); err != nil {
		return Outcome{}, err
	}
	select {
	case out := <-ch:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-s.stopped:
		return Outcome{}, ErrStopped
	}
}

// Assign gives profile to every selected page. The profile's required fields
// must be filled in first.
func (s *Session) Assign(ctx context.Context, profile string) (int, error) {
	var (
		n   int
		err error
	)
	if derr := s.do(ctx, func() {
		if err = s.profiles.ValidateForApply(profile); err != nil {
			return
		}
		if len(s.catalog.Selected()) == 0 {
			err = common.InvalidArgumentErrorf("no pages selected")
			return
		}
		n = s.catalog.AssignProfileToSelected(profile)
		s.log(fmt.Sprintf("Assigned profile '%s' to %d pages", profile, n))
	}); derr != nil {
		return 0, derr
	}
	return n, err
}

// Unassign clears the profile of the given pages.
func (s *Session) Unassign(ctx context.Context, keys ...entity.PageKey) (int, error) {
	var n int
	err := s.do(ctx, func() { n = s.catalog.Unassign(keys...) })
	return n, err
}

// Select marks pages as selected.
func (s *Session) Select(ctx context.Context, keys ...entity.PageKey) (int, error) {
	var n int
	err := s.do(ctx, func() { n = s.catalog.Select(keys...) })
	return n, err
}

// SelectAll selects every visible unassigned page.
func (s *Session) SelectAll(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func() { n = s.catalog.SelectAll() })
	return n, err
}

func (s *Session) ClearSelection(ctx context.Context) error {
	return s.do(ctx, s.catalog.ClearSelection)
}

func (s *Session) InvertSelection(ctx context.Context) error {
	return s.do(ctx, s.catalog.InvertSelection)
}

// Filter narrows the visible pages and returns how many remain.
func (s *Session) Filter(ctx context.Context, text string) (int, error) {
	var n int
	err := s.do(ctx, func() { n = s.catalog.Filter(text) })
	return n, err
}

// Batch groups pages into one output file per profile and returns the new
// batch id.
func (s *Session) Batch(ctx context.Context, keys ...entity.PageKey) (string, error) {
	id := uuid.NewString()
	var n int
	if err := s.do(ctx, func() { n = s.catalog.SetBatch(keys, id) }); err != nil {
		return "", err
	}
	if n == 0 {
		return "", common.InvalidArgumentErrorf("no matching pages to batch")
	}
	return id, nil
}

// SetPageFields stores per-page field overrides.
func (s *Session) SetPageFields(ctx context.Context, key entity.PageKey, values map[string]string) error {
	var ok bool
	if err := s.do(ctx, func() { ok = s.catalog.SetFieldValues(key, values) }); err != nil {
		return err
	}
	if !ok {
		return common.NotFoundErrorf("page %s not found", key)
	}
	return nil
}

// Pages returns the visible pages.
func (s *Session) Pages(ctx context.Context) ([]entity.PageRecord, error) {
	var out []entity.PageRecord
	err := s.do(ctx, func() { out = s.catalog.Visible() })
	return out, err
}

// Counts returns the catalog totals.
func (s *Session) Counts(ctx context.Context) (catalog.Counts, error) {
	var out catalog.Counts
	err := s.do(ctx, func() { out = s.catalog.Counts() })
	return out, err
}

// Status returns a copy of the status log.
func (s *Session) Status(ctx context.Context) ([]string, error) {
	var out []string
	err := s.do(ctx, func() { out = append([]string(nil), s.status...) })
	return out, err
}

// LastRun returns the most recent completed export.
func (s *Session) LastRun(ctx context.Context) (*entity.ExportRun, error) {
	var out *entity.ExportRun
	err := s.do(ctx, func() { out = s.lastRun })
	return out, err
}

func (s *Session) plan() ([]entity.ExportJob, error) {
	assigned := s.catalog.Assigned()
	if len(assigned) == 0 {
		return nil, common.ErrNothingToExport
	}
	return export.BuildJobs(assigned, nil, s.profiles.GetProfile, s.opts.OutputDir, nil, s.logger)
}

func (s *Session) track(id uuid.UUID, kind constants.TaskKind) {
	s.pending[id] = &Outcome{TaskID: id, Kind: kind, State: constants.TaskRunning}
}

func (s *Session) handle(ctx context.Context, ev async.Event) {
	if _, settled := s.outcomes[ev.TaskID]; settled {
		return
	}
	out := s.pending[ev.TaskID]
	if out == nil {
		// Task started directly on the runner.
		out = &Outcome{TaskID: ev.TaskID, Kind: ev.Kind}
		s.pending[ev.TaskID] = out
	}

	switch ev.Type {
	case async.EventProgress:
		s.log(ev.Message)
	case async.EventPagesLoaded:
		s.catalog.Load(ev.Pages)
		out.Stats = ev.Stats
	case async.EventExportCompleted:
		s.lastRun = ev.Run
		out.Run = ev.Run
		s.recording[ev.TaskID] = struct{}{}
		go s.recordRun(context.WithoutCancel(ctx), ev.TaskID, *ev.Run)
	case async.EventState:
		out.State = ev.State
		if !ev.Terminal() {
			return
		}
		if ev.Message != "" {
			s.log(ev.Message)
		}
		out.Message = ev.Message
		out.Err = ev.Err
		if _, busy := s.recording[ev.TaskID]; busy {
			// Settled when the report and history write lands.
			return
		}
		s.settle(*out)
	}
}

func (s *Session) settle(out Outcome) {
	delete(s.pending, out.TaskID)
	s.outcomes[out.TaskID] = out
	for _, ch := range s.waiters[out.TaskID] {
		ch <- out
	}
	delete(s.waiters, out.TaskID)
	s.logger.Debug("task settled", "task_id", out.TaskID, "kind", out.Kind, "state", out.State)
}

// recordRun writes the optional report and history row off the control
// goroutine, then posts the result back and settles the task if it has
// already ended.
func (s *Session) recordRun(ctx context.Context, id uuid.UUID, run entity.ExportRun) {
	report, lines := s.writeRunRecords(ctx, run)
	post := func() {
		delete(s.recording, id)
		for _, line := range lines {
			s.log(line)
		}
		out := s.pending[id]
		if out == nil {
			return
		}
		out.Report = report
		if out.State.Terminal() {
			s.settle(*out)
		}
	}
	select {
	case s.reqs <- post:
	case <-s.stopped:
		s.logger.Debug("session stopped before run was recorded", "run_id", id)
	}
}

// writeRunRecords returns the report path and the status lines to log. It
// must not touch session state.
func (s *Session) writeRunRecords(ctx context.Context, run entity.ExportRun) (string, []string) {
	ctx = common.WithRunID(ctx, run.ID)
	var (
		report string
		lines  []string
	)
	if s.opts.ReportXLSX && s.reporter != nil && s.opts.OutputDir != "" {
		path := filepath.Join(s.opts.OutputDir, fmt.Sprintf("export-report-%s.xlsx", run.StartedAt.Format("20060102-150405")))
		err := os.MkdirAll(s.opts.OutputDir, 0o755)
		if err == nil {
			err = s.reporter.WriteFile(path, run)
		}
		if err != nil {
			lines = append(lines, fmt.Sprintf("Failed to write export report: %v", err))
		} else {
			report = path
			lines = append(lines, "Export report written: "+path)
		}
	}
	if s.history != nil {
		hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.history.RecordRun(hctx, run); err != nil {
			s.logger.Warn("failed to record export history", "run_id", common.RunIDFromContext(hctx), "error", err)
			lines = append(lines, fmt.Sprintf("Failed to record export history: %v", err))
		}
	}
	return report, lines
}

func (s *Session) log(line string) {
	s.status = append(s.status, line)
	if over := len(s.status) - maxStatusLines; over > 0 {
		s.status = append(s.status[:0], s.status[over:]...)
	}
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(line)
	}
}

func exportErrorLine(err error) string {
	switch {
	case errors.Is(err, common.ErrNothingToExport):
		return "No pages have been assigned index profiles yet."
	case errors.Is(err, common.ErrNoOutputFolder):
		return "Please set an output folder before exporting."
	default:
		return "Export error: " + err.Error()
	}
}
