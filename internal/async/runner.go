// Package async runs load and export work off the control goroutine and streams
// their progress as ordered events.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/export"
	"github.com/joseph-ayodele/pdf-splitter/internal/ingest"
)

// ErrShuttingDown is returned when a task is started after Shutdown.
var ErrShuttingDown = errors.New("runner is shutting down")

// Loader reads a folder into page records.
type Loader interface {
	LoadFolder(ctx context.Context, dir string, progress func(string)) ([]entity.PageRecord, ingest.DirStats, error)
}

// Exporter validates and writes export jobs.
type Exporter interface {
	Run(ctx context.Context, jobs []entity.ExportJob, progress func(string)) ([]entity.ExportResult, error)
}

type Runner struct {
	loader      Loader
	exporter    Exporter
	logger      *slog.Logger
	stopTimeout time.Duration

	events chan Event
	quit   chan struct{}
	wg     sync.WaitGroup

	// startMu serializes starts so replacing a task of one kind is atomic.
	startMu sync.Mutex
	mu      sync.Mutex
	current map[constants.TaskKind]*task
	closed  bool
}

type Option func(*Runner)

// WithStopTimeout bounds how long a start waits for the task it replaces.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

// WithEventBuffer sizes the event channel.
func WithEventBuffer(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.events = make(chan Event, n)
		}
	}
}

func NewRunner(loader Loader, exporter Exporter, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		loader:      loader,
		exporter:    exporter,
		logger:      logger,
		stopTimeout: 5 * time.Second,
		events:      make(chan Event, 256),
		quit:        make(chan struct{}),
		current:     make(map[constants.TaskKind]*task),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Events delivers every task's events in emission order. It is closed by
// Shutdown once all tasks have stopped.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// StartLoad loads folder in the background, replacing a running load.
func (r *Runner) StartLoad(folder string) (uuid.UUID, error) {
	return r.start(constants.TaskKindLoad, func(ctx context.Context, t *task) {
		r.runLoad(ctx, t, folder)
	})
}

// StartExport runs jobs in the background, replacing a running export. The
// jobs are copied.
func (r *Runner) StartExport(jobs []entity.ExportJob) (uuid.UUID, error) {
	jobs = append([]entity.ExportJob(nil), jobs...)
	return r.start(constants.TaskKindExport, func(ctx context.Context, t *task) {
		r.runExport(ctx, t, jobs)
	})
}

// Cancel requests cancellation of the running task of kind and reports
// whether there was one.
func (r *Runner) Cancel(kind constants.TaskKind) bool {
	r.mu.Lock()
	t := r.current[kind]
	r.mu.Unlock()
	if t == nil || t.State().Terminal() {
		return false
	}
	t.requestCancel()
	r.logger.Info("task cancel requested", "kind", kind, "task_id", t.id)
	return true
}

// State is the state of the latest task of kind, or Idle.
func (r *Runner) State(kind constants.TaskKind) constants.TaskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.current[kind]; t != nil {
		return t.State()
	}
	return constants.TaskIdle
}

// Shutdown cancels every task and waits for them until ctx is done. Tasks
// still running after that are abandoned and their events dropped.
func (r *Runner) Shutdown(ctx context.Context) {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	tasks := make([]*task, 0, len(r.current))
	for _, t := range r.current {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()

	for _, t := range tasks {
		t.requestCancel()
	}

	done := make(chan struct{})
	go func() { defer close(done); r.wg.Wait() }()

	select {
	case <-ctx.Done():
		for _, t := range tasks {
			t.abandoned.Store(true)
		}
		close(r.quit)
		r.logger.Warn("shutdown interrupted by context, abandoning tasks")
	case <-done:
		close(r.quit)
		close(r.events)
		r.logger.Info("all tasks stopped, shutdown complete")
	}
}

func (r *Runner) start(kind constants.TaskKind, body func(context.Context, *task)) (uuid.UUID, error) {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return uuid.Nil, ErrShuttingDown
	}
	prev := r.current[kind]
	r.mu.Unlock()

	if prev != nil && !prev.State().Terminal() {
		prev.requestCancel()
		select {
		case <-prev.done:
			r.logger.Debug("previous task stopped", "kind", kind, "task_id", prev.id)
		case <-time.After(r.stopTimeout):
			prev.abandoned.Store(true)
			r.logger.Warn("previous task did not stop in time, abandoning it",
				"kind", kind, "task_id", prev.id, "timeout", r.stopTimeout)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := newTask(kind, cancel)
	r.mu.Lock()
	r.current[kind] = t
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(t.done)
		defer cancel()
		r.execute(ctx, t, body)
	}()
	r.logger.Info("task started", "kind", kind, "task_id", t.id)
	return t.id, nil
}

// execute runs body and converts a panic into a Failed transition.
func (r *Runner) execute(ctx context.Context, t *task, body func(context.Context, *task)) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("task panicked", "kind", t.kind, "task_id", t.id, "panic", p)
			r.finish(t, constants.TaskFailed, fmt.Sprintf("%s error: %v", taskLabel(t.kind), p), fmt.Errorf("panic: %v", p))
		}
	}()
	r.transition(t, constants.TaskRunning, "", nil)
	body(ctx, t)
}

func (r *Runner) runLoad(ctx context.Context, t *task, folder string) {
	r.progress(t, "Scanning folder: "+folder)
	pages, stats, err := r.loader.LoadFolder(ctx, folder, func(msg string) { r.progress(t, msg) })
	switch {
	case t.cancelled.Load() || errors.Is(err, common.ErrCancelled):
		r.finish(t, constants.TaskCancelled, "Loading cancelled.", nil)
	case errors.Is(err, ingest.ErrNoPDFFiles), errors.Is(err, ingest.ErrNoPages):
		r.finish(t, constants.TaskFailed, err.Error(), err)
	case err != nil:
		r.finish(t, constants.TaskFailed, "Error loading PDFs: "+err.Error(), err)
	default:
		r.emit(t, Event{Type: EventPagesLoaded, Pages: pages, Stats: &stats})
		r.finish(t, constants.TaskCompleted, "", nil)
	}
}

func (r *Runner) runExport(ctx context.Context, t *task, jobs []entity.ExportJob) {
	started := time.Now()
	results, err := r.exporter.Run(ctx, jobs, func(msg string) { r.progress(t, msg) })

	var verr *export.ValidationError
	switch {
	case errors.Is(err, common.ErrCancelled):
		r.finish(t, constants.TaskCancelled, fmt.Sprintf("Export cancelled after %d of %d files.", len(results), len(jobs)), nil)
	case errors.As(err, &verr):
		r.finish(t, constants.TaskFailed, verr.Error(), err)
	case err != nil:
		r.finish(t, constants.TaskFailed, "Export error: "+err.Error(), err)
	default:
		run := entity.ExportRun{
			ID:         t.id,
			StartedAt:  started,
			FinishedAt: time.Now(),
			State:      string(constants.TaskCompleted),
			Results:    results,
		}
		r.emit(t, Event{Type: EventExportCompleted, Run: &run})
		r.finish(t, constants.TaskCompleted, "", nil)
	}
}

func (r *Runner) progress(t *task, msg string) {
	r.emit(t, Event{Type: EventProgress, Message: msg})
}

func (r *Runner) transition(t *task, state constants.TaskState, msg string, err error) {
	t.setState(state)
	r.emit(t, Event{Type: EventState, State: state, Message: msg, Err: err})
}

func (r *Runner) finish(t *task, state constants.TaskState, msg string, err error) {
	if t.State().Terminal() {
		return
	}
	r.transition(t, state, msg, err)
	level := slog.LevelInfo
	if state == constants.TaskFailed {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "task finished", "kind", t.kind, "task_id", t.id, "state", state, "message", msg)
}

// emit delivers ev unless the task was abandoned or the runner has quit.
func (r *Runner) emit(t *task, ev Event) {
	if t.abandoned.Load() {
		return
	}
	ev.TaskID = t.id
	ev.Kind = t.kind
	if ev.Type != EventState {
		ev.State = t.State()
	}
	select {
	case r.events <- ev:
	case <-r.quit:
	}
}

func taskLabel(kind constants.TaskKind) string {
	if kind == constants.TaskKindLoad {
		return "Load"
	}
	return "Export"
}

type task struct {
	id        uuid.UUID
	kind      constants.TaskKind
	cancel    context.CancelFunc
	cancelled atomic.Bool
	abandoned atomic.Bool
	state     atomic.Value // constants.TaskState
	done      chan struct{}
}

func newTask(kind constants.TaskKind, cancel context.CancelFunc) *task {
	t := &task{id: uuid.New(), kind: kind, cancel: cancel, done: make(chan struct{})}
	t.state.Store(constants.TaskIdle)
	return t
}

func (t *task) State() constants.TaskState {
	return t.state.Load().(constants.TaskState)
}

func (t *task) setState(s constants.TaskState) {
	t.state.Store(s)
}

func (t *task) requestCancel() {
	t.cancelled.Store(true)
	t.cancel()
}
