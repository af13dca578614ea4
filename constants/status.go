package constants

// TaskState is the lifecycle state of a background load or export task.
type TaskState string

const (
	TaskIdle      TaskState = "IDLE"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED" // terminal
	TaskFailed    TaskState = "FAILED"    // terminal
	TaskCancelled TaskState = "CANCELLED" // terminal
)

// Terminal reports whether no further transitions are possible.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskKind distinguishes the two kinds of background work.
type TaskKind string

const (
	TaskKindLoad   TaskKind = "load"
	TaskKindExport TaskKind = "export"
)
