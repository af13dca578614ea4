package async

import (
	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/ingest"
)

// EventType tells the control loop what an Event carries.
type EventType string

const (
	// EventState reports a state transition; terminal ones carry the final message.
	EventState EventType = "state"
	// EventProgress is one status-log line.
	EventProgress EventType = "progress"
	// EventPagesLoaded carries the pages of a successful load.
	EventPagesLoaded EventType = "pages_loaded"
	// EventExportCompleted carries the results of a finished export.
	EventExportCompleted EventType = "export_completed"
)

type Event struct {
	TaskID  uuid.UUID
	Kind    constants.TaskKind
	Type    EventType
	State   constants.TaskState
	Message string
	Err     error

	Pages []entity.PageRecord
	Stats *ingest.DirStats
	Run   *entity.ExportRun
}

// Terminal reports whether the event ends its task.
func (e Event) Terminal() bool {
	return e.Type == EventState && e.State.Terminal()
}
