package entity

import (
	"time"

	"github.com/google/uuid"
)

// BatchSource is the ExportJob source when the group spans several source files.
const BatchSource = "<batch>"

// ExportJob writes one output PDF from one or more pages.
type ExportJob struct {
	SourcePath  string       `json:"source_path"`
	PageNumber  int          `json:"page_number"`
	OutputPath  string       `json:"output_path"`
	ProfileName string       `json:"profile_name"`
	PagesGroup  []PageRecord `json:"pages_group,omitempty"`
}

// Pages returns the ordered pages written by the job. A job without a group
// writes its own single page.
func (j ExportJob) Pages() []PageRecord {
	if len(j.PagesGroup) > 0 {
		return j.PagesGroup
	}
	return []PageRecord{{SourcePath: j.SourcePath, PageNumber: j.PageNumber}}
}

// Sources lists the distinct source paths of the job in first-seen order.
func (j ExportJob) Sources() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range j.Pages() {
		if _, ok := seen[p.SourcePath]; ok {
			continue
		}
		seen[p.SourcePath] = struct{}{}
		out = append(out, p.SourcePath)
	}
	return out
}

// ExportResult is the outcome of running one ExportJob.
type ExportResult struct {
	Job      ExportJob     `json:"job"`
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExportRun summarizes one export task.
type ExportRun struct {
	ID         uuid.UUID      `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	State      string         `json:"state"`
	Results    []ExportResult `json:"results"`
}

// Tally counts successful and failed results.
func (r ExportRun) Tally() (succeeded, failed int) {
	for _, res := range r.Results {
		if res.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
