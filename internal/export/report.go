package export

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

const reportSheet = "Export"

// Reporter renders finished export runs as XLSX workbooks.
type Reporter struct {
	logger *slog.Logger
}

func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger}
}

// WorkbookBytes returns the XLSX workbook (as bytes) for run.
func (r *Reporter) WorkbookBytes(run entity.ExportRun) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("failed to close workbook", "error", err)
		}
	}()
	if index, _ := f.GetSheetIndex(reportSheet); index == -1 {
		if _, err := f.NewSheet(reportSheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(reportSheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"#",
		"Profile",
		"Source",
		"Pages",
		"Output Path",
		"Status",
		"Error",
		"Duration (ms)",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reportSheet, cell, h)
	}

	row := 2
	for i, res := range run.Results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(reportSheet, cell, v)
		}
		status := "OK"
		if !res.Success {
			status = "FAILED"
		}
		write(1, i+1)
		write(2, res.Job.ProfileName)
		write(3, strings.Join(res.Job.Sources(), "\n"))
		write(4, pageList(res.Job))
		write(5, res.Job.OutputPath)
		write(6, status)
		write(7, truncate(res.Error, 240))
		write(8, res.Duration.Milliseconds())
		row++
	}

	ok, failed := run.Tally()
	row++
	summary := fmt.Sprintf("Run %s: %d successful, %d failed", run.ID, ok, failed)
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetCellValue(reportSheet, cell, summary)

	// Widen a few columns
	_ = f.SetColWidth(reportSheet, "A", "A", 6)
	_ = f.SetColWidth(reportSheet, "B", "B", 22) // profile
	_ = f.SetColWidth(reportSheet, "C", "C", 48) // source
	_ = f.SetColWidth(reportSheet, "D", "D", 14) // pages
	_ = f.SetColWidth(reportSheet, "E", "E", 60) // output
	_ = f.SetColWidth(reportSheet, "F", "F", 10)
	_ = f.SetColWidth(reportSheet, "G", "G", 48)
	_ = f.SetColWidth(reportSheet, "H", "H", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	r.logger.Info("export.xlsx.ok",
		"run_id", run.ID.String(),
		"rows", len(run.Results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile stores the workbook for run at path.
func (r *Reporter) WriteFile(path string, run entity.ExportRun) error {
	data, err := r.WorkbookBytes(run)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// pageList renders 1-based page numbers, prefixed by the source name when the
// job spans several sources.
func pageList(job entity.ExportJob) string {
	multi := len(job.Sources()) > 1
	parts := make([]string, 0, len(job.Pages()))
	for _, p := range job.Pages() {
		n := strconv.Itoa(p.PageNumber + 1)
		if multi {
			n = p.SourceFilename() + ":" + n
		}
		parts = append(parts, n)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
