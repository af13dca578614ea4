package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

// ValidationError carries every problem found before an export starts.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "Export validation failed:\n" + strings.Join(e.Problems, "\n")
}

func (e *ValidationError) Unwrap() error { return common.ErrValidation }

// ValidateJobs checks every job before any output is written: each source must
// exist and each output directory must be creatable and writable. Output
// directories are created as a side effect. Problems are numbered 1-based.
func ValidateJobs(jobs []entity.ExportJob) []string {
	var problems []string
	probed := make(map[string]error)
	for i, job := range jobs {
		n := i + 1
		for _, src := range job.Sources() {
			if _, err := os.Stat(src); err != nil {
				problems = append(problems, fmt.Sprintf("Job %d: Source file not found: %s", n, src))
			}
		}

		dir := filepath.Dir(job.OutputPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			problems = append(problems, fmt.Sprintf("Job %d: Cannot create output directory: %v", n, err))
			continue
		}
		err, seen := probed[dir]
		if !seen {
			err = probeWritable(dir)
			probed[dir] = err
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("Job %d: Output directory is not writable: %s", n, dir))
		}
	}
	return problems
}

// Validate is ValidateJobs as an error.
func Validate(jobs []entity.ExportJob) error {
	if problems := ValidateJobs(jobs); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".pdfsplit-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	return errors.Join(f.Close(), os.Remove(name))
}
