package export

import (
	"fmt"
	"path/filepath"

	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

// Preview lists the files an export will create, grouped by output folder.
type Preview struct {
	// Folders are in first-seen order.
	Folders    []string
	Files      map[string][]string
	TotalFiles int
	TotalPages int
}

func BuildPreview(jobs []entity.ExportJob) Preview {
	p := Preview{Files: make(map[string][]string)}
	for _, job := range jobs {
		dir := filepath.Dir(job.OutputPath)
		if _, ok := p.Files[dir]; !ok {
			p.Folders = append(p.Folders, dir)
		}
		p.Files[dir] = append(p.Files[dir], filepath.Base(job.OutputPath))
		p.TotalFiles++
		p.TotalPages += len(job.Pages())
	}
	return p
}

// Summary renders e.g. "Will create 3 files in 2 folders".
func (p Preview) Summary() string {
	return fmt.Sprintf("Will create %d files in %d folders", p.TotalFiles, len(p.Folders))
}
