// Package export plans and executes the writing of assigned pages into output PDFs.
package export

import (
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/pathtemplate"
)

// Resolver turns a pattern and field values into a path below baseDir.
type Resolver func(pattern string, fields map[string]string, baseDir string) string

// ProfileLookup resolves a profile name; stale names report false.
type ProfileLookup func(name string) (entity.IndexProfile, bool)

type group struct {
	path    string
	profile string
	pages   []entity.PageRecord
}

// BuildJobs plans one ExportJob per distinct output file.
//
// Pages without a profile are ignored and pages whose profile no longer exists
// are skipped. Pages resolving to the same path, or sharing a batch id and a
// profile, are merged into one job in catalog order. Output paths are made
// unique against exists and against the paths claimed earlier in the same
// plan. A nil resolve or exists selects the default implementation.
func BuildJobs(
	pages []entity.PageRecord,
	resolve Resolver,
	lookup ProfileLookup,
	fallbackOutputDir string,
	exists func(string) bool,
	logger *slog.Logger,
) ([]entity.ExportJob, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if resolve == nil {
		resolve = pathtemplate.Resolve
	}
	if exists == nil {
		exists = pathtemplate.FileExists
	}

	var (
		groups []*group
		byKey  = make(map[string]*group)
		stale  = make(map[string]struct{})
	)
	for _, page := range pages {
		if !page.IsAssigned() {
			continue
		}
		name := page.ProfileName()
		profile, ok := lookup(name)
		if !ok {
			if _, logged := stale[name]; !logged {
				stale[name] = struct{}{}
				logger.Warn("skipping pages of missing profile", "profile", name)
			}
			continue
		}
		base := profile.OutputFolder
		if base == "" {
			base = fallbackOutputDir
		}
		if base == "" {
			return nil, common.NewAppError(common.CodeValidation, "plan export", common.ErrNoOutputFolder)
		}

		path := outputPath(resolve, profile, page, base)
		key := "path:" + path
		if page.BatchID != nil {
			key = "batch:" + name + "\x00" + *page.BatchID
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{path: path, profile: name}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.pages = append(g.pages, page.Clone())
	}

	if len(groups) == 0 {
		return nil, common.ErrNothingToExport
	}

	claimed := make(map[string]struct{}, len(groups))
	taken := func(p string) bool {
		if _, ok := claimed[p]; ok {
			return true
		}
		return exists(p)
	}
	jobs := make([]entity.ExportJob, 0, len(groups))
	for _, g := range groups {
		final := pathtemplate.EnsureUnique(g.path, taken)
		claimed[final] = struct{}{}
		jobs = append(jobs, newJob(g, final))
	}
	logger.Info("export planned", "pages", countPages(jobs), "jobs", len(jobs))
	return jobs, nil
}

func outputPath(resolve Resolver, profile entity.IndexProfile, page entity.PageRecord, base string) string {
	fields := profile.FieldValues()
	for k, v := range page.FieldValues {
		fields[k] = v
	}
	resolved := resolve(profile.OutputPattern, fields, base)
	return pathtemplate.EnsurePDFExt(pathtemplate.SanitizePath(filepath.Clean(resolved)))
}

func newJob(g *group, out string) entity.ExportJob {
	first := g.pages[0]
	job := entity.ExportJob{
		SourcePath:  first.SourcePath,
		PageNumber:  first.PageNumber,
		OutputPath:  out,
		ProfileName: g.profile,
	}
	if len(g.pages) > 1 {
		job.PagesGroup = g.pages
		if len(job.Sources()) > 1 {
			job.SourcePath = entity.BatchSource
		}
	}
	return job
}

func countPages(jobs []entity.ExportJob) int {
	n := 0
	for _, j := range jobs {
		n += len(j.Pages())
	}
	return n
}
