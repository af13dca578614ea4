package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListPDFs returns the PDF files directly inside dir, sorted by path. Hidden
// files and subdirectories are skipped.
func ListPDFs(dir string) ([]string, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(dir) == "" {
		return nil, stats, errors.New("folder is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, stats, fmt.Errorf("read folder: %w", err)
	}

	var out []string
	for _, e := range entries {
		stats.Scanned++
		if e.IsDir() {
			continue
		}
		if IsHidden(e.Name()) {
			stats.Hidden++
			continue
		}
		if !AllowedExt(filepath.Ext(e.Name())) {
			continue
		}
		stats.Matched++
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, stats, nil
}
