package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-splitter/constants"
)

// AllowedExt checks if a file extension is a source extension (case-insensitive).
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// IsProcessed reports whether the source already carries the done- prefix.
func IsProcessed(path string) bool {
	return strings.HasPrefix(filepath.Base(path), constants.DoneSourcePrefix)
}
