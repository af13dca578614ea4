package pathtemplate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/pdf-splitter/constants"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

const maxFilenameLen = 100

// SanitizeFilename makes a single path component safe on Windows and Unix.
func SanitizeFilename(name string) string {
	s := invalidFilenameChars.ReplaceAllString(name, "_")
	s = strings.Trim(s, ". ")
	if s == "" {
		s = "untitled"
	}
	if r := []rune(s); len(r) > maxFilenameLen {
		s = string(r[:maxFilenameLen])
	}
	return s
}

// SanitizePath sanitizes the final component of path and leaves its directory alone.
func SanitizePath(path string) string {
	dir, file := filepath.Split(path)
	return filepath.Join(dir, SanitizeFilename(file))
}

// EnsurePDFExt appends ".pdf" unless path already ends with it (case-insensitive).
func EnsurePDFExt(path string) string {
	if strings.EqualFold(filepath.Ext(path), constants.PDFExt) {
		return path
	}
	return path + constants.PDFExt
}

// EnsureUnique returns path, or the first "stem_N.ext" (N = 1, 2, ...) for which
// taken reports false.
func EnsureUnique(path string, taken func(string) bool) string {
	if !taken(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !taken(candidate) {
			return candidate
		}
	}
}

// FileExists is the filesystem check used with EnsureUnique.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
