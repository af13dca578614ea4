package constants

import "strings"

// AllowedExtensions holds the extensions picked up when scanning a source folder.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// DoneSourcePrefix marks a source PDF whose pages have all been assigned a profile.
const DoneSourcePrefix = "done-"

// PDFExt is appended to resolved output paths that lack it.
const PDFExt = ".pdf"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without the dot) is a source extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
