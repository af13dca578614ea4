package constants

import "strings"

// FieldType is the input kind of an index field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldDropdown FieldType = "dropdown"
)

var allFieldTypes = []FieldType{FieldText, FieldDate, FieldNumber, FieldDropdown}

// FieldTypesAsStrings lists the known field types in declaration order.
func FieldTypesAsStrings() []string {
	out := make([]string, len(allFieldTypes))
	for i, ft := range allFieldTypes {
		out[i] = string(ft)
	}
	return out
}

// ParseFieldType maps user input to a FieldType; unknown or blank input yields FieldText, false.
func ParseFieldType(s string) (FieldType, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == "" {
		return FieldText, true
	}
	for _, ft := range allFieldTypes {
		if n == string(ft) {
			return ft, true
		}
	}
	return FieldText, false
}

// Default path template tokens.
const (
	DefaultOutputPattern = "{folder_name}/{file_name}"
	DefaultFolderName    = "extracted"
	DefaultFileName      = "document"
	UnknownFieldValue    = "unknown"
)
