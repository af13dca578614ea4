package entity

import (
	"fmt"
	"path/filepath"
)

// PageRecord is one page of one source PDF.
type PageRecord struct {
	SourcePath string `json:"source_path"`
	// PageNumber is 0-based.
	PageNumber int  `json:"page_number"`
	Selected   bool `json:"selected"`
	// AssignedProfile references a profile by name; it may be stale.
	AssignedProfile *string `json:"assigned_profile,omitempty"`
	BatchID         *string `json:"batch_id,omitempty"`
	// FieldValues override the assigned profile's field values for this page only.
	FieldValues map[string]string `json:"field_values,omitempty"`
}

// PageKey identifies a page independently of its selection state.
type PageKey struct {
	SourcePath string
	PageNumber int
}

func (k PageKey) String() string {
	return fmt.Sprintf("%s#%d", k.SourcePath, k.PageNumber+1)
}

func (p PageRecord) Key() PageKey {
	return PageKey{SourcePath: p.SourcePath, PageNumber: p.PageNumber}
}

// SourceFilename is the base name of the source PDF.
func (p PageRecord) SourceFilename() string {
	return filepath.Base(p.SourcePath)
}

// DisplayName renders the page 1-based, e.g. "Page 3 - scan.pdf".
func (p PageRecord) DisplayName() string {
	return fmt.Sprintf("Page %d - %s", p.PageNumber+1, p.SourceFilename())
}

// IsAssigned reports whether the page carries a profile name.
func (p PageRecord) IsAssigned() bool {
	return p.AssignedProfile != nil
}

// ProfileName returns the assigned profile name or "".
func (p PageRecord) ProfileName() string {
	if p.AssignedProfile == nil {
		return ""
	}
	return *p.AssignedProfile
}

// Clone copies the record including its pointer and map fields.
func (p PageRecord) Clone() PageRecord {
	out := p
	if p.AssignedProfile != nil {
		s := *p.AssignedProfile
		out.AssignedProfile = &s
	}
	if p.BatchID != nil {
		s := *p.BatchID
		out.BatchID = &s
	}
	if p.FieldValues != nil {
		out.FieldValues = make(map[string]string, len(p.FieldValues))
		for k, v := range p.FieldValues {
			out.FieldValues[k] = v
		}
	}
	return out
}
