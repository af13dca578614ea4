package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/pdf-splitter/constants"
)

// IndexField is a single metadata field of an index profile.
type IndexField struct {
	Name        string              `json:"name"`
	Value       string              `json:"value"`
	Placeholder string              `json:"placeholder"`
	Required    bool                `json:"required"`
	FieldType   constants.FieldType `json:"field_type"`
	Options     []string            `json:"options"`
}

// Validate reports whether a required field carries a non-blank value.
func (f IndexField) Validate() error {
	if f.Required && strings.TrimSpace(f.Value) == "" {
		return fmt.Errorf("%s is required", f.Name)
	}
	return nil
}

func (f IndexField) clone() IndexField {
	out := f
	if f.Options != nil {
		out.Options = append([]string{}, f.Options...)
	}
	return out
}

func (f IndexField) MarshalJSON() ([]byte, error) {
	type alias IndexField
	a := alias(f)
	if a.Options == nil {
		a.Options = []string{}
	}
	if a.FieldType == "" {
		a.FieldType = constants.FieldText
	}
	return json.Marshal(a)
}

func (f *IndexField) UnmarshalJSON(b []byte) error {
	type alias IndexField
	a := alias{FieldType: constants.FieldText}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if a.Options == nil {
		a.Options = []string{}
	}
	*f = IndexField(a)
	return nil
}

// IndexProfile is a named template of fields plus an output path pattern.
type IndexProfile struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	OutputPattern string       `json:"output_pattern"`
	InputFolder   string       `json:"input_folder"`
	OutputFolder  string       `json:"output_folder"`
	Fields        []IndexField `json:"fields"`
}

func (p IndexProfile) MarshalJSON() ([]byte, error) {
	type alias IndexProfile
	a := alias(p)
	if a.Fields == nil {
		a.Fields = []IndexField{}
	}
	return json.Marshal(a)
}

// UnmarshalJSON applies the defaults for keys missing from older profile files.
func (p *IndexProfile) UnmarshalJSON(b []byte) error {
	type alias IndexProfile
	a := alias{OutputPattern: constants.DefaultOutputPattern}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if a.Fields == nil {
		a.Fields = []IndexField{}
	}
	*p = IndexProfile(a)
	return nil
}

// AddField appends a field.
func (p *IndexProfile) AddField(f IndexField) {
	p.Fields = append(p.Fields, f)
}

// RemoveField drops every field named name and reports whether any was removed.
func (p *IndexProfile) RemoveField(name string) bool {
	kept := p.Fields[:0]
	for _, f := range p.Fields {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	removed := len(kept) < len(p.Fields)
	p.Fields = kept
	return removed
}

// Field returns a pointer to the first field named name.
func (p *IndexProfile) Field(name string) (*IndexField, bool) {
	for i := range p.Fields {
		if p.Fields[i].Name == name {
			return &p.Fields[i], true
		}
	}
	return nil, false
}

// ValidateAll returns one message per required field lacking a value.
func (p IndexProfile) ValidateAll() []string {
	var errs []string
	for _, f := range p.Fields {
		if err := f.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// FieldValues maps field name to current value, in field order (later duplicates win).
func (p IndexProfile) FieldValues() map[string]string {
	out := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// Clone returns a deep copy that shares no slices with p.
func (p IndexProfile) Clone() IndexProfile {
	out := p
	if p.Fields != nil {
		out.Fields = make([]IndexField, len(p.Fields))
		for i, f := range p.Fields {
			out.Fields[i] = f.clone()
		}
	}
	return out
}

// Duplicate is a deep copy named "<name> (Copy)" without the folder bindings.
func (p IndexProfile) Duplicate() IndexProfile {
	out := p.Clone()
	out.Name = p.Name + " (Copy)"
	out.InputFolder = ""
	out.OutputFolder = ""
	return out
}
