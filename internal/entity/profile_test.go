package entity

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/pdf-splitter/constants"
)

func TestIndexFieldValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   IndexField
		wantErr string
	}{
		{"optional blank", IndexField{Name: "Notes"}, ""},
		{"required with value", IndexField{Name: "Client", Required: true, Value: "Acme"}, ""},
		{"required blank", IndexField{Name: "Client", Required: true}, "Client is required"},
		{"required whitespace", IndexField{Name: "Client", Required: true, Value: "  \t"}, "Client is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestProfileValidateAll(t *testing.T) {
	p := IndexProfile{Fields: []IndexField{
		{Name: "A", Required: true},
		{Name: "B", Required: true, Value: "x"},
		{Name: "C", Required: true},
		{Name: "D"},
	}}
	want := []string{"A is required", "C is required"}
	if diff := cmp.Diff(want, p.ValidateAll()); diff != "" {
		t.Errorf("ValidateAll mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileMarshalDefaults(t *testing.T) {
	data, err := json.Marshal(IndexProfile{Name: "x", Fields: []IndexField{{Name: "f"}}})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	field := raw["fields"].([]any)[0].(map[string]any)
	if field["field_type"] != "text" {
		t.Errorf("field_type = %v, want text", field["field_type"])
	}
	if opts, ok := field["options"].([]any); !ok || len(opts) != 0 {
		t.Errorf("options = %v, want []", field["options"])
	}

	data, err = json.Marshal(IndexProfile{Name: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if fields, ok := raw["fields"].([]any); !ok || len(fields) != 0 {
		t.Errorf("fields = %v, want []", raw["fields"])
	}
}

func TestProfileUnmarshalMissingKeys(t *testing.T) {
	var p IndexProfile
	if err := json.Unmarshal([]byte(`{"name": "Bare"}`), &p); err != nil {
		t.Fatal(err)
	}
	want := IndexProfile{Name: "Bare", OutputPattern: constants.DefaultOutputPattern, Fields: []IndexField{}}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileFieldEditing(t *testing.T) {
	p := IndexProfile{Name: "p"}
	p.AddField(IndexField{Name: "A", Value: "1"})
	p.AddField(IndexField{Name: "B", Value: "2"})
	p.AddField(IndexField{Name: "A", Value: "3"})

	if f, ok := p.Field("A"); !ok || f.Value != "1" {
		t.Fatalf("Field(A) = %+v, %v; want first match", f, ok)
	}
	f, _ := p.Field("B")
	f.Value = "changed"
	if p.Fields[1].Value != "changed" {
		t.Error("Field did not return a pointer into the profile")
	}

	if !p.RemoveField("A") {
		t.Fatal("RemoveField(A) = false")
	}
	if p.RemoveField("A") {
		t.Error("second RemoveField(A) = true")
	}
	if len(p.Fields) != 1 || p.Fields[0].Name != "B" {
		t.Errorf("fields after remove = %+v", p.Fields)
	}
}

func TestProfileCloneAndDuplicate(t *testing.T) {
	p := IndexProfile{
		Name:         "Inv",
		InputFolder:  "/in",
		OutputFolder: "/out",
		Fields:       []IndexField{{Name: "Kind", Options: []string{"a", "b"}}},
	}
	c := p.Clone()
	c.Fields[0].Options[0] = "z"
	c.Fields[0].Value = "v"
	if p.Fields[0].Options[0] != "a" || p.Fields[0].Value != "" {
		t.Error("Clone shares state with the original")
	}

	d := p.Duplicate()
	if d.Name != "Inv (Copy)" || d.InputFolder != "" || d.OutputFolder != "" {
		t.Errorf("Duplicate = %+v", d)
	}
	if diff := cmp.Diff(p.Fields, d.Fields); diff != "" {
		t.Errorf("Duplicate fields mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldValuesLaterDuplicateWins(t *testing.T) {
	p := IndexProfile{Fields: []IndexField{{Name: "a", Value: "1"}, {Name: "a", Value: "2"}, {Name: "b", Value: "3"}}}
	want := map[string]string{"a": "2", "b": "3"}
	if diff := cmp.Diff(want, p.FieldValues()); diff != "" {
		t.Errorf("FieldValues mismatch (-want +got):\n%s", diff)
	}
}

func TestPageRecordHelpers(t *testing.T) {
	name := "Inv"
	p := PageRecord{SourcePath: "/in/scan.pdf", PageNumber: 2, AssignedProfile: &name, FieldValues: map[string]string{"k": "v"}}
	if got := p.DisplayName(); got != "Page 3 - scan.pdf" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := p.Key().String(); got != "/in/scan.pdf#3" {
		t.Errorf("Key = %q", got)
	}
	c := p.Clone()
	*c.AssignedProfile = "Other"
	c.FieldValues["k"] = "changed"
	if p.ProfileName() != "Inv" || p.FieldValues["k"] != "v" {
		t.Error("Clone shares state with the original")
	}
	if (PageRecord{}).ProfileName() != "" || (PageRecord{}).IsAssigned() {
		t.Error("zero record reports an assignment")
	}
}

func TestExportJobPagesAndSources(t *testing.T) {
	single := ExportJob{SourcePath: "/a.pdf", PageNumber: 4}
	if pages := single.Pages(); len(pages) != 1 || pages[0].PageNumber != 4 {
		t.Errorf("single Pages = %+v", pages)
	}
	group := ExportJob{SourcePath: BatchSource, PagesGroup: []PageRecord{
		{SourcePath: "/b.pdf"}, {SourcePath: "/a.pdf"}, {SourcePath: "/b.pdf", PageNumber: 1},
	}}
	if diff := cmp.Diff([]string{"/b.pdf", "/a.pdf"}, group.Sources()); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
}
