package catalog

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pages(src string, n int) []entity.PageRecord {
	out := make([]entity.PageRecord, n)
	for i := range out {
		out[i] = entity.PageRecord{SourcePath: src, PageNumber: i}
	}
	return out
}

func key(src string, page int) entity.PageKey {
	return entity.PageKey{SourcePath: src, PageNumber: page}
}

func keys(ps []entity.PageRecord) []entity.PageKey {
	out := make([]entity.PageKey, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	return out
}

func TestAssignCountsSelectedAndClearsSelection(t *testing.T) {
	c := New(nil, quietLogger())
	c.Load(pages("/in/a.pdf", 4))
	c.Select(key("/in/a.pdf", 0), key("/in/a.pdf", 2))

	if got := c.AssignProfileToSelected("Inv"); got != 2 {
		t.Fatalf("assigned %d, want 2", got)
	}
	if len(c.Selected()) != 0 {
		t.Error("selection not cleared")
	}
	if got := len(c.Assigned()); got != 2 {
		t.Errorf("assigned pages = %d, want 2", got)
	}

	// Nothing selected: repeated calls assign nothing and leave state intact.
	if got := c.AssignProfileToSelected("Inv"); got != 0 {
		t.Errorf("second call assigned %d, want 0", got)
	}
	if got := len(c.Assigned()); got != 2 {
		t.Errorf("assigned pages after repeat = %d, want 2", got)
	}
}

func TestAssignedPagesAreUnselectable(t *testing.T) {
	c := New(nil, quietLogger())
	c.Load(pages("/in/a.pdf", 2))
	c.Select(key("/in/a.pdf", 0))
	c.AssignProfileToSelected("Inv")

	if c.Select(key("/in/a.pdf", 0)) != 0 {
		t.Error("assigned page was selected")
	}
	if c.SelectAll() != 1 {
		t.Error("SelectAll touched an assigned page")
	}

	c.Unassign(key("/in/a.pdf", 0))
	if c.Select(key("/in/a.pdf", 0)) != 1 {
		t.Error("unassigned page could not be selected")
	}
}

func TestSourceCompletionAcrossCalls(t *testing.T) {
	var completed []string
	c := New(func(src string) string {
		completed = append(completed, src)
		return src
	}, quietLogger())
	c.Load(append(pages("/in/a.pdf", 2), pages("/in/b.pdf", 1)...))

	c.Select(key("/in/a.pdf", 0))
	c.AssignProfileToSelected("Inv")
	if len(completed) != 0 {
		t.Fatalf("completed early: %v", completed)
	}

	c.Select(key("/in/a.pdf", 1), key("/in/b.pdf", 0))
	c.AssignProfileToSelected("Inv")
	if diff := cmp.Diff([]string{"/in/a.pdf", "/in/b.pdf"}, completed); diff != "" {
		t.Errorf("completed sources mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceCompletionRenamesRecords(t *testing.T) {
	c := New(func(src string) string { return "/in/done-a.pdf" }, quietLogger())
	c.Load(pages("/in/a.pdf", 2))
	c.SelectAll()
	c.AssignProfileToSelected("Inv")

	for _, p := range c.All() {
		if p.SourcePath != "/in/done-a.pdf" {
			t.Errorf("page %d source = %q", p.PageNumber, p.SourcePath)
		}
	}
}

func TestFilterNeverChangesSelection(t *testing.T) {
	c := New(nil, quietLogger())
	c.Load(append(pages("/in/invoice.pdf", 2), pages("/in/letter.pdf", 12)...))
	c.Select(key("/in/invoice.pdf", 0), key("/in/letter.pdf", 0))

	if got := c.Filter("  INVOICE "); got != 2 {
		t.Errorf("filter by name shows %d, want 2", got)
	}
	if got := len(c.Selected()); got != 2 {
		t.Errorf("hidden page lost its selection: %d selected", got)
	}
	if got := c.Counts().String(); got != "1 of 2 pages selected" {
		t.Errorf("Counts = %q", got)
	}

	// Page numbers are 1-based: "12" matches only letter.pdf page index 11.
	if got := c.Filter("12"); got != 1 {
		t.Errorf("filter by page number shows %d, want 1", got)
	}
	if got := c.Filter(""); got != 14 {
		t.Errorf("blank filter shows %d, want 14", got)
	}
}

func TestFilterMatchesProfile(t *testing.T) {
	c := New(nil, quietLogger())
	c.Load(pages("/in/a.pdf", 3))
	c.Select(key("/in/a.pdf", 1))
	c.AssignProfileToSelected("Invoice Processing")

	if got := c.Filter("processing"); got != 1 {
		t.Errorf("filter by profile shows %d, want 1", got)
	}
}

func TestSelectAllAndInvertOnlyTouchVisible(t *testing.T) {
	c := New(nil, quietLogger())
	c.Load(append(pages("/in/a.pdf", 2), pages("/in/b.pdf", 2)...))
	c.Select(key("/in/b.pdf", 0))

	c.Filter("a.pdf")
	if got := c.SelectAll(); got != 2 {
		t.Errorf("SelectAll changed %d, want 2", got)
	}
	c.InvertSelection()

	want := []entity.PageKey{key("/in/b.pdf", 0)}
	if diff := cmp.Diff(want, keys(c.Selected())); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}

	c.ClearSelection()
	if len(c.Selected()) != 0 {
		t.Error("ClearSelection left hidden pages selected")
	}
}

func TestSetBatchAndFieldValues(t *testing.T) {
	c := New(nil, quietLogger())
	c.Load(pages("/in/a.pdf", 3))

	if n := c.SetBatch([]entity.PageKey{key("/in/a.pdf", 0), key("/in/a.pdf", 2), key("/in/x.pdf", 0)}, "b1"); n != 2 {
		t.Errorf("SetBatch = %d, want 2", n)
	}
	p, _ := c.Page(key("/in/a.pdf", 2))
	if p.BatchID == nil || *p.BatchID != "b1" {
		t.Errorf("batch not set: %+v", p)
	}
	c.SetBatch([]entity.PageKey{key("/in/a.pdf", 2)}, "")
	p, _ = c.Page(key("/in/a.pdf", 2))
	if p.BatchID != nil {
		t.Error("batch not cleared")
	}

	values := map[string]string{"Vendor": "Acme"}
	if !c.SetFieldValues(key("/in/a.pdf", 1), values) {
		t.Fatal("SetFieldValues failed")
	}
	values["Vendor"] = "mutated"
	p, _ = c.Page(key("/in/a.pdf", 1))
	if p.FieldValues["Vendor"] != "Acme" {
		t.Error("catalog shares the caller's map")
	}
}

func TestClearAndAdd(t *testing.T) {
	c := New(nil, quietLogger())
	c.Load(pages("/in/a.pdf", 3))
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("Clear left pages")
	}
	c.Add(entity.PageRecord{SourcePath: "/in/b.pdf"})
	if got := c.Counts(); got.Total != 1 || got.Visible != 1 {
		t.Errorf("Counts = %+v", got)
	}
}

func TestLoadCopiesInput(t *testing.T) {
	in := pages("/in/a.pdf", 1)
	c := New(nil, quietLogger())
	c.Load(in)
	in[0].SourcePath = "/elsewhere.pdf"
	if c.All()[0].SourcePath != "/in/a.pdf" {
		t.Error("catalog aliases the loaded slice")
	}
}
