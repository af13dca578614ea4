// Package catalog holds the in-memory list of loaded pages with their selection
// and profile assignment state. A Catalog is owned by a single goroutine.
package catalog

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

// SourceCompleter is invoked once per source whose pages are all assigned.
// It returns the path the source now lives at (the same path if nothing moved).
type SourceCompleter func(sourcePath string) string

// Counts summarizes the catalog for status display.
type Counts struct {
	Total           int
	Visible         int
	Selected        int
	SelectedVisible int
	Assigned        int
}

// String renders the selection label, e.g. "2 of 10 pages selected".
func (c Counts) String() string {
	return fmt.Sprintf("%d of %d pages selected", c.SelectedVisible, c.Visible)
}

type Catalog struct {
	pages     []entity.PageRecord
	filter    string
	completer SourceCompleter
	logger    *slog.Logger
}

// New returns an empty catalog. completer may be nil.
func New(completer SourceCompleter, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{completer: completer, logger: logger}
}

// Load replaces the catalog contents with copies of pages.
func (c *Catalog) Load(pages []entity.PageRecord) {
	c.pages = make([]entity.PageRecord, 0, len(pages))
	for _, p := range pages {
		c.pages = append(c.pages, p.Clone())
	}
	c.logger.Debug("catalog loaded", "pages", len(c.pages))
}

// Clear drops every page. The filter text is kept.
func (c *Catalog) Clear() {
	c.pages = nil
}

// Add appends one page.
func (c *Catalog) Add(page entity.PageRecord) {
	c.pages = append(c.pages, page.Clone())
}

// Len is the number of pages, visible or not.
func (c *Catalog) Len() int { return len(c.pages) }

// All returns copies of every page in catalog order.
func (c *Catalog) All() []entity.PageRecord {
	return c.collect(func(entity.PageRecord) bool { return true })
}

// Selected returns copies of the selected pages, hidden ones included.
func (c *Catalog) Selected() []entity.PageRecord {
	return c.collect(func(p entity.PageRecord) bool { return p.Selected })
}

// Assigned returns copies of the pages carrying a profile.
func (c *Catalog) Assigned() []entity.PageRecord {
	return c.collect(func(p entity.PageRecord) bool { return p.IsAssigned() })
}

// Visible returns copies of the pages matching the current filter.
func (c *Catalog) Visible() []entity.PageRecord {
	return c.collect(c.visible)
}

// Page returns a copy of the page identified by key.
func (c *Catalog) Page(key entity.PageKey) (entity.PageRecord, bool) {
	if i, ok := c.index(key); ok {
		return c.pages[i].Clone(), true
	}
	return entity.PageRecord{}, false
}

// Filter sets the visibility filter and returns the number of visible pages.
// Matching is case-insensitive against the source file name, the 1-based page
// number and the assigned profile name. Blank text shows everything.
// Selection flags are untouched.
func (c *Catalog) Filter(text string) int {
	c.filter = strings.ToLower(strings.TrimSpace(text))
	return len(c.Visible())
}

// FilterText is the normalized current filter.
func (c *Catalog) FilterText() string { return c.filter }

// Select marks the pages identified by keys as selected. Assigned pages are
// skipped. It returns the number of pages newly selected.
func (c *Catalog) Select(keys ...entity.PageKey) int {
	n := 0
	for _, k := range keys {
		if i, ok := c.index(k); ok && c.SetSelected(i, true) {
			n++
		}
	}
	return n
}

// SetSelected changes the selection flag of the page at index i and reports
// whether it changed. Assigned pages cannot be selected.
func (c *Catalog) SetSelected(i int, selected bool) bool {
	if i < 0 || i >= len(c.pages) {
		return false
	}
	p := &c.pages[i]
	if selected && p.IsAssigned() {
		return false
	}
	if p.Selected == selected {
		return false
	}
	p.Selected = selected
	return true
}

// SelectAll selects every visible page and returns how many changed.
func (c *Catalog) SelectAll() int {
	n := 0
	for i := range c.pages {
		if c.visible(c.pages[i]) && c.SetSelected(i, true) {
			n++
		}
	}
	return n
}

// ClearSelection deselects every page, hidden ones included.
func (c *Catalog) ClearSelection() {
	for i := range c.pages {
		c.pages[i].Selected = false
	}
}

// InvertSelection flips the selection of every visible page.
func (c *Catalog) InvertSelection() {
	for i := range c.pages {
		if c.visible(c.pages[i]) {
			c.SetSelected(i, !c.pages[i].Selected)
		}
	}
}

// AssignProfileToSelected assigns name to every selected page and clears
// their selection. It returns the number of pages assigned. Afterwards each
// source touched by this call whose pages are now all assigned, counting pages
// assigned by earlier calls, is handed to the completer once.
func (c *Catalog) AssignProfileToSelected(name string) int {
	count := 0
	var touched []string
	seen := make(map[string]struct{})
	for i := range c.pages {
		p := &c.pages[i]
		if !p.Selected {
			continue
		}
		profile := name
		p.AssignedProfile = &profile
		p.Selected = false
		count++
		if _, ok := seen[p.SourcePath]; !ok {
			seen[p.SourcePath] = struct{}{}
			touched = append(touched, p.SourcePath)
		}
	}

	for _, src := range touched {
		if !c.sourceComplete(src) {
			continue
		}
		c.logger.Debug("all pages of source assigned", "source", src)
		if c.completer == nil {
			continue
		}
		if moved := c.completer(src); moved != "" && moved != src {
			c.RenameSource(src, moved)
		}
	}
	c.logger.Info("profile assigned", "profile", name, "pages", count)
	return count
}

// Unassign clears the profile of the pages identified by keys and returns how
// many changed.
func (c *Catalog) Unassign(keys ...entity.PageKey) int {
	n := 0
	for _, k := range keys {
		if i, ok := c.index(k); ok && c.pages[i].IsAssigned() {
			c.pages[i].AssignedProfile = nil
			n++
		}
	}
	return n
}

// SetBatch stamps batchID on the pages identified by keys. An empty batchID
// removes the grouping.
func (c *Catalog) SetBatch(keys []entity.PageKey, batchID string) int {
	n := 0
	for _, k := range keys {
		i, ok := c.index(k)
		if !ok {
			continue
		}
		if batchID == "" {
			c.pages[i].BatchID = nil
		} else {
			id := batchID
			c.pages[i].BatchID = &id
		}
		n++
	}
	return n
}

// SetFieldValues stores per-page overrides of profile field values. A nil map
// removes them.
func (c *Catalog) SetFieldValues(key entity.PageKey, values map[string]string) bool {
	i, ok := c.index(key)
	if !ok {
		return false
	}
	if values == nil {
		c.pages[i].FieldValues = nil
		return true
	}
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	c.pages[i].FieldValues = cp
	return true
}

// RenameSource points every page of oldPath at newPath.
func (c *Catalog) RenameSource(oldPath, newPath string) int {
	n := 0
	for i := range c.pages {
		if c.pages[i].SourcePath == oldPath {
			c.pages[i].SourcePath = newPath
			n++
		}
	}
	if n > 0 {
		c.logger.Debug("source renamed in catalog", "old", oldPath, "new", newPath, "pages", n)
	}
	return n
}

// Counts returns the current totals.
func (c *Catalog) Counts() Counts {
	var out Counts
	out.Total = len(c.pages)
	for _, p := range c.pages {
		vis := c.visible(p)
		if vis {
			out.Visible++
		}
		if p.Selected {
			out.Selected++
			if vis {
				out.SelectedVisible++
			}
		}
		if p.IsAssigned() {
			out.Assigned++
		}
	}
	return out
}

func (c *Catalog) sourceComplete(src string) bool {
	for _, p := range c.pages {
		if p.SourcePath == src && !p.IsAssigned() {
			return false
		}
	}
	return true
}

func (c *Catalog) visible(p entity.PageRecord) bool {
	if c.filter == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.SourceFilename()), c.filter) {
		return true
	}
	if strings.Contains(strconv.Itoa(p.PageNumber+1), c.filter) {
		return true
	}
	return p.IsAssigned() && strings.Contains(strings.ToLower(p.ProfileName()), c.filter)
}

func (c *Catalog) index(key entity.PageKey) (int, bool) {
	for i := range c.pages {
		if c.pages[i].Key() == key {
			return i, true
		}
	}
	return 0, false
}

func (c *Catalog) collect(keep func(entity.PageRecord) bool) []entity.PageRecord {
	out := make([]entity.PageRecord, 0, len(c.pages))
	for _, p := range c.pages {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}
