package listing

import (
	"iter"
	"strings"

	"github.com/samber/lo"
)

// Totals are aggregate counts over a filtered listing, before pagination.
type Totals struct {
	Files int   `json:"files"`
	Dirs  int   `json:"dirs"`
	Size  int64 `json:"size"`
}

// Filter drops ignored artifacts and, optionally, dotfiles.
type Filter struct {
	Ignored      []string
	HideDotfiles bool
}

// Keep reports whether e survives the filter.
func (f Filter) Keep(e *Entry) bool {
	if lo.Contains(f.Ignored, e.Name) {
		return false
	}
	if f.HideDotfiles && strings.HasPrefix(e.Name, ".") {
		return false
	}
	return true
}

// Apply drains seq and returns the surviving entries plus their totals.
func (f Filter) Apply(seq iter.Seq[*Entry]) ([]*Entry, Totals) {
	var (
		out    []*Entry
		totals Totals
	)
	for e := range seq {
		if !f.Keep(e) {
			continue
		}
		// Enumerate already drops these.
		if !e.Readable() {
			continue
		}
		if e.IsDir() {
			totals.Dirs++
		} else {
			totals.Files++
		}
		totals.Size += e.Size()
		out = append(out, e)
	}
	return out, totals
}
