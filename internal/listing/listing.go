package listing

import (
	"github.com/sirupsen/logrus"
)

// Options are the per-request listing parameters, already validated.
type Options struct {
	Recursive    bool
	HideDotfiles bool
	Sort         SortKey
	Page         int
	PageSize     int
}

// Result is one page of a listing plus totals over every filtered entry.
type Result struct {
	Entries  []*Entry
	Totals   Totals
	Matched  int
	Page     int
	PageSize int
	Pages    int
}

// Lister runs enumerate -> filter -> sort -> paginate.
type Lister struct {
	Ignored    []string
	NoSymlinks bool
	// Contains confines followed links to the root; see EnumerateOptions.
	Contains func(abs string) bool
	Log      *logrus.Entry
}

// List builds one page of the listing of dir. urlBase is the request path of
// dir and prefixes every entry's URLPath.
func (l *Lister) List(dir, urlBase string, opts Options) (Result, error) {
	mode := Shallow
	if opts.Recursive {
		mode = Recursive
	}
	seq, err := Enumerate(dir, EnumerateOptions{
		Mode:       mode,
		URLBase:    urlBase,
		NoSymlinks: l.NoSymlinks,
		Contains:   l.Contains,
		Log:        l.Log,
	})
	if err != nil {
		return Result{}, err
	}

	f := Filter{Ignored: l.Ignored, HideDotfiles: opts.HideDotfiles}
	entries, totals := f.Apply(seq)
	entries = Sort(entries, opts.Sort)

	return Result{
		Entries:  Paginate(entries, opts.Page, opts.PageSize),
		Totals:   totals,
		Matched:  len(entries),
		Page:     opts.Page,
		PageSize: opts.PageSize,
		Pages:    PageCount(len(entries), opts.PageSize),
	}, nil
}
