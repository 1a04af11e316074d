package listing

import (
	"cmp"
	"slices"
	"strings"

	"github.com/go-errors/errors"
)

var ErrInvalidSortKey = errors.New("invalid sort key")

// SortField is one of the sortable entry attributes.
type SortField int

const (
	SortNone SortField = iota
	SortName
	SortKind
	SortSize
	SortModTime
)

var sortFieldNames = map[string]SortField{
	"name":     SortName,
	"type":     SortKind,
	"kind":     SortKind,
	"size":     SortSize,
	"mtime":    SortModTime,
	"modified": SortModTime,
}

var comparators = map[SortField]func(a, b *Entry) int{
	SortName: func(a, b *Entry) int { return strings.Compare(a.Name, b.Name) },
	SortKind: func(a, b *Entry) int { return strings.Compare(a.Kind(), b.Kind()) },
	SortSize: func(a, b *Entry) int { return cmp.Compare(a.Size(), b.Size()) },
	SortModTime: func(a, b *Entry) int {
		return a.ModTime().Compare(b.ModTime())
	},
}

// SortKey is a field plus direction. The zero value keeps enumeration order.
type SortKey struct {
	Field SortField
	Desc  bool
}

// ParseSortKey parses "field" or "-field". An empty string is SortNone.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortKey{}, nil
	}
	desc := strings.HasPrefix(s, "-")
	name := strings.ToLower(strings.TrimPrefix(s, "-"))
	field, ok := sortFieldNames[name]
	if !ok {
		return SortKey{}, errors.Errorf("%w: %q", ErrInvalidSortKey, s)
	}
	return SortKey{Field: field, Desc: desc}, nil
}

func (k SortKey) String() string {
	var name string
	switch k.Field {
	case SortName:
		name = "name"
	case SortKind:
		name = "type"
	case SortSize:
		name = "size"
	case SortModTime:
		name = "mtime"
	default:
		return ""
	}
	if k.Desc {
		return "-" + name
	}
	return name
}

// Sort returns a stably sorted copy of entries. Entries that compare equal keep
// their input order in both directions.
func Sort(entries []*Entry, key SortKey) []*Entry {
	out := slices.Clone(entries)
	less, ok := comparators[key.Field]
	if !ok {
		return out
	}
	compare := less
	if key.Desc {
		compare = func(a, b *Entry) int { return less(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}
