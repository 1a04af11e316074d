package listing

import (
	"strconv"
	"strings"

	"github.com/go-errors/errors"
)

// ErrInvalidPagination is returned for a malformed page or page_size value.
var ErrInvalidPagination = errors.New("invalid pagination")

// ParsePagination reads the raw page and page_size query values. Empty values
// fall back to page 0 and defSize.
func ParsePagination(pageRaw, sizeRaw string, defSize, maxSize int) (page, size int, err error) {
	page, size = 0, defSize
	if pageRaw = strings.TrimSpace(pageRaw); pageRaw != "" {
		page, err = strconv.Atoi(pageRaw)
		if err != nil || page < 0 {
			return 0, 0, errors.Errorf("%w: page %q", ErrInvalidPagination, pageRaw)
		}
	}
	if sizeRaw = strings.TrimSpace(sizeRaw); sizeRaw != "" {
		size, err = strconv.Atoi(sizeRaw)
		if err != nil || size <= 0 || (maxSize > 0 && size > maxSize) {
			return 0, 0, errors.Errorf("%w: page_size %q", ErrInvalidPagination, sizeRaw)
		}
	}
	return page, size, nil
}

// Paginate returns xs[page*size : page*size+size] clamped to the bounds of xs.
// A page past the end, a negative page or a non-positive size yield an empty
// slice.
func Paginate[T any](xs []T, page, size int) []T {
	if page < 0 || size <= 0 {
		return []T{}
	}
	start := page * size
	if start/size != page || start >= len(xs) {
		// Overflow or out of range.
		return []T{}
	}
	end := start + size
	if end > len(xs) || end < start {
		end = len(xs)
	}
	return xs[start:end]
}

// PageCount is the number of pages needed for n items.
func PageCount(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
