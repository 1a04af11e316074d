package transfer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
)

var (
	// ErrInvalidRange covers unparseable, unsupported and unsatisfiable ranges.
	ErrInvalidRange = errors.New("invalid range")
	// ErrRangeTooLarge is returned when an explicit range exceeds the buffer cap.
	ErrRangeTooLarge = errors.New("range too large")
	// ErrShortRead means fewer bytes were read than requested; the file shrank
	// or the read failed midway.
	ErrShortRead = errors.New("short read")
)

// ByteRange is an inclusive [Start, End] byte window of a file.
type ByteRange struct {
	Start int64
	End   int64
	// OpenEnded is set when the client omitted the end ("bytes=500-").
	OpenEnded bool
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value for a file of size.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange parses a single "bytes=<start>-[<end>]" range against size.
//
// Suffix ranges ("bytes=-500") and multi-range requests are not supported.
// Any range that is not fully inside the file is rejected, never clamped.
func ParseRange(header string, size int64) (ByteRange, error) {
	h := strings.TrimSpace(header)
	set, ok := strings.CutPrefix(h, "bytes=")
	if !ok {
		return ByteRange{}, errors.Errorf("%w: unsupported unit in %q", ErrInvalidRange, header)
	}
	if strings.Contains(set, ",") {
		return ByteRange{}, errors.Errorf("%w: multiple ranges in %q", ErrInvalidRange, header)
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(set), "-")
	if !ok {
		return ByteRange{}, errors.Errorf("%w: missing '-' in %q", ErrInvalidRange, header)
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" {
		return ByteRange{}, errors.Errorf("%w: suffix range %q", ErrInvalidRange, header)
	}
	start, err := parseOffset(startStr)
	if err != nil {
		return ByteRange{}, errors.Errorf("%w: bad start in %q", ErrInvalidRange, header)
	}

	r := ByteRange{Start: start}
	if endStr == "" {
		r.End = size - 1
		r.OpenEnded = true
	} else {
		end, err := parseOffset(endStr)
		if err != nil {
			return ByteRange{}, errors.Errorf("%w: bad end in %q", ErrInvalidRange, header)
		}
		r.End = end
	}

	if size <= 0 {
		return ByteRange{}, errors.Errorf("%w: empty file", ErrInvalidRange)
	}
	if r.Start > r.End {
		return ByteRange{}, errors.Errorf("%w: start %d > end %d", ErrInvalidRange, r.Start, r.End)
	}
	if r.End >= size {
		return ByteRange{}, errors.Errorf("%w: end %d beyond size %d", ErrInvalidRange, r.End, size)
	}
	return r, nil
}

// parseOffset accepts plain decimal digits only (no sign, no spaces).
func parseOffset(s string) (int64, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// Cap enforces a maximum window length. Open-ended ranges are shortened, since
// the client let the server pick the end; explicit ones fail with
// ErrRangeTooLarge.
func (r ByteRange) Cap(max int64) (ByteRange, error) {
	if max <= 0 || r.Length() <= max {
		return r, nil
	}
	if r.OpenEnded {
		r.End = r.Start + max - 1
		return r, nil
	}
	return r, errors.Errorf("%w: %d bytes requested, limit %d", ErrRangeTooLarge, r.Length(), max)
}
