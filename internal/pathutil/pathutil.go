package pathutil

import (
	"path"
	"strings"
	"unicode"

	"github.com/go-errors/errors"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrPathEscape is returned for any path that would leave the served root.
	ErrPathEscape = errors.New("path escapes root")
	// ErrInvalidPath is returned for paths containing characters we never serve.
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultMaxPath bounds the length of a request path.
const DefaultMaxPath = 4096

// Normalize validates and normalizes a request path (already URL-decoded):
//   - separator '/'
//   - collapses '//' -> '/'
//   - removes '/./'
//   - '/dir' and '/dir/' are identical (trailing slash removed except root)
//   - forbids '..' segments
//   - rejects NUL, control characters and backslashes
//
// It returns the normalized path ALWAYS starting with '/'.
func Normalize(raw string, maxPath int) (string, error) {
	if raw == "" {
		return "/", nil
	}
	if maxPath <= 0 {
		maxPath = DefaultMaxPath
	}
	if len(raw) > maxPath {
		return "", errors.Errorf("%w: length %d exceeds %d", ErrInvalidPath, len(raw), maxPath)
	}

	// Backslash is a separator on Windows; a literal one could smuggle '..'.
	if strings.Contains(raw, "\\") {
		return "", errors.Errorf("%w: backslash not allowed", ErrInvalidPath)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < 0x20 || c == 0x7F {
			return "", errors.Errorf("%w: control character 0x%02x", ErrInvalidPath, c)
		}
	}

	p := raw
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	// path.Clean resolves '..' which we must FORBID, so check segments first.
	for _, s := range strings.Split(p, "/") {
		if s == ".." {
			return "", errors.Errorf("%w: %q", ErrPathEscape, raw)
		}
	}

	p = path.Clean(p)
	if p == "." || p == "" {
		p = "/"
	}
	return p, nil
}

// windowsReserved are device names that cannot be used as a bare filename.
var windowsReserved = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename turns a client supplied filename into a safe bare filename.
//
// Rules:
//   - NFKD fold and drop everything outside ASCII
//   - path separators become spaces
//   - keep only A-Z, a-z, 0-9, '_', '.', '-'; whitespace runs become '_'
//   - trim leading/trailing '.' and '_'
//   - Windows device names get a '_' prefix
//
// The result may be empty, which callers must treat as an invalid name.
func SanitizeFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte(' ')
		case r > unicode.MaxASCII:
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(b.String())
	joined := strings.Join(fields, "_")

	var out strings.Builder
	out.Grow(len(joined))
	for i := 0; i < len(joined); i++ {
		c := joined[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out.WriteByte(c)
		case c == '_' || c == '.' || c == '-':
			out.WriteByte(c)
		}
	}

	res := strings.Trim(out.String(), "._")
	if res == "" {
		return ""
	}
	base := strings.ToUpper(strings.SplitN(res, ".", 2)[0])
	if _, ok := windowsReserved[base]; ok {
		res = "_" + res
	}
	return res
}
