package listing

import (
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/go-errors/errors"
)

// StatOutcome tells apart the ways a metadata read can end.
type StatOutcome int

const (
	// StatOK means Info is valid.
	StatOK StatOutcome = iota
	// StatStale means the entry vanished or is not accessible. Expected while
	// the tree changes underneath us; the entry is skipped quietly.
	StatStale
	// StatFailed is any other I/O error. The entry is skipped but the error is
	// worth an operator's attention.
	StatFailed
)

func (o StatOutcome) String() string {
	switch o {
	case StatOK:
		return "ok"
	case StatStale:
		return "stale"
	default:
		return "failed"
	}
}

// StatResult is the cached outcome of reading an entry's metadata.
type StatResult struct {
	Outcome StatOutcome
	Info    fs.FileInfo
	Err     error
}

// Entry is one filesystem node in a listing.
//
// Metadata is read lazily with os.Stat (so symlinks report their target) and
// cached for the lifetime of the entry, which is a single request.
type Entry struct {
	// Path is the absolute on-disk path.
	Path string
	// Name is the base name.
	Name string
	// RelPath is the slash separated path relative to the listed directory.
	RelPath string
	// URLPath is the '/'-prefixed path relative to the served root.
	URLPath string

	once sync.Once
	stat StatResult
}

func NewEntry(path, name, relPath, urlPath string) *Entry {
	return &Entry{Path: path, Name: name, RelPath: relPath, URLPath: urlPath}
}

// Stat reads the metadata once.
func (e *Entry) Stat() StatResult {
	e.once.Do(func() {
		fi, err := os.Stat(e.Path)
		e.stat = classifyStat(fi, err)
	})
	return e.stat
}

func classifyStat(fi fs.FileInfo, err error) StatResult {
	if err == nil {
		return StatResult{Outcome: StatOK, Info: fi}
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return StatResult{Outcome: StatStale, Err: err}
	}
	return StatResult{Outcome: StatFailed, Err: err}
}

// Readable reports whether metadata is available.
func (e *Entry) Readable() bool {
	return e.Stat().Outcome == StatOK
}

func (e *Entry) IsDir() bool {
	st := e.Stat()
	return st.Outcome == StatOK && st.Info.IsDir()
}

// Kind is "dir" or "file". Unreadable entries report "file".
func (e *Entry) Kind() string {
	if e.IsDir() {
		return KindDir
	}
	return KindFile
}

// Size is zero when metadata is unreadable.
func (e *Entry) Size() int64 {
	st := e.Stat()
	if st.Outcome != StatOK {
		return 0
	}
	return st.Info.Size()
}

// ModTime is the zero time when metadata is unreadable.
func (e *Entry) ModTime() time.Time {
	st := e.Stat()
	if st.Outcome != StatOK {
		return time.Time{}
	}
	return st.Info.ModTime()
}

const (
	KindDir  = "dir"
	KindFile = "file"
)
