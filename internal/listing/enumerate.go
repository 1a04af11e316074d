package listing

import (
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
)

// Mode selects how deep an enumeration goes.
type Mode int

const (
	// Shallow lists immediate children, files and directories.
	Shallow Mode = iota
	// Recursive walks the whole subtree and yields leaf files only.
	Recursive
)

// readDirBatch is how many directory entries are pulled per ReadDir call.
const readDirBatch = 256

// EnumerateOptions configures Enumerate.
type EnumerateOptions struct {
	Mode Mode
	// URLBase is the '/'-prefixed request path of the listed directory.
	URLBase string
	// NoSymlinks drops symlink entries.
	NoSymlinks bool
	// Contains, when set, reports whether a link's real target is inside the
	// served root. Links failing it are dropped.
	Contains func(abs string) bool
	Log      *logrus.Entry
}

// Enumerate returns a lazy sequence of the entries below dir. Entries whose
// metadata cannot be read are dropped (and logged); a single bad entry never
// ends the sequence. The returned error only covers dir itself being
// unreadable.
func Enumerate(dir string, opts EnumerateOptions) (iter.Seq[*Entry], error) {
	// Surface an unreadable listing root up front.
	f, err := os.Open(dir)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	_ = f.Close()

	if opts.URLBase == "" {
		opts.URLBase = "/"
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Mode == Recursive {
		return walkRecursive(dir, opts), nil
	}
	return readShallow(dir, opts), nil
}

func readShallow(dir string, opts EnumerateOptions) iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		f, err := os.Open(dir)
		if err != nil {
			opts.Log.WithError(err).WithField("dir", dir).Warn("directory vanished during listing")
			return
		}
		defer f.Close()

		for {
			batch, err := f.ReadDir(readDirBatch)
			for _, d := range batch {
				name := d.Name()
				p := filepath.Join(dir, name)
				if opts.dropLink(p, d) {
					continue
				}
				e := NewEntry(p, name, name, path.Join(opts.URLBase, name))
				if !keepReadable(e, opts.Log) {
					continue
				}
				if !yield(e) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					opts.Log.WithError(err).WithField("dir", dir).Warn("directory read stopped early")
				}
				return
			}
		}
	}
}

func walkRecursive(root string, opts EnumerateOptions) iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == root {
					opts.Log.WithError(err).WithField("dir", root).Warn("walk root unreadable")
					return err
				}
				opts.Log.WithError(err).WithField("path", p).Debug("skipping unreadable path")
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			isLink := d.Type()&fs.ModeSymlink != 0
			if opts.dropLink(p, d) {
				return nil
			}

			rel, rerr := filepath.Rel(root, p)
			if rerr != nil {
				return nil
			}
			relSlash := filepath.ToSlash(rel)
			e := NewEntry(p, d.Name(), relSlash, path.Join(opts.URLBase, relSlash))
			if !keepReadable(e, opts.Log) {
				return nil
			}
			// The walk does not follow links, so a link to a directory is
			// neither descended nor reported.
			if isLink && e.IsDir() {
				return nil
			}
			if !yield(e) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// dropLink reports whether d is a symlink that must not be listed, either
// because links are off or because it points out of the root.
func (o EnumerateOptions) dropLink(p string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	if o.NoSymlinks {
		return true
	}
	return o.Contains != nil && !o.Contains(p)
}

func keepReadable(e *Entry, log *logrus.Entry) bool {
	st := e.Stat()
	switch st.Outcome {
	case StatOK:
		return true
	case StatStale:
		log.WithError(st.Err).WithField("path", e.Path).Debug("dropping stale entry")
	default:
		log.WithError(st.Err).WithField("path", e.Path).Warn("dropping unreadable entry")
	}
	return false
}
