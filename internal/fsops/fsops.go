package fsops

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"

	"pathview-server/internal/pathutil"
)

var (
	ErrNotFound = errors.New("not found")
	ErrSymlink  = errors.New("symlink not allowed")
)

// Kind classifies a resolved path.
type Kind int

const (
	KindMissing Kind = iota
	KindDir
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	default:
		return "missing"
	}
}

// Target is the outcome of resolving a request path.
type Target struct {
	// Abs is the on-disk path inside the root.
	Abs string
	// Rel is the normalized request path ('/'-prefixed, slash separated).
	Rel  string
	Kind Kind
	Info fs.FileInfo
}

// Resolver maps request paths to on-disk paths confined to Root.
//
// Root must be absolute and clean; it is set once at startup.
type Resolver struct {
	Root           string
	FollowSymlinks bool
	MaxPath        int
}

func NewResolver(root string, followSymlinks bool) *Resolver {
	return &Resolver{Root: filepath.Clean(root), FollowSymlinks: followSymlinks, MaxPath: pathutil.DefaultMaxPath}
}

// Resolve normalizes raw and stats the result. Errors:
//   - pathutil.ErrPathEscape, pathutil.ErrInvalidPath from normalization
//   - ErrSymlink when symlinks are disabled and one is on the way
//   - ErrNotFound when the path does not exist (or is neither file nor dir)
func (r *Resolver) Resolve(raw string) (Target, error) {
	norm, err := pathutil.Normalize(raw, r.MaxPath)
	if err != nil {
		return Target{}, err
	}
	abs, err := ToOSPath(r.Root, norm)
	if err != nil {
		return Target{}, err
	}

	if !r.FollowSymlinks {
		if err := LstatNoSymlink(r.Root, abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Target{}, errors.Errorf("%w: %s", ErrNotFound, norm)
			}
			return Target{}, err
		}
	} else if err := r.ensureRealWithinRoot(abs); err != nil {
		return Target{}, err
	}

	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Target{}, errors.Errorf("%w: %s", ErrNotFound, norm)
		}
		return Target{}, errors.Wrap(err, 0)
	}
	t := Target{Abs: abs, Rel: norm, Info: fi}
	switch {
	case fi.IsDir():
		t.Kind = KindDir
	case fi.Mode().IsRegular():
		t.Kind = KindFile
	default:
		// Devices, sockets, pipes.
		return Target{}, errors.Errorf("%w: %s", ErrNotFound, norm)
	}
	return t, nil
}

// RelURL converts an absolute on-disk path inside the root into a '/'-prefixed
// slash path suitable for links.
func (r *Resolver) RelURL(abs string) (string, error) {
	rel, err := filepath.Rel(r.Root, abs)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	if rel == "." {
		return "/", nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", pathutil.ErrPathEscape
	}
	return "/" + filepath.ToSlash(rel), nil
}

// Contains reports whether abs, with every symlink followed, is still inside
// the root. Missing targets are not contained.
func (r *Resolver) Contains(abs string) bool {
	return r.ensureRealWithinRoot(abs) == nil
}

// ensureRealWithinRoot follows symlinks and checks that the real target is
// still inside the real root.
func (r *Resolver) ensureRealWithinRoot(abs string) error {
	realRoot, err := filepath.EvalSymlinks(r.Root)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	realPath, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Errorf("%w: %s", ErrNotFound, abs)
		}
		return errors.Wrap(err, 0)
	}
	_, err = ensureWithinRoot(realRoot, realPath)
	return err
}

// ToOSPath converts a normalized request path (starting with '/') into an
// on-disk path inside root. It performs a lexical sandbox check and ensures the
// resulting path stays within root.
func ToOSPath(rootAbs string, normalized string) (string, error) {
	cleanRoot := filepath.Clean(rootAbs)
	if normalized == "" || normalized == "/" {
		return cleanRoot, nil
	}
	rel := strings.TrimPrefix(normalized, "/")
	p := filepath.Join(cleanRoot, filepath.FromSlash(rel))
	return ensureWithinRoot(cleanRoot, p)
}

func ensureWithinRoot(cleanRoot, p string) (string, error) {
	cleanP := filepath.Clean(p)
	relCheck, err := filepath.Rel(cleanRoot, cleanP)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	if relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%w: %s", pathutil.ErrPathEscape, p)
	}
	return cleanP, nil
}

// LstatNoSymlink walks from root to absPath (inclusive) and rejects any symlink.
// This prevents symlink escapes out of the sandbox.
func LstatNoSymlink(rootAbs, absPath string) error {
	cleanRoot := filepath.Clean(rootAbs)
	cleanP := filepath.Clean(absPath)
	rel, err := filepath.Rel(cleanRoot, cleanP)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if rel == "." {
		return nil
	}
	cur := cleanRoot
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return errors.Errorf("%w: %s", ErrSymlink, cur)
		}
	}
	return nil
}

// WriteFileAtomic streams src into path atomically (best effort).
// It creates a temp file in the same directory and renames it over the target,
// so readers never observe a half-written file. Returns the bytes written.
func WriteFileAtomic(path string, src io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pathview-upload-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, src)
	if err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	// Ignore chmod errors on platforms that don't support it well.
	_ = os.Chmod(tmpName, perm)

	if err := os.Rename(tmpName, path); err != nil {
		return n, err
	}
	ok = true
	return n, nil
}
