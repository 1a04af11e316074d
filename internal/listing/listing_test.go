package listing

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathview-server/internal/fsops"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func writeFile(t *testing.T, p string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("x", size)), 0o644))
}

// tree builds:
//
//	a.txt (10) b.txt (5) c.txt (20) .hidden (3) .git/ Thumbs.db (7)
//	sub/deep.txt (4) sub/inner/leaf.txt (6)
func tree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 10)
	writeFile(t, filepath.Join(root, "b.txt"), 5)
	writeFile(t, filepath.Join(root, "c.txt"), 20)
	writeFile(t, filepath.Join(root, ".hidden"), 3)
	writeFile(t, filepath.Join(root, "Thumbs.db"), 7)
	writeFile(t, filepath.Join(root, ".git", "HEAD"), 1)
	writeFile(t, filepath.Join(root, "sub", "deep.txt"), 4)
	writeFile(t, filepath.Join(root, "sub", "inner", "leaf.txt"), 6)
	return root
}

func names(entries []*Entry) []string {
	return lo.Map(entries, func(e *Entry, _ int) string { return e.Name })
}

func collect(t *testing.T, dir string, opts EnumerateOptions) []*Entry {
	t.Helper()
	opts.Log = quietLog()
	seq, err := Enumerate(dir, opts)
	require.NoError(t, err)
	var out []*Entry
	for e := range seq {
		out = append(out, e)
	}
	return out
}

func TestEnumerateShallow(t *testing.T) {
	root := tree(t)
	got := collect(t, root, EnumerateOptions{URLBase: "/docs"})

	n := names(got)
	slices.Sort(n)
	assert.Equal(t, []string{".git", ".hidden", "Thumbs.db", "a.txt", "b.txt", "c.txt", "sub"}, n)

	for _, e := range got {
		assert.Equal(t, e.Name, e.RelPath)
		assert.Equal(t, "/docs/"+e.Name, e.URLPath)
	}
}

func TestEnumerateRecursiveYieldsLeavesWithRelativePaths(t *testing.T) {
	root := tree(t)
	got := collect(t, filepath.Join(root, "sub"), EnumerateOptions{Mode: Recursive, URLBase: "/sub"})

	rels := lo.Map(got, func(e *Entry, _ int) string { return e.RelPath })
	slices.Sort(rels)
	assert.Equal(t, []string{"deep.txt", "inner/leaf.txt"}, rels)

	for _, e := range got {
		assert.False(t, e.IsDir())
		assert.Equal(t, "/sub/"+e.RelPath, e.URLPath)
	}
}

func TestEnumerateEarlyTermination(t *testing.T) {
	root := tree(t)
	seq, err := Enumerate(root, EnumerateOptions{Mode: Recursive, Log: quietLog()})
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestEnumerateMissingDir(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "nope"), EnumerateOptions{})
	assert.Error(t, err)
}

func TestEnumerateDropsDanglingSymlink(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real.txt"), 1)
	if err := os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "dangling")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got := collect(t, root, EnumerateOptions{})
	assert.Equal(t, []string{"real.txt"}, names(got))
}

func TestEnumerateSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dir", "f.txt"), 1)
	writeFile(t, filepath.Join(root, "file.txt"), 1)
	if err := os.Symlink(filepath.Join(root, "dir"), filepath.Join(root, "dirlink")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "file.txt"), filepath.Join(root, "filelink")))

	shallow := collect(t, root, EnumerateOptions{})
	kinds := lo.Associate(shallow, func(e *Entry) (string, string) { return e.Name, e.Kind() })
	assert.Equal(t, KindDir, kinds["dirlink"])
	assert.Equal(t, KindFile, kinds["filelink"])

	noLinks := collect(t, root, EnumerateOptions{NoSymlinks: true})
	n := names(noLinks)
	slices.Sort(n)
	assert.Equal(t, []string{"dir", "file.txt"}, n)

	// Links to directories are not followed by the walk.
	rec := collect(t, root, EnumerateOptions{Mode: Recursive})
	rels := lo.Map(rec, func(e *Entry, _ int) string { return e.RelPath })
	slices.Sort(rels)
	assert.Equal(t, []string{"dir/f.txt", "file.txt", "filelink"}, rels)
}

func TestEnumerateConfinesFollowedLinks(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	writeFile(t, filepath.Join(root, "in.txt"), 3)
	writeFile(t, filepath.Join(outside, "secret.txt"), 100)
	if err := os.Symlink(filepath.Join(root, "in.txt"), filepath.Join(root, "link-in")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link-out")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "dir-out")))

	contains := fsops.NewResolver(root, true).Contains

	shallow := names(collect(t, root, EnumerateOptions{Contains: contains}))
	slices.Sort(shallow)
	assert.Equal(t, []string{"in.txt", "link-in"}, shallow)

	deep := names(collect(t, root, EnumerateOptions{Mode: Recursive, Contains: contains}))
	slices.Sort(deep)
	assert.Equal(t, []string{"in.txt", "link-in"}, deep)

	res, err := (&Lister{Contains: contains, Log: quietLog()}).List(root, "/", Options{PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Totals.Files)
	assert.Equal(t, int64(6), res.Totals.Size)
}

func TestFilter(t *testing.T) {
	root := tree(t)
	ignored := []string{".git", "Thumbs.db"}

	type scenario struct {
		hide     bool
		expected []string
		totals   Totals
	}

	scenarios := []scenario{
		{false, []string{".hidden", "a.txt", "b.txt", "c.txt", "sub"}, Totals{Files: 4, Dirs: 1}},
		{true, []string{"a.txt", "b.txt", "c.txt", "sub"}, Totals{Files: 3, Dirs: 1}},
	}

	for _, s := range scenarios {
		seq, err := Enumerate(root, EnumerateOptions{Log: quietLog()})
		require.NoError(t, err)
		got, totals := Filter{Ignored: ignored, HideDotfiles: s.hide}.Apply(seq)

		n := names(got)
		slices.Sort(n)
		assert.Equal(t, s.expected, n)
		assert.Equal(t, s.totals.Files, totals.Files)
		assert.Equal(t, s.totals.Dirs, totals.Dirs)

		var sum int64
		for _, e := range got {
			sum += e.Size()
		}
		assert.Equal(t, sum, totals.Size)

		if s.hide {
			for _, e := range got {
				assert.False(t, strings.HasPrefix(e.Name, "."), e.Name)
			}
		}
	}
}

func TestParseSortKey(t *testing.T) {
	type scenario struct {
		raw      string
		expected SortKey
		err      bool
	}

	scenarios := []scenario{
		{"", SortKey{}, false},
		{"name", SortKey{Field: SortName}, false},
		{"-size", SortKey{Field: SortSize, Desc: true}, false},
		{"type", SortKey{Field: SortKind}, false},
		{"kind", SortKey{Field: SortKind}, false},
		{"-mtime", SortKey{Field: SortModTime, Desc: true}, false},
		{"modified", SortKey{Field: SortModTime}, false},
		{"owner", SortKey{}, true},
		{"-", SortKey{}, true},
		{"--name", SortKey{}, true},
	}

	for _, s := range scenarios {
		got, err := ParseSortKey(s.raw)
		if s.err {
			assert.True(t, errors.Is(err, ErrInvalidSortKey), s.raw)
			continue
		}
		require.NoError(t, err, s.raw)
		assert.Equal(t, s.expected, got, s.raw)
	}
}

func TestSortKeyStringRoundTrips(t *testing.T) {
	for _, raw := range []string{"name", "-name", "type", "-size", "mtime"} {
		k, err := ParseSortKey(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, k.String())
	}
	assert.Equal(t, "", SortKey{}.String())
}

func TestSortBySize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ten"), 10)
	writeFile(t, filepath.Join(root, "five"), 5)
	writeFile(t, filepath.Join(root, "twenty"), 20)
	entries := []*Entry{
		NewEntry(filepath.Join(root, "ten"), "ten", "ten", "/ten"),
		NewEntry(filepath.Join(root, "five"), "five", "five", "/five"),
		NewEntry(filepath.Join(root, "twenty"), "twenty", "twenty", "/twenty"),
	}

	desc := Sort(entries, SortKey{Field: SortSize, Desc: true})
	assert.Equal(t, []int64{20, 10, 5}, lo.Map(desc, func(e *Entry, _ int) int64 { return e.Size() }))

	asc := Sort(entries, SortKey{Field: SortSize})
	assert.Equal(t, []int64{5, 10, 20}, lo.Map(asc, func(e *Entry, _ int) int64 { return e.Size() }))

	// Input untouched.
	assert.Equal(t, []string{"ten", "five", "twenty"}, names(entries))
	// No key keeps order.
	assert.Equal(t, []string{"ten", "five", "twenty"}, names(Sort(entries, SortKey{})))
}

func TestSortIsStable(t *testing.T) {
	root := t.TempDir()
	var entries []*Entry
	for _, n := range []string{"x1", "y1", "x2", "y2", "x3"} {
		size := 1
		if strings.HasPrefix(n, "y") {
			size = 2
		}
		writeFile(t, filepath.Join(root, n), size)
		entries = append(entries, NewEntry(filepath.Join(root, n), n, n, "/"+n))
	}

	assert.Equal(t, []string{"x1", "x2", "x3", "y1", "y2"}, names(Sort(entries, SortKey{Field: SortSize})))
	assert.Equal(t, []string{"y1", "y2", "x1", "x2", "x3"}, names(Sort(entries, SortKey{Field: SortSize, Desc: true})))
}

func TestSortByKindAndModTime(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old"), 1)
	writeFile(t, filepath.Join(root, "new"), 1)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "old"), past, past))

	entries := []*Entry{
		NewEntry(filepath.Join(root, "new"), "new", "new", "/new"),
		NewEntry(filepath.Join(root, "dir"), "dir", "dir", "/dir"),
		NewEntry(filepath.Join(root, "old"), "old", "old", "/old"),
	}
	assert.Equal(t, []string{"dir", "new", "old"}, names(Sort(entries, SortKey{Field: SortKind})))

	files := []*Entry{entries[0], entries[2]}
	assert.Equal(t, []string{"old", "new"}, names(Sort(files, SortKey{Field: SortModTime})))
	assert.Equal(t, []string{"new", "old"}, names(Sort(files, SortKey{Field: SortModTime, Desc: true})))
}

func TestPaginate(t *testing.T) {
	xs := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	type scenario struct {
		page, size int
		expected   []int
	}

	scenarios := []scenario{
		{0, 3, []int{0, 1, 2}},
		{1, 3, []int{3, 4, 5}},
		{3, 3, []int{9}},
		{4, 3, []int{}},
		{0, 100, xs},
		{-1, 3, []int{}},
		{0, 0, []int{}},
		{1 << 62, 1 << 62, []int{}},
	}

	for _, s := range scenarios {
		assert.Equal(t, s.expected, Paginate(xs, s.page, s.size), "page=%d size=%d", s.page, s.size)
	}

	for p := 0; p < 4; p++ {
		for size := 1; size <= 4; size++ {
			start := p * size
			end := min(start+size, len(xs))
			if start >= len(xs) {
				assert.Empty(t, Paginate(xs, p, size))
				continue
			}
			assert.Equal(t, xs[start:end], Paginate(xs, p, size))
		}
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0, 10))
	assert.Equal(t, 1, PageCount(10, 10))
	assert.Equal(t, 2, PageCount(11, 10))
	assert.Equal(t, 0, PageCount(5, 0))
}

func TestListerList(t *testing.T) {
	root := tree(t)
	l := &Lister{Ignored: []string{".git", "Thumbs.db"}, Log: quietLog()}

	res, err := l.List(root, "/", Options{HideDotfiles: true, Sort: SortKey{Field: SortName}, Page: 0, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names(res.Entries))
	assert.Equal(t, 4, res.Matched)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 3, res.Totals.Files)
	assert.Equal(t, 1, res.Totals.Dirs)

	res, err = l.List(root, "/", Options{HideDotfiles: true, Sort: SortKey{Field: SortName}, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt", "sub"}, names(res.Entries))

	res, err = l.List(root, "/", Options{Recursive: true, Sort: SortKey{Field: SortSize, Desc: true}, PageSize: 100})
	require.NoError(t, err)
	// In recursive mode the deny-list applies to leaf names.
	assert.Contains(t, names(res.Entries), "leaf.txt")
	assert.Equal(t, 0, res.Totals.Dirs)
	assert.Equal(t, "c.txt", res.Entries[0].Name)
}

func TestParsePagination(t *testing.T) {
	type scenario struct {
		page, size string
		wantPage   int
		wantSize   int
		err        bool
	}

	scenarios := []scenario{
		{"", "", 0, 100, false},
		{"2", "", 2, 100, false},
		{"", "25", 0, 25, false},
		{" 3 ", "1000", 3, 1000, false},
		{"-1", "", 0, 0, true},
		{"abc", "", 0, 0, true},
		{"", "0", 0, 0, true},
		{"", "1001", 0, 0, true},
		{"", "ten", 0, 0, true},
	}

	for _, s := range scenarios {
		page, size, err := ParsePagination(s.page, s.size, 100, 1000)
		if s.err {
			assert.True(t, errors.Is(err, ErrInvalidPagination), "page=%q size=%q", s.page, s.size)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, s.wantPage, page)
		assert.Equal(t, s.wantSize, size)
	}
}
