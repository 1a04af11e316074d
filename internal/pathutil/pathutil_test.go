package pathutil

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	type scenario struct {
		raw      string
		expected string
		err      error
	}

	scenarios := []scenario{
		{"", "/", nil},
		{"/", "/", nil},
		{"docs", "/docs", nil},
		{"/docs/", "/docs", nil},
		{"//docs//a/./b", "/docs/a/b", nil},
		{"/.hidden/file", "/.hidden/file", nil},
		{"/docs/../etc", "", ErrPathEscape},
		{"..", "", ErrPathEscape},
		{"a/b/../../..", "", ErrPathEscape},
		{"a\\..\\b", "", ErrInvalidPath},
		{"a\x00b", "", ErrInvalidPath},
		{"a\nb", "", ErrInvalidPath},
	}

	for _, s := range scenarios {
		got, err := Normalize(s.raw, 0)
		if s.err != nil {
			assert.True(t, errors.Is(err, s.err), "raw=%q err=%v", s.raw, err)
			continue
		}
		assert.NoError(t, err, s.raw)
		assert.Equal(t, s.expected, got, s.raw)
	}
}

func TestNormalizeMaxPath(t *testing.T) {
	_, err := Normalize(strings.Repeat("a", 20), 10)
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestSanitizeFilename(t *testing.T) {
	type scenario struct {
		name     string
		expected string
	}

	scenarios := []scenario{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "etc_passwd"},
		{"..\\..\\windows\\win.ini", "windows_win.ini"},
		{"my cool movie.mov", "my_cool_movie.mov"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{".bashrc", "bashrc"},
		{"__init__.py", "init__.py"},
		{"CON", "_CON"},
		{"nul.txt", "_nul.txt"},
		{"../..", ""},
		{"日本語", ""},
		{"a;b&c|d.txt", "abcd.txt"},
	}

	for _, s := range scenarios {
		assert.Equal(t, s.expected, SanitizeFilename(s.name), s.name)
	}
}

func TestSanitizeFilenameNeverContainsSeparators(t *testing.T) {
	for _, name := range []string{"../../etc/passwd", "/abs/path", "a/../../b", "..\\x"} {
		got := SanitizeFilename(name)
		assert.NotContains(t, got, "/")
		assert.NotContains(t, got, "\\")
		assert.NotEqual(t, "..", got)
		assert.Equal(t, filepath.Base(got), got)
	}
}
