package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(writeConfig(t, "root: "+root+"\n"))
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, ":8000", cfg.Listen)
	assert.Equal(t, 100, cfg.PageSizeDefault)
	assert.Equal(t, int64(64<<20), cfg.MaxRangeBytes)
	assert.True(t, cfg.FollowSymlinks)
	assert.Equal(t, "text", cfg.LogFormat)
	// Uploads may take as long as they need; only headers are bounded.
	assert.Zero(t, cfg.ReadTimeoutSec)
	assert.Zero(t, cfg.WriteTimeoutSec)
}

func TestLoadOverridesFields(t *testing.T) {
	root := t.TempDir()
	body := "root: " + root + "\n" +
		"listen: 127.0.0.1:9999\n" +
		"follow_symlinks: false\n" +
		"page_size_default: 25\n" +
		"extra_ignored: [node_modules]\n" +
		"log_format: json\n"
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
	assert.False(t, cfg.FollowSymlinks)
	assert.Equal(t, 25, cfg.PageSizeDefault)
	assert.Contains(t, cfg.Ignored(), "node_modules")
	assert.Contains(t, cfg.Ignored(), ".git")
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFlagOverrides(t *testing.T) {
	fileRoot := t.TempDir()
	flagRoot := t.TempDir()
	cfg, err := Load(writeConfig(t, "root: "+fileRoot+"\nlisten: :9000\n"), func(c *Config) {
		c.Root = flagRoot
	})
	require.NoError(t, err)
	assert.Equal(t, flagRoot, cfg.Root)
	assert.Equal(t, ":9000", cfg.Listen)

	// An invalid root in the file is fine when the flag replaces it.
	cfg, err = Load(writeConfig(t, "root: /does/not/exist\n"), func(c *Config) { c.Root = flagRoot })
	require.NoError(t, err)
	assert.Equal(t, flagRoot, cfg.Root)
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	type scenario struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}

	scenarios := []scenario{
		{"defaults", func(c *Config) {}, false},
		{"empty root", func(c *Config) { c.Root = "  " }, true},
		{"missing root", func(c *Config) { c.Root = filepath.Join(root, "nope") }, true},
		{"root is a file", func(c *Config) { c.Root = file }, true},
		{"page default above max", func(c *Config) { c.PageSizeDefault = 50; c.PageSizeMax = 10 }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"ignored entry with slash", func(c *Config) { c.ExtraIgnored = []string{"a/b"} }, true},
		{"negative timeout", func(c *Config) { c.ReadTimeoutSec = -1 }, true},
	}

	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			c := Default()
			c.Root = root
			s.mutate(&c)
			err := c.Validate()
			if s.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMakesRootAbsolute(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.Mkdir("served", 0o755))
	c := Default()
	c.Root = "served"
	require.NoError(t, c.Validate())
	assert.True(t, filepath.IsAbs(c.Root))
}
