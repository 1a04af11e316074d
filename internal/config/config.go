package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"gopkg.in/yaml.v3"
)

// DefaultIgnored are well-known system and version-control artifacts that are
// never shown in a listing.
var DefaultIgnored = []string{
	".bzr",
	"$RECYCLE.BIN",
	".DAV",
	".DS_Store",
	".git",
	".hg",
	".htaccess",
	".htpasswd",
	".Spotlight-V100",
	".svn",
	"__MACOSX",
	"ehthumbs.db",
	"robots.txt",
	"Thumbs.db",
	"thumbs.tps",
}

// Config controls the server behavior.
//
// It is read once at startup and never mutated afterwards; every component
// that needs a value gets it passed explicitly.
type Config struct {
	// Listen address, e.g. ":8000" or "127.0.0.1:8000".
	Listen string `yaml:"listen"`

	// Root is the single directory exposed by the server. Nothing outside it is
	// ever resolved. Validate turns it into an absolute path.
	Root string `yaml:"root"`

	// FollowSymlinks allows symlinks below Root as long as their target stays
	// inside Root. When false, any symlink on the way is rejected and symlinks
	// are left out of listings.
	FollowSymlinks bool `yaml:"follow_symlinks"`

	// HideDotfilesDefault is used when neither the query nor the cookie say
	// anything about hiding dotfiles.
	HideDotfilesDefault bool `yaml:"hide_dotfiles_default"`

	// ExtraIgnored extends DefaultIgnored.
	ExtraIgnored []string `yaml:"extra_ignored,omitempty"`

	// --- Listing limits ---
	PageSizeDefault int `yaml:"page_size_default"`
	PageSizeMax     int `yaml:"page_size_max"`

	// RenderReadme embeds a rendered README.md below the first page of a listing.
	RenderReadme bool `yaml:"render_readme"`

	// --- Transfer limits ---

	// MaxRangeBytes caps how many bytes a single range response may buffer.
	MaxRangeBytes int64 `yaml:"max_range_bytes"`
	// MaxUploadBytes caps the whole multipart request body.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// UploadMemoryBytes is how much of a multipart body is kept in memory
	// before parts spill to temporary files.
	UploadMemoryBytes int64 `yaml:"upload_memory_bytes"`

	// --- HTTP server timeouts ---
	// Both span the whole body; 0 leaves large uploads and downloads unbounded.
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`

	// --- Logging ---
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file,omitempty"`

	// LogRequests controls whether the server keeps a ring of recent request
	// records for the operator endpoints.
	LogRequests     bool `yaml:"log_requests"`
	LogRingSize     int  `yaml:"log_ring_size"`
	EnableLogStream bool `yaml:"enable_log_stream"`

	// AdminAllowRemote exposes the /_pathview/ operator endpoints to
	// non-loopback clients.
	AdminAllowRemote bool `yaml:"admin_allow_remote"`
}

func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Listen:              ":8000",
		Root:                home,
		FollowSymlinks:      true,
		HideDotfilesDefault: false,
		PageSizeDefault:     100,
		PageSizeMax:         1000,
		RenderReadme:        true,
		MaxRangeBytes:       64 << 20,
		MaxUploadBytes:      1 << 30,
		UploadMemoryBytes:   32 << 20,
		ReadTimeoutSec:      0,
		WriteTimeoutSec:     0,
		LogLevel:            "info",
		LogFormat:           "text",
		LogRequests:         true,
		LogRingSize:         1024,
		EnableLogStream:     true,
		AdminAllowRemote:    false,
	}
}

// Load reads a YAML config file on top of Default(). An empty path yields the
// validated defaults. overrides run after the file is applied and before
// validation (command line flags).
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Errorf("parse config %s: %w", path, err)
		}
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		c.Listen = ":8000"
	}
	c.Root = strings.TrimSpace(c.Root)
	if c.Root == "" {
		return errors.New("root must not be empty")
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return errors.Errorf("root %q: %w", c.Root, err)
	}
	c.Root = abs
	st, err := os.Stat(c.Root)
	if err != nil {
		return errors.Errorf("root %q: %w", c.Root, err)
	}
	if !st.IsDir() {
		return errors.Errorf("root %q is not a directory", c.Root)
	}

	for _, name := range c.ExtraIgnored {
		if strings.ContainsAny(name, "/\\") {
			return errors.Errorf("extra_ignored entry %q must be a bare name", name)
		}
	}

	if c.PageSizeDefault <= 0 {
		c.PageSizeDefault = 100
	}
	if c.PageSizeMax <= 0 {
		c.PageSizeMax = 1000
	}
	if c.PageSizeDefault > c.PageSizeMax {
		return errors.Errorf("page_size_default (%d) must be <= page_size_max (%d)", c.PageSizeDefault, c.PageSizeMax)
	}

	if c.MaxRangeBytes <= 0 {
		c.MaxRangeBytes = 64 << 20
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 1 << 30
	}
	if c.UploadMemoryBytes <= 0 {
		c.UploadMemoryBytes = 32 << 20
	}
	if c.UploadMemoryBytes > c.MaxUploadBytes {
		c.UploadMemoryBytes = c.MaxUploadBytes
	}
	if c.ReadTimeoutSec < 0 || c.WriteTimeoutSec < 0 {
		return errors.New("timeouts must not be negative")
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogFormat {
	case "":
		c.LogFormat = "text"
	case "text", "json":
	default:
		return errors.Errorf("unsupported log_format: %s", c.LogFormat)
	}
	if c.LogRingSize <= 0 {
		c.LogRingSize = 1024
	}
	return nil
}

// Ignored returns the full deny-list: DefaultIgnored plus ExtraIgnored.
func (c Config) Ignored() []string {
	out := make([]string, 0, len(DefaultIgnored)+len(c.ExtraIgnored))
	out = append(out, DefaultIgnored...)
	return append(out, c.ExtraIgnored...)
}

// Marshal renders the config as YAML (used by --print-config).
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
