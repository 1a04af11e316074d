package render

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-errors/errors"
	"github.com/russross/blackfriday/v2"
	"github.com/samber/lo"

	"pathview-server/internal/fsops"
	"pathview-server/internal/listing"
)

//go:embed templates/index.html
var templatesFS embed.FS

// maxReadmeBytes bounds how much of a README is rendered.
const maxReadmeBytes = 256 << 10

// ViewEntry is one row of the listing page.
type ViewEntry struct {
	Name     string    `json:"name"`
	RelPath  string    `json:"rel_path"`
	URL      string    `json:"url"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mtime"`
	DataType string    `json:"data_type"`
	Icon     string    `json:"icon"`
}

// Crumb is one breadcrumb link.
type Crumb struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// View is everything the listing page shows. Rendering is a pure function of it.
type View struct {
	Path         string           `json:"path"`
	Crumbs       []Crumb          `json:"crumbs"`
	Entries      []ViewEntry      `json:"entries"`
	Totals       listing.Totals   `json:"totals"`
	Matched      int              `json:"matched"`
	Page         int              `json:"page"`
	PageSize     int              `json:"page_size"`
	Pages        int              `json:"pages"`
	Sorting      string           `json:"sorting,omitempty"`
	Recursive    bool             `json:"recursive"`
	HideDotfiles bool             `json:"hide_dotfiles"`
	Disk         *fsops.DiskStats `json:"disk,omitempty"`
	Readme       template.HTML    `json:"-"`
	Version      string           `json:"-"`

	// Query is the request query, used to build pagination/sort links.
	Query url.Values `json:"-"`
}

// NewView maps a listing result onto the page model.
func NewView(urlPath string, res listing.Result, opts listing.Options, query url.Values) View {
	entries := lo.Map(res.Entries, func(e *listing.Entry, _ int) ViewEntry {
		ve := ViewEntry{
			Name:    e.Name,
			RelPath: e.RelPath,
			URL:     EscapePath(e.URLPath),
			Kind:    e.Kind(),
			Size:    e.Size(),
			ModTime: e.ModTime(),
		}
		if ve.Kind == listing.KindDir {
			ve.URL += "/"
			ve.DataType = "folder"
			ve.Icon = "fa-folder"
		} else {
			ve.DataType = DataType(e.Name)
			ve.Icon = Icon(e.Name)
		}
		return ve
	})
	if query == nil {
		query = url.Values{}
	}
	return View{
		Path:         urlPath,
		Crumbs:       Crumbs(urlPath),
		Entries:      entries,
		Totals:       res.Totals,
		Matched:      res.Matched,
		Page:         res.Page,
		PageSize:     res.PageSize,
		Pages:        res.Pages,
		Sorting:      opts.Sort.String(),
		Recursive:    opts.Recursive,
		HideDotfiles: opts.HideDotfiles,
		Query:        query,
	}
}

// With returns "?<query>" with key replaced by value; every other parameter is
// kept.
func (v View) With(key string, value any) string {
	q := url.Values{}
	for k, vs := range v.Query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set(key, toString(value))
	return "?" + q.Encode()
}

// SortLink toggles between ascending and descending for field.
func (v View) SortLink(field string) string {
	if v.Sorting == field {
		return v.With("sorting", "-"+field)
	}
	return v.With("sorting", field)
}

func (v View) HasPrev() bool { return v.Page > 0 }
func (v View) HasNext() bool { return v.Page+1 < v.Pages }

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case bool:
		return lo.Ternary(t, "yes", "no")
	default:
		return ""
	}
}

// EscapePath escapes a slash path for use in a link.
func EscapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

// Crumbs splits a '/'-prefixed path into breadcrumb links.
func Crumbs(p string) []Crumb {
	out := []Crumb{{Name: "/", URL: "/"}}
	cur := "/"
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}
		cur = path.Join(cur, seg)
		out = append(out, Crumb{Name: seg, URL: EscapePath(cur) + "/"})
	}
	return out
}

// Renderer turns a View into HTML or JSON.
type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.New("index.html").Funcs(template.FuncMap{
		"sizeFmt":  sizeFmt,
		"diskFmt":  humanize.Bytes,
		"timeFmt":  timeFmt,
		"humanize": humanizeTime,
		"add":      func(a, b int) int { return a + b },
	}).ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) HTML(w io.Writer, v View) error {
	return r.tmpl.ExecuteTemplate(w, "index.html", v)
}

func (r *Renderer) JSON(w io.Writer, v View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sizeFmt(n int64) string {
	if n < 0 {
		return ""
	}
	return humanize.Bytes(uint64(n))
}

func timeFmt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func humanizeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// FindReadme returns the name of README.md (any case) in dir. ok is false if
// there is none. The name still has to be resolved before it is read.
func FindReadme(dir string) (name string, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, errors.Wrap(err, 0)
	}
	e, found := lo.Find(entries, func(e os.DirEntry) bool {
		return !e.IsDir() && strings.EqualFold(e.Name(), "README.md")
	})
	if !found {
		return "", false, nil
	}
	return e.Name(), true, nil
}

// Markdown renders the file at abs. Raw HTML in the markdown is dropped and
// unsafe links are neutralized.
func Markdown(abs string) (template.HTML, error) {
	f, err := os.Open(abs)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	defer f.Close()
	src, err := io.ReadAll(io.LimitReader(f, maxReadmeBytes))
	if err != nil {
		return "", errors.Wrap(err, 0)
	}

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink,
	})
	out := blackfriday.Run(src,
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
		blackfriday.WithRenderer(renderer),
	)
	return template.HTML(out), nil
}
