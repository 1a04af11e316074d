package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pathview-server/internal/config"
	"pathview-server/internal/fsops"
	"pathview-server/internal/listing"
	"pathview-server/internal/pathutil"
	"pathview-server/internal/render"
	"pathview-server/internal/transfer"
	"pathview-server/internal/upload"
	"pathview-server/internal/version"
)

const (
	hideDotfileCookie = "hide-dotfile"
	// About six months.
	hideDotfileMaxAge = 16070400
)

// Server exposes one directory tree over HTTP.
type Server struct {
	cfg config.Config
	log *logrus.Entry

	resolver *fsops.Resolver
	lister   *listing.Lister
	sender   *transfer.Sender
	uploader *upload.Handler
	renderer *render.Renderer

	// recent request records for the operator endpoints.
	logs  *logHub
	stats *statsHub
	usage *usageCache

	upgrader websocket.Upgrader
}

// New builds a Server. cfg must already be validated.
func New(cfg config.Config, log *logrus.Entry) (*Server, error) {
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	resolver := fsops.NewResolver(cfg.Root, cfg.FollowSymlinks)
	return &Server{
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		lister: &listing.Lister{
			Ignored:    cfg.Ignored(),
			NoSymlinks: !cfg.FollowSymlinks,
			Contains:   resolver.Contains,
			Log:        log,
		},
		sender:   &transfer.Sender{MaxRangeBytes: cfg.MaxRangeBytes},
		uploader: &upload.Handler{Log: log},
		renderer: renderer,
		logs:     newLogHub(cfg.LogRingSize),
		stats:    newStatsHub(),
		usage:    newUsageCache(3 * time.Second),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}, nil
}

func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	s.mountAdmin(mux)
	mux.HandleFunc("/", s.handleFiles)
	return mux
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	// Log entry (filled progressively).
	le := LogEntry{
		TimeUnixMs: startTime.UnixMilli(),
		RemoteIP:   clientIP(r),
		Method:     r.Method,
		Path:       r.URL.Path,
		HTTPStatus: http.StatusOK,
	}
	defer func() {
		le.DurationMs = time.Since(startTime).Milliseconds()
		s.record(le)
	}()

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		le.Op = "get"
		s.serveGet(w, r, &le)
	case http.MethodPost:
		le.Op = "upload"
		le.ReqBytes = max(r.ContentLength, 0)
		s.serveUpload(w, r, &le)
	default:
		le.Op = "other"
		w.Header().Set("Allow", "GET, HEAD, POST")
		s.writeError(w, &le, http.StatusMethodNotAllowed, errors.Errorf("method %s not allowed", r.Method))
	}
}

func (s *Server) serveGet(w http.ResponseWriter, r *http.Request, le *LogEntry) {
	target, err := s.resolver.Resolve(r.URL.Path)
	if err != nil {
		s.writeError(w, le, statusFor(err), err)
		return
	}
	if target.Kind == fsops.KindDir {
		s.serveListing(w, r, target, le)
		return
	}
	s.serveFile(w, r, target, le)
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, target fsops.Target, le *LogEntry) {
	le.Op = "list"
	q := r.URL.Query()

	page, size, err := listing.ParsePagination(q.Get("page"), q.Get("page_size"), s.cfg.PageSizeDefault, s.cfg.PageSizeMax)
	if err != nil {
		s.writeError(w, le, statusFor(err), err)
		return
	}
	sortKey, err := listing.ParseSortKey(q.Get("sorting"))
	if err != nil {
		s.writeError(w, le, statusFor(err), err)
		return
	}
	hide := s.hideDotfiles(r)
	opts := listing.Options{
		Recursive:    q.Get("recursive") == "yes",
		HideDotfiles: hide,
		Sort:         sortKey,
		Page:         page,
		PageSize:     size,
	}

	res, err := s.lister.List(target.Abs, target.Rel, opts)
	if err != nil {
		s.writeError(w, le, statusFor(err), err)
		return
	}

	view := render.NewView(target.Rel, res, opts, q)
	view.Version = version.Get().Version
	if du, err := s.usage.get(s.cfg.Root); err == nil {
		view.Disk = &du
	}
	if s.cfg.RenderReadme && page == 0 && !opts.Recursive {
		view.Readme = s.readme(target)
	}

	var buf bytes.Buffer
	contentType := "text/html; charset=utf-8"
	if wantsJSON(r) {
		contentType = "application/json; charset=utf-8"
		err = s.renderer.JSON(&buf, view)
	} else {
		err = s.renderer.HTML(&buf, view)
	}
	if err != nil {
		s.writeError(w, le, http.StatusInternalServerError, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     hideDotfileCookie,
		Value:    yesNo(hide),
		MaxAge:   hideDotfileMaxAge,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	n, _ := w.Write(buf.Bytes())
	le.RespBytes = int64(n)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, target fsops.Target, le *LogEntry) {
	var (
		res transfer.Result
		err error
	)
	// A present but empty Range header still goes to the parser, which rejects it.
	if len(r.Header.Values("Range")) > 0 {
		le.Op = "range"
		res, err = s.sender.Partial(w, r, target.Abs, r.Header.Get("Range"))
	} else {
		le.Op = "download"
		res, err = s.sender.Full(w, r, target.Abs)
	}
	le.RespBytes = res.Bytes
	if res.Range != nil {
		le.Info = res.Range.ContentRange(target.Info.Size())
	}
	if err == nil {
		le.HTTPStatus = res.Status
		return
	}

	switch {
	case res.Status == 0:
		// Nothing written yet.
		s.writeError(w, le, statusFor(err), err)
	case errors.Is(err, transfer.ErrClientWrite):
		le.HTTPStatus = res.Status
		le.Info = err.Error()
		s.log.WithError(err).WithField("path", target.Rel).Info("client went away")
	default:
		le.HTTPStatus = res.Status
		le.Info = err.Error()
	}
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request, le *LogEntry) {
	target, err := s.resolver.Resolve(r.URL.Path)
	if err != nil && !errors.Is(err, fsops.ErrNotFound) {
		s.writeError(w, le, statusFor(err), err)
		return
	}
	if err != nil || target.Kind != fsops.KindDir {
		le.Info = "upload target is not a directory"
		s.writeJSON(w, le, http.StatusOK, upload.InvalidTarget())
		return
	}

	if r.ContentLength > s.cfg.MaxUploadBytes {
		le.Info = "declared body exceeds max_upload_bytes"
		s.writeJSON(w, le, http.StatusRequestEntityTooLarge, upload.Failed("request body too large"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.UploadMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			le.Info = err.Error()
			s.writeJSON(w, le, http.StatusRequestEntityTooLarge, upload.Failed("request body too large"))
			return
		}
		le.Info = err.Error()
		s.writeJSON(w, le, http.StatusBadRequest, upload.Failed("malformed multipart body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	batch, err := s.uploader.Save(target.Abs, r.MultipartForm.File["files[]"])
	if err != nil {
		s.log.WithError(err).WithField("dir", target.Abs).Warn("upload rejected")
	}
	if batch.Status != upload.StatusSuccess {
		le.Info = batch.Msg
	}
	s.usage.invalidate(s.cfg.Root)
	s.writeJSON(w, le, http.StatusOK, batch)
}

// readme renders the directory's README.md. It goes through the resolver like
// any request path, so a README that is a link out of the root is skipped.
func (s *Server) readme(dir fsops.Target) template.HTML {
	name, ok, err := render.FindReadme(dir.Abs)
	if err != nil || !ok {
		return ""
	}
	t, err := s.resolver.Resolve(path.Join(dir.Rel, name))
	if err != nil {
		s.log.WithError(err).WithField("dir", dir.Rel).Debug("readme skipped")
		return ""
	}
	if t.Kind != fsops.KindFile {
		return ""
	}
	html, err := render.Markdown(t.Abs)
	if err != nil {
		s.log.WithError(err).WithField("path", t.Rel).Debug("readme not rendered")
		return ""
	}
	return html
}

// hideDotfiles resolves the preference: query, then cookie, then config.
func (s *Server) hideDotfiles(r *http.Request) bool {
	if v, ok := r.URL.Query()["hide-dotfile"]; ok && len(v) > 0 {
		return v[0] == "yes"
	}
	if c, err := r.Cookie(hideDotfileCookie); err == nil {
		return c.Value == "yes"
	}
	return s.cfg.HideDotfilesDefault
}

func (s *Server) writeError(w http.ResponseWriter, le *LogEntry, status int, err error) {
	le.HTTPStatus = status
	le.Info = err.Error()
	msg := http.StatusText(status)
	if status < 500 {
		msg = publicMessage(err)
	}
	http.Error(w, msg, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, le *LogEntry, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, le, http.StatusInternalServerError, errors.Wrap(err, 0))
		return
	}
	le.HTTPStatus = status
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	n, _ := w.Write(b)
	le.RespBytes = int64(n)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fsops.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pathutil.ErrPathEscape), errors.Is(err, fsops.ErrSymlink):
		return http.StatusForbidden
	case errors.Is(err, pathutil.ErrInvalidPath),
		errors.Is(err, listing.ErrInvalidSortKey),
		errors.Is(err, listing.ErrInvalidPagination):
		return http.StatusBadRequest
	case errors.Is(err, transfer.ErrInvalidRange), errors.Is(err, transfer.ErrRangeTooLarge):
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the client-facing text of a 4xx error. It never includes
// on-disk paths.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		fsops.ErrNotFound,
		fsops.ErrSymlink,
		pathutil.ErrPathEscape,
		pathutil.ErrInvalidPath,
		listing.ErrInvalidSortKey,
		listing.ErrInvalidPagination,
		transfer.ErrInvalidRange,
		transfer.ErrRangeTooLarge,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
