package upload

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/go-errors/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"pathview-server/internal/fsops"
	"pathview-server/internal/pathutil"
)

var (
	// ErrInvalidTarget is returned when the upload target is not a directory.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrInvalidName is returned when a filename sanitizes to nothing.
	ErrInvalidName = errors.New("invalid filename")
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	msgSaved          = "File Saved"
	msgInvalidTarget  = "Invalid Operation"
	msgNoFiles        = "no files in files[]"
	uploadPermissions = 0o644
)

// FileResult is the outcome for one uploaded part.
type FileResult struct {
	Name    string `json:"name"`
	SavedAs string `json:"saved_as,omitempty"`
	Size    int64  `json:"size"`
	Status  string `json:"status"`
	Msg     string `json:"msg"`
}

// Batch is the response body of an upload request.
type Batch struct {
	Status string       `json:"status"`
	Msg    string       `json:"msg"`
	Files  []FileResult `json:"files"`
}

// InvalidTarget is the batch returned when nothing could be written.
func InvalidTarget() Batch {
	return Batch{Status: StatusError, Msg: msgInvalidTarget, Files: []FileResult{}}
}

// Failed is a batch-level failure with a custom message.
func Failed(msg string) Batch {
	return Batch{Status: StatusError, Msg: msg, Files: []FileResult{}}
}

// Handler persists uploaded files into a directory.
type Handler struct {
	Log *logrus.Entry
}

// Save writes every part into dir under its sanitized name, overwriting any
// existing file. A failing part does not stop the others.
func (h *Handler) Save(dir string, files []*multipart.FileHeader) (Batch, error) {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return InvalidTarget(), errors.Errorf("%w: %s", ErrInvalidTarget, dir)
	}
	if len(files) == 0 {
		return Failed(msgNoFiles), nil
	}

	results := make([]FileResult, 0, len(files))
	for _, fh := range files {
		res := h.saveOne(dir, fh)
		results = append(results, res)
	}

	failed := lo.Filter(results, func(r FileResult, _ int) bool { return r.Status == StatusError })
	b := Batch{Status: StatusSuccess, Msg: msgSaved, Files: results}
	if len(failed) > 0 {
		b.Status = StatusError
		b.Msg = fmt.Sprintf("%d of %d files failed: %s", len(failed), len(results), failed[0].Msg)
	}
	return b, nil
}

func (h *Handler) saveOne(dir string, fh *multipart.FileHeader) FileResult {
	res := FileResult{Name: fh.Filename, Status: StatusError}

	name := pathutil.SanitizeFilename(fh.Filename)
	if name == "" {
		res.Msg = ErrInvalidName.Error()
		return res
	}
	res.SavedAs = name

	src, err := fh.Open()
	if err != nil {
		res.Msg = err.Error()
		h.logFailure(fh.Filename, err)
		return res
	}
	defer src.Close()

	dst := filepath.Join(dir, name)
	n, err := fsops.WriteFileAtomic(dst, src, uploadPermissions)
	if err != nil {
		res.Msg = err.Error()
		h.logFailure(fh.Filename, err)
		return res
	}

	res.Size = n
	res.Status = StatusSuccess
	res.Msg = msgSaved
	if h.Log != nil {
		h.Log.WithFields(logrus.Fields{"file": dst, "bytes": n}).Info("upload saved")
	}
	return res
}

func (h *Handler) logFailure(name string, err error) {
	if h.Log == nil {
		return
	}
	h.Log.WithError(err).WithField("file", name).Warn("upload failed")
}
