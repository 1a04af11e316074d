package transfer

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-errors/errors"
)

// ErrClientWrite wraps failures writing the body, typically a client that went
// away mid-transfer. It is not a server fault.
var ErrClientWrite = errors.New("client write failed")

// Result summarizes what was sent to the client.
type Result struct {
	Status int
	Bytes  int64
	Range  *ByteRange
}

// Sender serves file bodies, whole or by range.
type Sender struct {
	// MaxRangeBytes bounds the in-memory buffer of a single range response.
	MaxRangeBytes int64
}

// ReadRange reads exactly rng.Length() bytes at rng.Start.
func ReadRange(f io.ReaderAt, rng ByteRange) ([]byte, error) {
	buf := make([]byte, rng.Length())
	n, err := io.ReadFull(io.NewSectionReader(f, rng.Start, rng.Length()), buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Errorf("%w: got %d of %d bytes", ErrShortRead, n, rng.Length())
		}
		return nil, errors.Wrap(err, 0)
	}
	return buf, nil
}

// Partial answers a request carrying a Range header.
//
// Range errors are answered here with 416 and returned for logging. Open and
// read errors are returned with nothing written so the caller can pick the
// status.
func (s *Sender) Partial(w http.ResponseWriter, r *http.Request, abs, rangeHeader string) (Result, error) {
	f, err := os.Open(abs)
	if err != nil {
		return Result{}, errors.Wrap(err, 0)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Result{}, errors.Wrap(err, 0)
	}
	size := fi.Size()

	rng, err := ParseRange(rangeHeader, size)
	if err == nil {
		rng, err = rng.Cap(s.MaxRangeBytes)
	}
	if err != nil {
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		http.Error(w, http.StatusText(http.StatusRequestedRangeNotSatisfiable), http.StatusRequestedRangeNotSatisfiable)
		return Result{Status: http.StatusRequestedRangeNotSatisfiable}, err
	}

	body, err := ReadRange(f, rng)
	if err != nil {
		return Result{}, err
	}

	h := w.Header()
	h.Set("Content-Type", contentType(abs))
	h.Set("Content-Range", rng.ContentRange(size))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)

	res := Result{Status: http.StatusPartialContent, Range: &rng}
	if r.Method == http.MethodHead {
		return res, nil
	}
	n, err := w.Write(body)
	res.Bytes = int64(n)
	if err != nil {
		return res, errors.Errorf("%w: %v", ErrClientWrite, err)
	}
	return res, nil
}

// Full streams the whole file with an attachment disposition.
func (s *Sender) Full(w http.ResponseWriter, r *http.Request, abs string) (Result, error) {
	f, err := os.Open(abs)
	if err != nil {
		return Result{}, errors.Wrap(err, 0)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Result{}, errors.Wrap(err, 0)
	}

	name := filepath.Base(abs)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Accept-Ranges", "bytes")
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
	http.ServeContent(cw, r, name, fi.ModTime(), f)
	res := Result{Status: cw.status, Bytes: cw.n}
	if cw.err != nil {
		return res, errors.Errorf("%w: %v", ErrClientWrite, cw.err)
	}
	return res, nil
}

func contentType(abs string) string {
	if ct := mime.TypeByExtension(filepath.Ext(abs)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type countingWriter struct {
	http.ResponseWriter
	status int
	n      int64
	err    error
}

func (c *countingWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.ResponseWriter.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
