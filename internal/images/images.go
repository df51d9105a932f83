// Package images stores chart screenshots attached to trades and serves
// them back by name.
package images

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjournal/journal-engine/internal/metrics"
)

var (
	// ErrEmptyUpload means the multipart field was missing or zero bytes.
	ErrEmptyUpload = errors.New("images: empty upload")
	// ErrInvalidName means a requested filename could escape the root.
	ErrInvalidName = errors.New("images: invalid file name")
)

// DefaultMaxBytes bounds an upload when the caller passes no limit.
const DefaultMaxBytes int64 = 10 << 20

// FormField is the multipart field carrying the file.
const FormField = "file"

// URLPrefix is prepended to stored names in upload responses.
const URLPrefix = "/api/images/"

// Handler serves POST /images and GET /images/{filename} from a single
// directory. The directory is created on first upload.
type Handler struct {
	root     string
	maxBytes int64
}

// NewHandler stores files under root. maxBytes <= 0 selects DefaultMaxBytes.
func NewHandler(root string, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Handler{root: root, maxBytes: maxBytes}
}

// UploadResponse is the JSON body returned by Upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// Upload handles POST /api/images.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// Headroom for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	file, header, err := r.FormFile(FormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.ImageUploads.WithLabelValues("too_large").Inc()
			writeError(w, fmt.Sprintf("file exceeds %d bytes", h.maxBytes), http.StatusBadRequest)
			return
		}
		metrics.ImageUploads.WithLabelValues("empty").Inc()
		writeError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name, n, err := h.save(file, header.Filename, header.Size)
	switch {
	case errors.Is(err, ErrEmptyUpload):
		metrics.ImageUploads.WithLabelValues("empty").Inc()
		writeError(w, "file is required", http.StatusBadRequest)
		return
	case errors.Is(err, errTooLarge):
		metrics.ImageUploads.WithLabelValues("too_large").Inc()
		writeError(w, fmt.Sprintf("file exceeds %d bytes", h.maxBytes), http.StatusBadRequest)
		return
	case err != nil:
		metrics.ImageUploads.WithLabelValues("error").Inc()
		slog.Error("image upload failed", "filename", header.Filename, "err", err)
		writeError(w, "failed to store image", http.StatusInternalServerError)
		return
	}

	metrics.ImageUploads.WithLabelValues("ok").Inc()
	metrics.ImageUploadBytes.Add(float64(n))
	slog.Info("image uploaded", "name", name, "bytes", n)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{URL: URLPrefix + name})
}

var errTooLarge = errors.New("images: upload too large")

// save copies src to a fresh <uuid>_<base> file and returns its name and
// size. Nothing is left on disk when it fails.
func (h *Handler) save(src io.Reader, original string, size int64) (string, int64, error) {
	if size == 0 {
		return "", 0, ErrEmptyUpload
	}
	if size > h.maxBytes {
		return "", 0, errTooLarge
	}
	if err := os.MkdirAll(h.root, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.New().String() + "_" + SanitizeName(original)
	path := filepath.Join(h.root, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", name, err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, h.maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		err = fmt.Errorf("write %s: %w", name, err)
	case n == 0:
		err = ErrEmptyUpload
	case n > h.maxBytes:
		err = errTooLarge
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return name, n, nil
}

// Serve handles GET /api/images/{filename}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolve(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, "image not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, "image not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, "image not found", http.StatusNotFound)
		return
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(f); err == nil {
		contentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		writeError(w, "failed to read image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resolve maps a requested name to an absolute path inside the root.
func (h *Handler) resolve(name string) (string, error) {
	if name == "" || name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	root, err := filepath.Abs(h.root)
	if err != nil {
		return "", err
	}
	path := filepath.Clean(filepath.Join(root, name))
	if filepath.Dir(path) != root {
		return "", ErrInvalidName
	}
	return path, nil
}

// SanitizeName reduces an uploaded file name to a safe base name made of
// letters, digits, dot, dash and underscore.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	out = strings.TrimLeft(out, ".")
	if out == "" {
		return "image"
	}
	return out
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
