package images_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tjournal/journal-engine/internal/images"
)

// 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func newTestEnv(t *testing.T, maxBytes int64) (string, chi.Router) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "uploads")
	h := images.NewHandler(root, maxBytes)

	r := chi.NewRouter()
	r.Post("/api/images", h.Upload)
	r.Get("/api/images/{filename}", h.Serve)
	return root, r
}

func doUpload(t *testing.T, router chi.Router, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(content)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestUpload_RoundTrip(t *testing.T) {
	root, router := newTestEnv(t, 0)

	w := doUpload(t, router, images.FormField, "chart.png", pngBytes)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp images.UploadResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !strings.HasPrefix(resp.URL, images.URLPrefix) || !strings.HasSuffix(resp.URL, "_chart.png") {
		t.Fatalf("unexpected url %q", resp.URL)
	}
	if countFiles(t, root) != 1 {
		t.Errorf("expected one stored file")
	}

	req := httptest.NewRequest("GET", resp.URL, nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("expected 200 on serve, got %d", got.Code)
	}
	if ct := got.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if !bytes.Equal(got.Body.Bytes(), pngBytes) {
		t.Error("served bytes differ from upload")
	}
}

func TestUpload_EmptyFileRejected(t *testing.T) {
	root, router := newTestEnv(t, 0)

	w := doUpload(t, router, images.FormField, "empty.png", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if n := countFiles(t, root); n != 0 {
		t.Errorf("expected nothing written, found %d files", n)
	}
}

func TestUpload_MissingFieldRejected(t *testing.T) {
	root, router := newTestEnv(t, 0)

	w := doUpload(t, router, "", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if n := countFiles(t, root); n != 0 {
		t.Errorf("expected nothing written, found %d files", n)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	root, router := newTestEnv(t, 16)

	w := doUpload(t, router, images.FormField, "big.png", pngBytes)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if n := countFiles(t, root); n != 0 {
		t.Errorf("expected nothing written, found %d files", n)
	}
}

func TestUpload_SanitizesName(t *testing.T) {
	root, router := newTestEnv(t, 0)

	w := doUpload(t, router, images.FormField, `..\..\evil name.png`, pngBytes)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp images.UploadResponse
	json.NewDecoder(w.Body).Decode(&resp)
	name := strings.TrimPrefix(resp.URL, images.URLPrefix)
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		t.Errorf("unsafe stored name %q", name)
	}
	if _, err := os.Stat(filepath.Join(root, name)); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
}

func TestServe_RejectsTraversal(t *testing.T) {
	root, router := newTestEnv(t, 0)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	secret := filepath.Join(filepath.Dir(root), "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"/api/images/..%2Fsecret.txt",
		"/api/images/%2E%2E%2Fsecret.txt",
		"/api/images/..%5Csecret.txt",
		"/api/images/..",
	} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			t.Errorf("%s: expected rejection, got 200", path)
		}
		if strings.Contains(w.Body.String(), "top secret") {
			t.Errorf("%s: leaked file outside root", path)
		}
	}
}

func TestServe_Missing(t *testing.T) {
	_, router := newTestEnv(t, 0)

	req := httptest.NewRequest("GET", "/api/images/nope.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"chart.png":         "chart.png",
		"my chart (1).png":  "my_chart__1_.png",
		"../../etc/passwd":  "passwd",
		`C:\Users\me\a.jpg`: "a.jpg",
		"...hidden":         "hidden",
		"":                  "image",
		"a..b.png":          "a.b.png",
		"스크린샷.png":          "____.png",
	}
	for in, want := range cases {
		if got := images.SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
