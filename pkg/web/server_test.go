package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyea/cpe-manager/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Path: filepath.Join(t.TempDir(), "test.log")})
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func TestEnvelopeShape(t *testing.T) {
	rec := httptest.NewRecorder()
	respondOK(rec, "done", map[string]int{"n": 1})

	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Message != "done" || resp.Data == nil {
		t.Errorf("envelope = %+v", resp)
	}

	rec = httptest.NewRecorder()
	respondError(rec, http.StatusBadRequest, "boom")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d", rec.Code)
	}
	resp = apiResponse{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "error" || resp.Message != "boom" || resp.Data != nil {
		t.Errorf("error envelope = %+v", resp)
	}
}

func TestCorsMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := corsMiddleware(inner)

	// OPTIONS is answered by the middleware itself.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/device", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("options code = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	// Other methods pass through with headers attached.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/device", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("passthrough code = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header on passthrough")
	}
}

func TestSpaFallback(t *testing.T) {
	wwwDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(wwwDir, "index.html"), []byte("<html>app</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wwwDir, "app.js"), []byte("console.log(1)"), 0644); err != nil {
		t.Fatal(err)
	}

	s := &Server{wwwDir: wwwDir, log: testLogger(t)}

	// Real file with its content type.
	rec := httptest.NewRecorder()
	s.spaFallback(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/javascript; charset=utf-8" {
		t.Errorf("content type = %s", ct)
	}

	// Frontend route falls back to index.html.
	rec = httptest.NewRecorder()
	s.spaFallback(rec, httptest.NewRequest(http.MethodGet, "/settings/network", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>app</html>" {
		t.Errorf("fallback = %d %q", rec.Code, rec.Body.String())
	}

	// API paths never fall back.
	rec = httptest.NewRecorder()
	s.spaFallback(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("api fallback code = %d", rec.Code)
	}
}

func TestPagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/sms/list?limit=5&offset=10", nil)
	limit, offset := pagination(r, 50)
	if limit != 5 || offset != 10 {
		t.Errorf("pagination = (%d, %d)", limit, offset)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/sms/list", nil)
	limit, offset = pagination(r, 50)
	if limit != 50 || offset != 0 {
		t.Errorf("default pagination = (%d, %d)", limit, offset)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/sms/list?limit=-3&offset=-1", nil)
	limit, offset = pagination(r, 50)
	if limit != 50 || offset != 0 {
		t.Errorf("negative pagination = (%d, %d)", limit, offset)
	}
}
