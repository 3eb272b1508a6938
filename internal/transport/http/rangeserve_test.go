package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestServeFileRangeFullBody(t *testing.T) {
	path := writeTempFile(t, "0123456789")

	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	rec := httptest.NewRecorder()

	serveFileRange(rec, req, path, "video/mp4")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123456789", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
}

func TestServeFileRangePartialContent(t *testing.T) {
	path := writeTempFile(t, "0123456789")

	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	serveFileRange(rec, req, path, "video/mp4")

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
}

func TestServeFileRangeUnsatisfiable(t *testing.T) {
	path := writeTempFile(t, "0123456789")

	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Range", "bytes=100-200")
	rec := httptest.NewRecorder()

	serveFileRange(rec, req, path, "video/mp4")

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
}

func TestServeFileRangeMissingFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	rec := httptest.NewRecorder()

	serveFileRange(rec, req, filepath.Join(t.TempDir(), "missing.bin"), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
