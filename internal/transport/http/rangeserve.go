package http

import (
	"net/http"
	"os"
)

// serveFileRange streams path honoring a Range: bytes=a-b request header,
// the way spec §8 scenario 5 requires: 206 with Content-Range on a valid
// partial request, 416 on a malformed or out-of-bounds one, 200 with the
// full body otherwise. contentType, if non-empty, overrides the sniffed
// type http.ServeContent would otherwise pick.
func serveFileRange(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
