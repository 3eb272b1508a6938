package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/WShawnMing/WatchTogether/internal/mediastore"
)

type mediaDescriptorResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	MimeType    string   `json:"mimeType"`
	Size        int64    `json:"size"`
	DurationSec *float64 `json:"durationSec"`
	SHA256      string   `json:"sha256"`
}

type uploadMediaResponse struct {
	Media             mediaDescriptorResponse `json:"media"`
	OptimizedForNetwork bool                  `json:"optimizedForNetwork"`
	SourceBitrateMbps *float64                `json:"sourceBitrateMbps"`
	CompatProxyRecommended bool               `json:"compatProxyRecommended"`
}

// uploadMedia implements POST /api/rooms/:roomId/media (spec §6).
func (c *Controller) uploadMedia(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	room, ok := c.registry.Get(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	socketID := r.Header.Get("x-socket-id")
	if !room.IsHost(socketID) {
		http.Error(w, "only the host may upload media", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, mediastore.MaxMediaBytes+1<<20)
	file, header, err := r.FormFile("video")
	if err != nil {
		http.Error(w, "no file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	saved, handle, err := c.store.SaveMedia(r.Context(), roomID, header.Filename, file)
	if err != nil {
		c.logger.WarnContext(r.Context(), "media upload failed", "error", err, "room_id", roomID)
		http.Error(w, "upload failed", http.StatusBadRequest)
		return
	}

	mediaID := uuid.NewString()
	c.store.Track(mediaID, saved.Path, "")
	c.pending.Put(mediaID, handle)

	optimized := false
	if saved.SourceBitrateMbps != nil {
		optimized = (*saved.SourceBitrateMbps)*1e6 <= float64(c.directStreamMaxBps)
	}

	// Transcoding itself is a pluggable helper outside this repo (FFMPEG_PATH
	// just names the binary for that external helper to use); all the core
	// does is tell the host whether the compat proxy should kick in.
	compatProxyRecommended := c.compatProxyEnabled && !optimized

	writeJSON(w, http.StatusOK, uploadMediaResponse{
		Media: mediaDescriptorResponse{
			ID:          mediaID,
			Name:        header.Filename,
			MimeType:    mimeType,
			Size:        saved.Size,
			DurationSec: saved.DurationSec,
			SHA256:      saved.SHA256,
		},
		OptimizedForNetwork:    optimized,
		SourceBitrateMbps:      saved.SourceBitrateMbps,
		CompatProxyRecommended: compatProxyRecommended,
	})
}

// serveMedia implements GET /api/rooms/:roomId/media/:mediaId, a
// byte-range server (spec §6, §8 scenario 5).
func (c *Controller) serveMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaId")

	path, _, ok := c.store.Lookup(mediaID)
	if !ok {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-store")
	serveFileRange(w, r, path, "")
}
