package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/WShawnMing/WatchTogether/internal/mediastore"
)

type uploadSubtitleResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Format string `json:"format"`
}

// uploadSubtitle implements POST /api/rooms/:roomId/subtitle (spec §6).
func (c *Controller) uploadSubtitle(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	room, ok := c.registry.Get(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	socketID := r.Header.Get("x-socket-id")
	if !room.IsHost(socketID) {
		http.Error(w, "only the host may upload subtitles", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, mediastore.MaxSubtitleBytes+1<<16)
	file, header, err := r.FormFile("subtitle")
	if err != nil {
		http.Error(w, "no file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	saved, handle, err := c.store.SaveSubtitle(roomID, header.Filename, file)
	if err != nil {
		c.logger.WarnContext(r.Context(), "subtitle upload failed", "error", err, "room_id", roomID)
		http.Error(w, "upload failed", http.StatusBadRequest)
		return
	}

	subtitleID := uuid.NewString()
	c.store.Track(subtitleID, saved.Path, saved.Format)
	c.pending.Put(subtitleID, handle)

	writeJSON(w, http.StatusOK, uploadSubtitleResponse{
		ID:     subtitleID,
		Name:   header.Filename,
		Format: saved.Format,
	})
}

// serveSubtitle implements GET /api/rooms/:roomId/subtitles/:subtitleId.
func (c *Controller) serveSubtitle(w http.ResponseWriter, r *http.Request) {
	subtitleID := chi.URLParam(r, "subtitleId")

	path, format, ok := c.store.Lookup(subtitleID)
	if !ok {
		http.Error(w, "subtitle not found", http.StatusNotFound)
		return
	}

	contentType := "text/vtt; charset=utf-8"
	if format == "ass" {
		contentType = "text/x-ssa; charset=utf-8"
	}

	w.Header().Set("Cache-Control", "no-store")
	serveFileRange(w, r, path, contentType)
}
