package http

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	OK        bool  `json:"ok"`
	RoomCount int   `json:"roomCount"`
	Timestamp int64 `json:"timestamp"`
}

func (c *Controller) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:        true,
		RoomCount: c.registry.Count(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
