package http

import "net/http"

// listDiscovery answers GET /api/discovery: the rooms hosted by this
// instance, for a peer's subnet probe (spec §4.7, §6).
func (c *Controller) listDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if c.discovery == nil {
		writeJSON(w, http.StatusOK, struct {
			ProtocolVersion int   `json:"protocolVersion"`
			Rooms           []any `json:"rooms"`
		}{ProtocolVersion: 1, Rooms: []any{}})
		return
	}

	writeJSON(w, http.StatusOK, c.discovery.List())
}

// listNearbyDiscovery answers GET /api/discovery/nearby: the merged
// broadcast+probe view of rooms visible anywhere on the LAN, not just
// those hosted by this instance (SPEC_FULL.md supplement to spec §4.7's
// probe path, which otherwise has no HTTP surface to return through).
func (c *Controller) listNearbyDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if c.discovery == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	writeJSON(w, http.StatusOK, c.discovery.Discovered())
}
