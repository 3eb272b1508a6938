package room

import "math"

// FileHandle is the pluggable interface through which the Room Coordinator
// releases a media/subtitle file's on-disk resource without knowing how it
// is stored (spec §1 out-of-scope: "HTTP range-serving of uploaded files
// ... interface described"; spec §9 "File resource ownership"). The actual
// byte-serving implementation lives in internal/transport/http.
type FileHandle interface {
	// Release best-effort deletes or otherwise frees the underlying file.
	// The Room Coordinator discards its error; it never propagates into
	// room state.
	Release() error
}

// mediaRegistry holds at most one media + subtitle descriptor per room
// (spec §2.2, §4.5).
type mediaRegistry struct {
	media        *MediaDescriptor
	mediaFile    FileHandle
	subtitle     *SubtitleDescriptor
	subtitleFile FileHandle
}

func newMediaRegistry() *mediaRegistry {
	return &mediaRegistry{}
}

// ReplaceMedia releases the previous file (if any) and installs the new
// descriptor/file atomically. Only the host may call the path that leads
// here (enforced by the coordinator, not this type).
func (r *mediaRegistry) ReplaceMedia(desc *MediaDescriptor, file FileHandle) error {
	var releaseErr error
	if r.mediaFile != nil {
		releaseErr = r.mediaFile.Release()
	}
	r.media = desc
	r.mediaFile = file
	return releaseErr
}

func (r *mediaRegistry) ReplaceSubtitle(desc *SubtitleDescriptor, file FileHandle) error {
	var releaseErr error
	if r.subtitleFile != nil {
		releaseErr = r.subtitleFile.Release()
	}
	r.subtitle = desc
	r.subtitleFile = file
	return releaseErr
}

// Release tears down both files, used on room destruction.
func (r *mediaRegistry) Release() {
	if r.mediaFile != nil {
		r.mediaFile.Release()
		r.mediaFile = nil
	}
	if r.subtitleFile != nil {
		r.subtitleFile.Release()
		r.subtitleFile = nil
	}
	r.media = nil
	r.subtitle = nil
}

const fingerprintDurationToleranceSec = 0.25

// MatchesFingerprint implements spec §4.5's match predicate: sha256 equal
// AND size equal AND durations agree within 0.25s (when both known).
func MatchesFingerprint(room *MediaDescriptor, clientSHA256 string, clientSize int64, clientDurationSec *float64) bool {
	if room == nil {
		return false
	}
	if room.SHA256 != clientSHA256 || room.Size != clientSize {
		return false
	}

	if room.DurationSec != nil && clientDurationSec != nil {
		return math.Abs(*room.DurationSec-*clientDurationSec) <= fingerprintDurationToleranceSec
	}

	// duration unknown on either side: sha256+size agreement is sufficient.
	return true
}
