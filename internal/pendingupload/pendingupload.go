// Package pendingupload bridges the HTTP upload handler and the websocket
// room:select-media handler: a host's media POST saves the file and
// fingerprint immediately, but only becomes room state once the host's
// follow-up room:select-media socket frame confirms it (spec §6 media
// upload + select-media handshake). This table holds the open FileHandle
// between those two requests, keyed by the media id returned from the
// upload response.
package pendingupload

import (
	"sync"
	"time"

	"github.com/WShawnMing/WatchTogether/internal/room"
)

// ttl bounds how long an unconfirmed upload's file handle is held before
// being released on its own; a host that never sends the confirming
// select-media frame must not leak an open file forever.
const ttl = 10 * time.Minute

type entry struct {
	handle    room.FileHandle
	expiresAt time.Time
}

type Table struct {
	mu      sync.Mutex
	entries map[string]entry
}

func New() *Table {
	return &Table{entries: make(map[string]entry)}
}

func (t *Table) Put(mediaID string, handle room.FileHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[mediaID] = entry{handle: handle, expiresAt: time.Now().Add(ttl)}
	t.sweepLocked()
}

// Pop returns and removes the handle registered for mediaID, if any and not
// expired. An expired entry is removed and its handle released.
func (t *Table) Pop(mediaID string) (room.FileHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[mediaID]
	delete(t.entries, mediaID)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		e.handle.Release()
		return nil, false
	}
	return e.handle, true
}

func (t *Table) sweepLocked() {
	now := time.Now()
	for id, e := range t.entries {
		if now.After(e.expiresAt) {
			e.handle.Release()
			delete(t.entries, id)
		}
	}
}
