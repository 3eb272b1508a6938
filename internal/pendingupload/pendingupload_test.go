package pendingupload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	released bool
}

func (h *fakeHandle) Release() error {
	h.released = true
	return nil
}

func TestPutThenPopReturnsHandleOnce(t *testing.T) {
	tbl := New()
	h := &fakeHandle{}
	tbl.Put("media-1", h)

	got, ok := tbl.Pop("media-1")
	require.True(t, ok)
	assert.Same(t, h, got)

	_, ok = tbl.Pop("media-1")
	assert.False(t, ok, "Pop must remove the entry so a second confirmation never double-delivers the handle")
}

func TestPopUnknownID(t *testing.T) {
	tbl := New()
	_, ok := tbl.Pop("nope")
	assert.False(t, ok)
}

func TestExpiredEntryIsSweptAndReleased(t *testing.T) {
	tbl := New()
	h := &fakeHandle{}

	tbl.mu.Lock()
	tbl.entries["stale"] = entry{handle: h, expiresAt: time.Now().Add(-time.Minute)}
	tbl.mu.Unlock()

	// Put triggers sweepLocked as a side effect, mirroring how a fresh
	// upload's Put call reclaims any abandoned prior entries.
	tbl.Put("fresh", &fakeHandle{})

	assert.True(t, h.released, "an expired entry must have its file handle released during the sweep")

	_, ok := tbl.Pop("stale")
	assert.False(t, ok)
}

func TestPopExpiredEntryReturnsFalse(t *testing.T) {
	tbl := New()
	h := &fakeHandle{}

	tbl.mu.Lock()
	tbl.entries["stale"] = entry{handle: h, expiresAt: time.Now().Add(-time.Minute)}
	tbl.mu.Unlock()

	_, ok := tbl.Pop("stale")
	assert.False(t, ok, "an expired entry must never be handed back even before the next sweep runs")
}
