package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WShawnMing/WatchTogether/internal/clock"
)

// fakePublisher records every broadcast/send for assertions, mirroring the
// teacher's habit of asserting on conn/message counts rather than wiring a
// real websocket in unit tests.
type fakePublisher struct {
	mu         sync.Mutex
	broadcasts []broadcastCall
	sends      []sendCall
}

type broadcastCall struct {
	targets []string
	v       any
}

type sendCall struct {
	target string
	v      any
}

func (p *fakePublisher) Broadcast(targets []string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, broadcastCall{targets: targets, v: v})
}

func (p *fakePublisher) Send(target string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, sendCall{target: target, v: v})
}

func (p *fakePublisher) lastSnapshot() RoomSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.broadcasts) - 1; i >= 0; i-- {
		if msg, ok := p.broadcasts[i].v.(snapshotMessage); ok {
			return msg.Payload
		}
	}
	return RoomSnapshot{}
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.broadcasts) + len(p.sends)
}

type fakeFile struct {
	released bool
}

func (f *fakeFile) Release() error {
	f.released = true
	return nil
}

func newTestRoom(t *testing.T, fc *clock.Fake, pub Publisher) *Room {
	t.Helper()
	cfg := Config{
		MaxMembers:    3,
		RoomIdleTTL:   time.Hour,
		HeartbeatTick: time.Hour, // keep timers from firing mid-test
		SnapshotTick:  time.Hour,
	}
	r := New("ABCD", "My Room", "", cfg, fc, pub, nil, nil)
	t.Cleanup(r.Stop)
	return r
}

func TestJoinFirstMemberBecomesHost(t *testing.T) {
	fc := clock.NewFake(1_000_000)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	snap, err := r.Join(JoinParams{ConnID: "c1", Nickname: "Alice"})
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)
	assert.True(t, snap.Members[0].IsHost)
	assert.Equal(t, "Alice", snap.Members[0].Nickname)
}

func TestJoinPasswordMismatch(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	cfg := DefaultConfig()
	r := New("ABCD", "Room", "secret", cfg, fc, pub, nil, nil)
	t.Cleanup(r.Stop)

	_, err := r.Join(JoinParams{ConnID: "c1", Nickname: "Alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestJoinRoomFull(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub) // MaxMembers: 3

	for i, id := range []string{"c1", "c2", "c3"} {
		_, err := r.Join(JoinParams{ConnID: id, Nickname: "u"})
		require.NoErrorf(t, err, "member %d", i)
	}

	_, err := r.Join(JoinParams{ConnID: "c4", Nickname: "overflow"})
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinSanitizesBlankNickname(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	snap, err := r.Join(JoinParams{ConnID: "c1", Nickname: "   "})
	require.NoError(t, err)
	assert.Equal(t, "Viewer-01", snap.Members[0].Nickname)
}

func TestSecondJoinIntoRoomWithMediaArmsStartupGate(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)

	dur := 1000.0
	_, err = r.SelectMedia(SelectMediaParams{
		ConnID: "host", Name: "movie.mp4", Size: 100, SHA256: "abc", DurationSec: &dur, MediaID: "m1",
	})
	require.NoError(t, err)

	snap, err := r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)
	assert.True(t, snap.IsPreparing, "joining a room that already has media arms the startup gate")
}

func TestJoinIntoActivelyPlayingRoomForcePausesAndAutoResumes(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)

	dur := 100.0
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "host", SHA256: "s", Size: 1, DurationSec: &dur, MediaID: "m"})
	require.NoError(t, err)

	// Clear the gate SelectMedia armed and get the room actually playing,
	// with just the host in the room.
	r.ReportBuffering(ReportBufferingParams{ConnID: "host", CanPlayThrough: true})
	r.PlaybackControl(PlaybackControlParams{ConnID: "host", Position: 0, Paused: false, Rate: 1, Reason: ReasonUser})

	preJoin := r.RequestSnapshot("host")
	require.False(t, preJoin.PlaybackState.Paused, "setup: room must be actively playing before the second join")
	require.False(t, preJoin.IsPreparing)

	snap, err := r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)
	assert.True(t, snap.IsPreparing, "joining re-arms the startup gate")
	assert.True(t, snap.PlaybackState.Paused, "a room that was playing is force-paused while the gate re-arms (Preparing implies not-Playing)")
	assert.True(t, snap.PendingStartRequested, "the 'was playing' bit is carried forward so the gate can auto-resume")

	// The guest reports ready without any playback:control frame; step()
	// (run from inside ReportBuffering) must auto-disarm and auto-resume.
	r.ReportBuffering(ReportBufferingParams{ConnID: "guest", CanPlayThrough: true})
	// recompute guest's media match so it counts as startup-ready.
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "guest", SHA256: "s", Size: 1, DurationSec: &dur})
	require.NoError(t, err)
	r.ReportBuffering(ReportBufferingParams{ConnID: "guest", CanPlayThrough: true})

	resumed := r.RequestSnapshot("host")
	assert.False(t, resumed.IsPreparing, "gate auto-disarms once every member is startup-ready")
	assert.False(t, resumed.PlaybackState.Paused, "playback auto-resumes without a client resending playback:control")
}

func TestSelectMediaByHostReplacesMediaAndResetsTelemetry(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)

	r.ReportBuffering(ReportBufferingParams{ConnID: "guest", Buffering: true, ReadyState: 1})

	dur := 120.0
	res, err := r.SelectMedia(SelectMediaParams{
		ConnID: "host", Name: "clip.mp4", Size: 42, SHA256: "xyz", DurationSec: &dur, MediaID: "m2",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot.Media)
	assert.Equal(t, "clip.mp4", res.Snapshot.Media.Name)
	assert.True(t, res.Snapshot.IsPreparing)

	for _, m := range res.Snapshot.Members {
		assert.False(t, m.Buffering, "select-media resets every member's buffering telemetry")
	}
}

func TestSelectMediaByNonHostOnlyUpdatesOwnMatchState(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)

	dur := 50.0
	_, err = r.SelectMedia(SelectMediaParams{
		ConnID: "host", Name: "a.mp4", Size: 10, SHA256: "deadbeef", DurationSec: &dur, MediaID: "m1",
	})
	require.NoError(t, err)

	res, err := r.SelectMedia(SelectMediaParams{
		ConnID: "guest", SHA256: "wrong", Size: 10, DurationSec: &dur,
	})
	require.NoError(t, err)
	assert.True(t, res.MismatchOnly, "a non-host mismatch should be flagged for a targeted error")
	require.NotNil(t, res.Snapshot.Media)
	assert.Equal(t, "m1", res.Snapshot.Media.ID, "a non-host select-media call never replaces room media")
}

func TestPlaybackControlRejectedForNonMember(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	dur := 100.0
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "host", SHA256: "s", Size: 1, DurationSec: &dur, MediaID: "m"})
	require.NoError(t, err)

	before := pub.count()
	r.PlaybackControl(PlaybackControlParams{ConnID: "ghost", Position: 10, Paused: false, Rate: 1, Reason: ReasonUser})
	assert.Equal(t, before, pub.count(), "an unknown connID must not move playback or broadcast")
}

func TestPlaybackControlHoldsUnpauseUntilStartupReady(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)

	dur := 100.0
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "host", SHA256: "s", Size: 1, DurationSec: &dur, MediaID: "m"})
	require.NoError(t, err)

	r.PlaybackControl(PlaybackControlParams{ConnID: "host", Position: 0, Paused: false, Rate: 1, Reason: ReasonUser})

	snap := r.RequestSnapshot("host")
	assert.True(t, snap.PlaybackState.Paused, "unpause is held back until every member clears the startup gate")
	assert.True(t, snap.PendingStartRequested)
}

func TestPlaybackControlUnpausesOnceAllStartupReady(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)

	dur := 100.0
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "host", SHA256: "s", Size: 1, DurationSec: &dur, MediaID: "m"})
	require.NoError(t, err)
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "guest", SHA256: "s", Size: 1, DurationSec: &dur})
	require.NoError(t, err)

	r.ReportBuffering(ReportBufferingParams{ConnID: "host", CanPlayThrough: true})
	r.ReportBuffering(ReportBufferingParams{ConnID: "guest", CanPlayThrough: true})

	r.PlaybackControl(PlaybackControlParams{ConnID: "host", Position: 0, Paused: false, Rate: 1, Reason: ReasonUser})

	snap := r.RequestSnapshot("host")
	assert.False(t, snap.PlaybackState.Paused, "once every member reports ready the host's unpause goes through")
	assert.False(t, snap.IsPreparing)
}

func TestPlaybackControlStrictModeDropsUnpauseWhileBuffering(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)

	dur := 100.0
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "host", SHA256: "s", Size: 1, DurationSec: &dur, MediaID: "m"})
	require.NoError(t, err)
	_, err = r.SelectMedia(SelectMediaParams{ConnID: "guest", SHA256: "s", Size: 1, DurationSec: &dur})
	require.NoError(t, err)

	// clear the startup gate for both members first.
	r.ReportBuffering(ReportBufferingParams{ConnID: "host", CanPlayThrough: true})
	r.ReportBuffering(ReportBufferingParams{ConnID: "guest", CanPlayThrough: true})
	r.PlaybackControl(PlaybackControlParams{ConnID: "host", Position: 0, Paused: false, Rate: 1, Reason: ReasonUser})

	require.NoError(t, r.SetSyncMode(SetSyncModeParams{ConnID: "host", Mode: SyncModeStrict}))

	r.PlaybackControl(PlaybackControlParams{ConnID: "host", Position: 5, Paused: true, Rate: 1, Reason: ReasonUser})
	r.ReportBuffering(ReportBufferingParams{ConnID: "guest", Buffering: true, ReadyState: 1})

	before := r.RequestSnapshot("host").PlaybackState

	r.PlaybackControl(PlaybackControlParams{ConnID: "host", Position: 5, Paused: false, Rate: 1, Reason: ReasonUser})

	after := r.RequestSnapshot("host").PlaybackState
	assert.Equal(t, before.Paused, after.Paused, "strict mode silently drops an unpause while any member buffers")
	assert.True(t, after.Paused)
}

func TestSetSyncModeRejectsNonHost(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)

	err = r.SetSyncMode(SetSyncModeParams{ConnID: "guest", Mode: SyncModeStrict})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestLeaveReassignsHostToOldestRemaining(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "guest", Nickname: "Guest"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := r.Leave(ctx, "host")
	assert.False(t, res.RoomEmpty)

	snap := r.RequestSnapshot("guest")
	require.Len(t, snap.Members, 1)
	assert.True(t, snap.Members[0].IsHost)
	assert.Equal(t, "guest", snap.Members[0].ConnID)
}

func TestLeaveLastMemberReportsRoomEmpty(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := r.Leave(ctx, "host")
	assert.True(t, res.RoomEmpty)
}

func TestDisconnectDoesNotWaitOnAckTimeout(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)

	res := r.Disconnect("host")
	assert.True(t, res.RoomEmpty)
}

func TestReattachPreservesHostAndTelemetry(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "old-conn", Nickname: "Host"})
	require.NoError(t, err)

	res := r.Reattach("old-conn", "new-conn")
	require.True(t, res.OK)
	require.Len(t, res.Snapshot.Members, 1)
	assert.Equal(t, "new-conn", res.Snapshot.Members[0].ConnID)
	assert.True(t, res.Snapshot.Members[0].IsHost)

	assert.True(t, r.IsHost("new-conn"))
	assert.False(t, r.IsHost("old-conn"))
}

func TestReattachFailsWhenOldConnGone(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	res := r.Reattach("never-joined", "new-conn")
	assert.False(t, res.OK)
}

func TestReattachFailsWhenNewConnAlreadyMember(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "c1", Nickname: "A"})
	require.NoError(t, err)
	_, err = r.Join(JoinParams{ConnID: "c2", Nickname: "B"})
	require.NoError(t, err)

	res := r.Reattach("c1", "c2")
	assert.False(t, res.OK)
}

func TestMediaReplaceReleasesPreviousFile(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	r := newTestRoom(t, fc, pub)

	_, err := r.Join(JoinParams{ConnID: "host", Nickname: "Host"})
	require.NoError(t, err)

	first := &fakeFile{}
	dur := 10.0
	_, err = r.SelectMedia(SelectMediaParams{
		ConnID: "host", Name: "a.mp4", Size: 1, SHA256: "a", DurationSec: &dur, MediaID: "m1", File: first,
	})
	require.NoError(t, err)

	_, err = r.SelectMedia(SelectMediaParams{
		ConnID: "host", Name: "b.mp4", Size: 2, SHA256: "b", DurationSec: &dur, MediaID: "m2", File: &fakeFile{},
	})
	require.NoError(t, err)

	assert.True(t, first.released, "replacing the room's media releases the previous file handle")
}

func TestIsEmptyIdleRespectsTTL(t *testing.T) {
	fc := clock.NewFake(0)
	pub := &fakePublisher{}
	cfg := Config{MaxMembers: 3, RoomIdleTTL: time.Minute, HeartbeatTick: time.Hour, SnapshotTick: time.Hour}
	r := New("ABCD", "Room", "", cfg, fc, pub, nil, nil)
	t.Cleanup(r.Stop)

	assert.False(t, r.IsEmptyIdle(fc.NowMs()), "brand new empty room is not idle yet")

	fc.Advance(2 * time.Minute)
	assert.True(t, r.IsEmptyIdle(fc.NowMs()))
}
