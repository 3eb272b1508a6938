package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/WShawnMing/WatchTogether/internal/clock"
)

// Publisher fans broadcasts out to connections. The Room Coordinator never
// holds connection references itself — it produces (targets, message)
// pairs and hands them to a Publisher owned by the transport layer (spec
// §9 design notes).
type Publisher interface {
	Broadcast(targets []string, v any)
	Send(target string, v any)
}

// PersistSink receives best-effort, asynchronous room bookkeeping after a
// command commits. It exists purely for crash-recoverable idle-eviction
// state; nothing in the Room Coordinator ever waits on it (spec §5: all
// Room-Coordinator logic is CPU-only and non-blocking). A nil PersistSink
// disables persistence entirely.
type PersistSink interface {
	Notify(snapshot RoomSnapshot)
}

// command is a thunk executed exclusively on the Room's single
// command-processing goroutine, giving every operation in spec §4.1 a
// strict happens-before order equal to its enqueue order (spec §5).
type command struct {
	run  func()
	done chan struct{}
}

type Room struct {
	ID  string
	cfg Config

	clk       clock.Clock
	publisher Publisher
	logger    *slog.Logger
	persist   PersistSink

	cmdCh  chan command
	stopCh chan struct{}

	// --- state below is touched only inside the run loop goroutine ---
	name                 string
	password             string
	hostConnID           string
	syncMode             SyncMode
	members              *memberTable
	media                *mediaRegistry
	playback             PlaybackState
	gate                 gateState
	lastActiveAtMs       int64
	wasPlayingBeforeGate bool
}

func New(id, name, password string, cfg Config, clk clock.Clock, pub Publisher, logger *slog.Logger, persist PersistSink) *Room {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Room{
		ID:        id,
		cfg:       cfg,
		clk:       clk,
		publisher: pub,
		logger:    logger.With("room_id", id),
		persist:   persist,
		cmdCh:     make(chan command, 128),
		stopCh:    make(chan struct{}),
		name:      name,
		password:  password,
		syncMode:  SyncModeSoft,
		members:   newMemberTable(),
		media:     newMediaRegistry(),
		playback:  markPlayback(PlaybackState{}, clk.NowMs(), 0, true, 1, "", ReasonMediaTransfer),
	}
	r.lastActiveAtMs = clk.NowMs()

	go r.loop()

	return r
}

func (r *Room) loop() {
	heartbeat := time.NewTicker(r.cfg.HeartbeatTick)
	snapshot := time.NewTicker(r.cfg.SnapshotTick)
	defer heartbeat.Stop()
	defer snapshot.Stop()

	for {
		select {
		case cmd := <-r.cmdCh:
			cmd.run()
			close(cmd.done)
		case <-heartbeat.C:
			r.broadcastPlaybackHeartbeat()
		case <-snapshot.C:
			r.broadcastSnapshot()
		case <-r.stopCh:
			return
		}
	}
}

// exec runs fn on the Room's command goroutine and blocks until it
// completes, or until the Room is stopped.
func (r *Room) exec(fn func()) {
	done := make(chan struct{})
	cmd := command{run: fn, done: done}

	select {
	case r.cmdCh <- cmd:
	case <-r.stopCh:
		return
	}

	select {
	case <-done:
	case <-r.stopCh:
	}
}

// execTimeout is exec with a caller-side deadline; on timeout the command
// is still queued and will still run, but the caller stops waiting (spec
// §5: "leave acknowledges within 400ms; callers must treat an
// unacknowledged leave as success").
func (r *Room) execTimeout(ctx context.Context, timeout time.Duration, fn func()) bool {
	done := make(chan struct{})
	cmd := command{run: fn, done: done}

	select {
	case r.cmdCh <- cmd:
	case <-r.stopCh:
		return false
	case <-ctx.Done():
		return false
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	case <-r.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop tears down the room's goroutine and releases held media files. It
// must only be called by the Room Registry once the room is being
// destroyed.
func (r *Room) Stop() {
	r.exec(func() {
		r.media.Release()
	})
	close(r.stopCh)
}

// IsEmptyIdle reports whether the room has no members and has been idle
// longer than cfg.RoomIdleTTL, for the Registry's cleanup sweep (spec
// §4.1).
func (r *Room) IsEmptyIdle(nowMs int64) bool {
	var empty bool
	var idleFor int64
	r.exec(func() {
		empty = r.members.Len() == 0
		idleFor = nowMs - r.lastActiveAtMs
	})

	return empty && time.Duration(idleFor)*time.Millisecond > r.cfg.RoomIdleTTL
}

func (r *Room) currentPosition() float64 {
	return DeriveCurrentPosition(r.playback, r.clk.NowMs())
}

func (r *Room) mediaDuration() *float64 {
	if r.media.media == nil {
		return nil
	}
	return r.media.media.DurationSec
}

func (r *Room) touch() {
	r.lastActiveAtMs = r.clk.NowMs()
}

func (r *Room) notifyPersistence() {
	if r.persist == nil {
		return
	}
	r.persist.Notify(r.snapshotLocked())
}
