package room

import (
	"context"
	"time"
)

// JoinParams is the input to Join (spec §4.1, wire: room:join).
type JoinParams struct {
	ConnID   string
	Nickname string
	Password string
}

// Join admits connID into the room, or returns an error. On success Join
// itself broadcasts the new snapshot to the other members; callers only
// deliver the returned snapshot to connID itself (the join RPC response).
func (r *Room) Join(p JoinParams) (RoomSnapshot, error) {
	var snap RoomSnapshot
	var err error
	r.exec(func() {
		snap, err = r.join(p)
	})
	return snap, err
}

func (r *Room) join(p JoinParams) (RoomSnapshot, error) {
	_, alreadyMember := r.members.Get(p.ConnID)

	if !alreadyMember {
		if r.password != "" && sanitizePassword(p.Password) != r.password {
			return RoomSnapshot{}, ErrPasswordMismatch
		}
		if r.members.Len() >= r.cfg.MaxMembers {
			return RoomSnapshot{}, ErrRoomFull
		}
	}

	now := r.clk.NowMs()
	isFirst := r.members.Len() == 0

	member := &Member{
		ConnID:        p.ConnID,
		Nickname:      sanitizeNickname(p.Nickname, r.members.Len()+1),
		ConnectedAtMs: now,
		MediaMatch:    MediaMatchMissing,
	}
	r.members.Add(member)

	if isFirst {
		r.hostConnID = p.ConnID
		member.IsHost = true
	} else if r.media.media != nil {
		// Join into a non-empty room that already has media: arm the
		// startup gate and remember whether playback should resume once
		// everyone (re)confirms readiness (spec §4.1). Preparing implies
		// not-Playing (spec §4.2), so a room that was actively playing is
		// force-paused here; pendingStartRequested carries the "was playing"
		// bit forward so step() can auto-resume on its own once every member
		// becomes startup-ready, without waiting for a client to resend
		// playback:control.
		r.wasPlayingBeforeGate = !r.playback.Paused
		r.gate.arm(r.mediaDuration())
		if r.wasPlayingBeforeGate {
			r.playback = markPlayback(r.playback, now, r.currentPosition(), true, r.playback.Rate, "", ReasonStartupGate)
			r.gate.pendingStartRequested = true
		}
	}

	r.touch()
	snap := r.snapshotLocked()

	if !isFirst {
		others := otherConnIDs(r.allConnIDs(), p.ConnID)
		if r.publisher != nil && len(others) > 0 {
			r.publisher.Broadcast(others, snapshotMessage{Type: "room:snapshot", Payload: snap})
		}
	}
	r.notifyPersistence()

	return snap, nil
}

// SelectMediaParams is the input to SelectMedia (wire: room:select-media).
// File is only consulted when ConnID is the host; ClientSHA256/Size/
// DurationSec are always consulted to recompute that member's match state.
type SelectMediaParams struct {
	ConnID      string
	Name        string
	MimeType    string
	Size        int64
	DurationSec *float64
	SHA256      string
	MediaID     string
	File        FileHandle
}

type SelectMediaResult struct {
	Snapshot      RoomSnapshot
	MismatchOnly  bool // non-host mismatch: caller should emit room:error to ConnID only
}

func (r *Room) SelectMedia(p SelectMediaParams) (SelectMediaResult, error) {
	var res SelectMediaResult
	var err error
	r.exec(func() {
		res, err = r.selectMedia(p)
	})
	return res, err
}

func (r *Room) selectMedia(p SelectMediaParams) (SelectMediaResult, error) {
	if _, ok := r.members.Get(p.ConnID); !ok {
		return SelectMediaResult{}, ErrNotMember
	}

	if p.ConnID != r.hostConnID {
		m, _ := r.members.Get(p.ConnID)
		m.ClientSHA256 = p.SHA256
		m.ClientSize = p.Size
		m.ClientDurationSec = p.DurationSec
		m.MediaMatch = recomputeMediaMatch(r.media.media, m)

		r.touch()
		snap := r.snapshotLocked()
		mismatch := m.MediaMatch != MediaMatchMatched

		if r.publisher != nil {
			r.publisher.Broadcast(r.allConnIDs(), snapshotMessage{Type: "room:snapshot", Payload: snap})
		}

		return SelectMediaResult{Snapshot: snap, MismatchOnly: mismatch}, nil
	}

	now := r.clk.NowMs()
	desc := &MediaDescriptor{
		ID:          p.MediaID,
		Name:        p.Name,
		Size:        p.Size,
		MimeType:    p.MimeType,
		DurationSec: p.DurationSec,
		SHA256:      p.SHA256,
		SelectedAt:  now,
	}
	r.media.ReplaceMedia(desc, p.File)

	r.members.Range(func(m *Member) {
		m.Buffering = false
		m.StartupReady = false
		m.BufferAheadSeconds = 0
		m.ReadyState = 0
		m.CanPlayThrough = false
		m.BufferingStartedAtMs = 0

		if m.ConnID == r.hostConnID {
			m.MediaMatch = MediaMatchMatched
			m.ClientSHA256 = p.SHA256
			m.ClientSize = p.Size
			m.ClientDurationSec = p.DurationSec
		} else {
			m.MediaMatch = recomputeMediaMatch(r.media.media, m)
		}
	})

	r.playback = markPlayback(r.playback, now, 0, true, 1, r.hostConnID, ReasonMediaTransfer)
	r.gate.arm(desc.DurationSec)
	r.wasPlayingBeforeGate = false

	r.touch()
	snap := r.snapshotLocked()

	if r.publisher != nil {
		r.publisher.Broadcast(r.allConnIDs(), snapshotMessage{Type: "room:snapshot", Payload: snap})
		r.publisher.Broadcast(r.allConnIDs(), playbackMessage{Type: "playback:state", Payload: r.envelopeLocked()})
	}
	r.notifyPersistence()

	return SelectMediaResult{Snapshot: snap}, nil
}

// PlaybackControlParams is the input to PlaybackControl (wire:
// playback:control).
type PlaybackControlParams struct {
	ConnID string
	Position float64
	Paused   bool
	Rate     float64
	Reason   Reason
}

func (r *Room) PlaybackControl(p PlaybackControlParams) {
	r.exec(func() {
		r.playbackControl(p)
	})
}

func (r *Room) playbackControl(p PlaybackControlParams) {
	if r.media.media == nil {
		return
	}
	if _, ok := r.members.Get(p.ConnID); !ok {
		return
	}

	members := r.members.All()
	isUnpause := !p.Paused

	if r.gate.startupActive && isUnpause {
		target := effectiveTarget(r.gate.startupTargetSec, r.mediaDuration(), r.currentPosition())
		if !allStartupReady(members, target) {
			r.gate.pendingStartRequested = true
			r.playback = markPlayback(r.playback, r.clk.NowMs(), r.currentPosition(), true, r.playback.Rate, p.ConnID, ReasonStartupGate)
			r.touch()
			if r.publisher != nil {
				r.publisher.Broadcast(r.allConnIDs(), playbackMessage{Type: "playback:state", Payload: r.envelopeLocked()})
			}
			return
		}
		// Every member already clears the gate (e.g. telemetry reported
		// readiness before this unpause arrived): disarm it here instead of
		// waiting on the next step() call, so Preparing drops to false in
		// the same response that unpauses (spec §4.2 mutual exclusion).
		r.gate.startupActive = false
		r.gate.pendingStartRequested = false
	}

	if r.syncMode == SyncModeStrict && isUnpause && anyBuffering(members) {
		// spec §4.1: drop silently.
		return
	}

	r.playback = markPlayback(r.playback, r.clk.NowMs(), p.Position, p.Paused, p.Rate, p.ConnID, p.Reason)
	r.touch()

	if r.publisher != nil {
		r.publisher.Broadcast(r.allConnIDs(), playbackMessage{Type: "playback:state", Payload: r.envelopeLocked()})
	}
	r.notifyPersistence()
}

// ReportBufferingParams is the input to ReportBuffering (wire:
// client:buffering).
type ReportBufferingParams struct {
	ConnID             string
	Buffering          bool
	BufferAheadSeconds float64
	ReadyState         int
	CanPlayThrough     bool
}

func (r *Room) ReportBuffering(p ReportBufferingParams) {
	r.exec(func() {
		r.reportBuffering(p)
	})
}

func (r *Room) reportBuffering(p ReportBufferingParams) {
	m, ok := r.members.Get(p.ConnID)
	if !ok {
		return
	}

	now := r.clk.NowMs()
	wasBuffering := m.Buffering

	m.Buffering = p.Buffering
	m.BufferAheadSeconds = p.BufferAheadSeconds
	m.ReadyState = p.ReadyState
	m.CanPlayThrough = p.CanPlayThrough

	if p.Buffering && !wasBuffering {
		m.BufferingStartedAtMs = now
	} else if !p.Buffering {
		m.BufferingStartedAtMs = 0
	}

	r.touch()
	r.step()

	if r.publisher != nil {
		r.publisher.Broadcast(r.allConnIDs(), snapshotMessage{Type: "room:snapshot", Payload: r.snapshotLocked()})
	}
}

// step advances both gates. Called after a buffering report, a sync-mode
// change and a member removal (spec §4.3).
func (r *Room) step() {
	if r.media.media == nil {
		return
	}

	now := r.clk.NowMs()
	members := r.members.All()
	pos := r.currentPosition()
	duration := r.mediaDuration()

	// Startup gate disarm (spec §4.3, §9 ordering Open Question: snapshot
	// broadcasts after disarming, then the playback envelope).
	if r.gate.startupActive {
		startupTarget := effectiveTarget(r.gate.startupTargetSec, duration, pos)
		ready := allStartupReady(members, startupTarget)

		r.members.Range(func(m *Member) {
			m.StartupReady = isStartupReady(*m, startupTarget)
		})

		if ready && r.gate.pendingStartRequested {
			r.gate.startupActive = false
			r.gate.pendingStartRequested = false

			r.playback = markPlayback(r.playback, now, pos, false, r.playback.Rate, r.hostConnID, ReasonStartupGate)

			if r.publisher != nil {
				r.publisher.Broadcast(r.allConnIDs(), snapshotMessage{Type: "room:snapshot", Payload: r.snapshotLocked()})
				r.publisher.Broadcast(r.allConnIDs(), playbackMessage{Type: "playback:state", Payload: r.envelopeLocked()})
			}
			r.notifyPersistence()
			return
		}
	}

	// Buffer gate.
	if shouldPauseForBuffering(r.syncMode, members, now, duration, pos) {
		if !r.playback.Paused {
			r.playback = markPlayback(r.playback, now, pos, true, r.playback.Rate, "", ReasonBufferLock)
			r.gate.resumeAfterBuffer = true

			if r.publisher != nil {
				r.publisher.Broadcast(r.allConnIDs(), playbackMessage{Type: "playback:state", Payload: r.envelopeLocked()})
			}
			r.notifyPersistence()
		}
		return
	}

	if r.gate.resumeAfterBuffer && !anyBuffering(members) {
		resumeTarget := effectiveTarget(r.gate.resumeTargetSec, duration, pos)
		if allResumeReady(members, resumeTarget) {
			r.gate.resumeAfterBuffer = false
			r.playback = markPlayback(r.playback, now, pos, false, r.playback.Rate, "", ReasonBufferLock)

			if r.publisher != nil {
				r.publisher.Broadcast(r.allConnIDs(), playbackMessage{Type: "playback:state", Payload: r.envelopeLocked()})
			}
			r.notifyPersistence()
		}
	}
}

// SetSyncModeParams is the input to SetSyncMode (wire: room:config).
type SetSyncModeParams struct {
	ConnID string
	Mode   SyncMode
}

func (r *Room) SetSyncMode(p SetSyncModeParams) error {
	var err error
	r.exec(func() {
		err = r.setSyncMode(p)
	})
	return err
}

func (r *Room) setSyncMode(p SetSyncModeParams) error {
	if p.ConnID != r.hostConnID {
		return ErrPermissionDenied
	}

	r.syncMode = p.Mode
	if p.Mode == SyncModeSoft {
		r.gate.resumeAfterBuffer = false
	}

	r.touch()
	r.step()

	if r.publisher != nil {
		r.publisher.Broadcast(r.allConnIDs(), snapshotMessage{Type: "room:snapshot", Payload: r.snapshotLocked()})
	}

	return nil
}

// LeaveOrDisconnectResult is returned by both Leave and Disconnect.
type LeaveOrDisconnectResult struct {
	RoomEmpty bool
}

// leaveAckTimeout bounds how long Leave waits for the command to actually
// run before telling its caller to treat it as acknowledged anyway (spec
// §5: the command still executes — the caller simply stops waiting).
const leaveAckTimeout = 400 * time.Millisecond

func (r *Room) Leave(ctx context.Context, connID string) LeaveOrDisconnectResult {
	var res LeaveOrDisconnectResult
	r.execTimeout(ctx, leaveAckTimeout, func() {
		res = r.removeMember(connID)
	})
	return res
}

func (r *Room) Disconnect(connID string) LeaveOrDisconnectResult {
	var res LeaveOrDisconnectResult
	r.exec(func() {
		res = r.removeMember(connID)
	})
	return res
}

func (r *Room) removeMember(connID string) LeaveOrDisconnectResult {
	wasHost := connID == r.hostConnID
	r.members.Remove(connID)
	r.touch()

	if r.members.Len() == 0 {
		r.hostConnID = ""
		r.notifyPersistence()
		return LeaveOrDisconnectResult{RoomEmpty: true}
	}

	if wasHost {
		oldest := r.members.Oldest()
		r.hostConnID = oldest.ConnID
		oldest.IsHost = true
	}

	r.step()

	if r.publisher != nil {
		r.publisher.Broadcast(r.allConnIDs(), snapshotMessage{Type: "room:snapshot", Payload: r.snapshotLocked()})
	}
	r.notifyPersistence()

	return LeaveOrDisconnectResult{RoomEmpty: false}
}

// ReattachResult is returned by Reattach.
type ReattachResult struct {
	Snapshot RoomSnapshot
	OK       bool
}

// Reattach re-keys an existing member record from oldConnID to newConnID,
// preserving host status and telemetry, for the reconnect-token supplement
// (SPEC_FULL.md §6: "join accepts an optional reconnectToken"). It is a
// no-op failure if oldConnID is no longer present (already evicted, or
// another connection already reattached it) or newConnID is already a
// member of the room.
func (r *Room) Reattach(oldConnID, newConnID string) ReattachResult {
	var res ReattachResult
	r.exec(func() {
		res = r.reattach(oldConnID, newConnID)
	})
	return res
}

func (r *Room) reattach(oldConnID, newConnID string) ReattachResult {
	if oldConnID == newConnID {
		if _, ok := r.members.Get(newConnID); ok {
			return ReattachResult{Snapshot: r.snapshotLocked(), OK: true}
		}
		return ReattachResult{OK: false}
	}

	m, ok := r.members.Get(oldConnID)
	if !ok {
		return ReattachResult{OK: false}
	}
	if _, taken := r.members.Get(newConnID); taken {
		return ReattachResult{OK: false}
	}

	r.members.Remove(oldConnID)
	m.ConnID = newConnID
	r.members.Add(m)

	if r.hostConnID == oldConnID {
		r.hostConnID = newConnID
	}

	r.touch()
	snap := r.snapshotLocked()

	others := otherConnIDs(r.allConnIDs(), newConnID)
	if r.publisher != nil && len(others) > 0 {
		r.publisher.Broadcast(others, snapshotMessage{Type: "room:snapshot", Payload: snap})
	}
	r.notifyPersistence()

	return ReattachResult{Snapshot: snap, OK: true}
}

// IsHost reports whether connID currently holds the host role, for the
// HTTP media/subtitle upload handlers' permission check (spec §6: "403 if
// not host").
func (r *Room) IsHost(connID string) bool {
	var isHost bool
	r.exec(func() {
		isHost = connID != "" && connID == r.hostConnID
	})
	return isHost
}

func (r *Room) RequestSnapshot(connID string) RoomSnapshot {
	var snap RoomSnapshot
	r.exec(func() {
		snap = r.snapshotLocked()
	})
	return snap
}

func (r *Room) RequestPlayback(connID string) PlaybackEnvelope {
	var env PlaybackEnvelope
	r.exec(func() {
		env = r.envelopeLocked()
	})
	return env
}
