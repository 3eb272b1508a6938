package room

// snapshotLocked materializes a RoomSnapshot from current state. Must only
// be called from the command goroutine.
func (r *Room) snapshotLocked() RoomSnapshot {
	members := r.members.All()

	snaps := make([]MemberSnapshot, 0, len(members))
	// host first, per spec §3 RoomSnapshot "sorted members (host first)".
	for _, m := range members {
		if m.ConnID == r.hostConnID {
			snaps = append(snaps, toMemberSnapshot(m))
		}
	}
	for _, m := range members {
		if m.ConnID != r.hostConnID {
			snaps = append(snaps, toMemberSnapshot(m))
		}
	}

	return RoomSnapshot{
		RoomID:                r.ID,
		RoomName:              r.name,
		RequiresPassword:      r.password != "",
		SyncMode:              r.syncMode,
		Members:               snaps,
		Media:                 r.media.media,
		Subtitle:              r.media.subtitle,
		PlaybackState:         r.playback,
		IsPreparing:           r.gate.startupActive,
		PendingStartRequested: r.gate.pendingStartRequested,
		MaxMembers:            r.cfg.MaxMembers,
		ServerTime:            r.clk.NowMs(),
	}
}

func toMemberSnapshot(m Member) MemberSnapshot {
	return MemberSnapshot{
		ConnID:             m.ConnID,
		Nickname:           m.Nickname,
		IsHost:             m.IsHost,
		MediaMatch:         m.MediaMatch,
		Buffering:          m.Buffering,
		StartupReady:       m.StartupReady,
		BufferAheadSeconds: m.BufferAheadSeconds,
		ReadyState:         m.ReadyState,
		CanPlayThrough:     m.CanPlayThrough,
	}
}

func (r *Room) envelopeLocked() PlaybackEnvelope {
	return PlaybackEnvelope{
		PlaybackState:  r.playback,
		ServerTime:     r.clk.NowMs(),
		BufferingUsers: bufferingUserIDs(r.members.All()),
	}
}

func (r *Room) allConnIDs() []string {
	return r.members.IDs()
}

func (r *Room) broadcastSnapshotLocked() {
	if r.publisher == nil || r.members.Len() == 0 {
		return
	}
	r.publisher.Broadcast(r.allConnIDs(), snapshotMessage{Type: "room:snapshot", Payload: r.snapshotLocked()})
	r.notifyPersistence()
}

func (r *Room) broadcastPlaybackLocked() {
	if r.publisher == nil || r.members.Len() == 0 {
		return
	}
	r.publisher.Broadcast(r.allConnIDs(), playbackMessage{Type: "playback:state", Payload: r.envelopeLocked()})
}

// broadcastSnapshot/broadcastPlaybackHeartbeat are the timer entry points,
// run directly on the command goroutine (spec §4.1 "Timers enqueue like
// any other command and compete fairly" — here they run inline, which is
// equivalent since they execute on the same single goroutine as commands).
func (r *Room) broadcastSnapshot() {
	if r.members.Len() == 0 {
		return
	}
	r.broadcastSnapshotLocked()
}

func (r *Room) broadcastPlaybackHeartbeat() {
	if r.members.Len() == 0 || r.media.media == nil {
		return
	}
	r.broadcastPlaybackLocked()
}

type snapshotMessage struct {
	Type    string       `json:"type"`
	Payload RoomSnapshot `json:"payload"`
}

type playbackMessage struct {
	Type    string           `json:"type"`
	Payload PlaybackEnvelope `json:"payload"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}
