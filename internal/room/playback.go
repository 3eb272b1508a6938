package room

// markPlayback is the only mutator of PlaybackState (spec §4.2): it stamps
// updatedAt, clamps position/rate, and records who/why.
func markPlayback(prev PlaybackState, nowMs int64, position float64, paused bool, rate float64, updatedBy string, reason Reason) PlaybackState {
	return PlaybackState{
		Position:  clampPosition(position),
		Paused:    paused,
		Rate:      clampRate(rate),
		UpdatedAt: nowMs,
		UpdatedBy: updatedBy,
		Reason:    reason,
	}
}
