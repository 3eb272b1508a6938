package room

// gateState holds the Gate Controller's per-room mutable state: the
// startup gate and the buffer gate (spec §4.3). Both gates are advanced by
// Room.step, called after a buffering report, a sync-mode change and a
// member removal.
type gateState struct {
	startupActive         bool
	pendingStartRequested bool
	startupTargetSec      float64
	resumeTargetSec       float64
	resumeAfterBuffer     bool
}

// arm (re)arms the startup gate for a freshly selected (or newly relevant)
// media item, computing both buffer targets from its duration per spec
// §4.3's defaults.
func (g *gateState) arm(durationSec *float64) {
	g.startupActive = true
	g.pendingStartRequested = false
	g.resumeAfterBuffer = false
	g.startupTargetSec = defaultStartupTarget(durationSec)
	g.resumeTargetSec = defaultResumeTarget(durationSec)
}

func defaultStartupTarget(durationSec *float64) float64 {
	if durationSec == nil {
		return 12
	}
	return clampf(*durationSec*0.02, 8, 24)
}

func defaultResumeTarget(durationSec *float64) float64 {
	if durationSec == nil {
		return 6
	}
	return clampf(*durationSec*0.01, 3, 10)
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// effectiveTarget clips target by the remaining duration (duration -
// currentPosition), floored at 0.8s, or 0 if there is no known remaining
// duration (spec §4.3).
func effectiveTarget(target float64, durationSec *float64, currentPosition float64) float64 {
	if durationSec == nil {
		return 0
	}

	remaining := *durationSec - currentPosition
	if remaining <= 0 {
		return 0
	}

	if target > remaining {
		target = remaining
	}
	if target < 0.8 {
		target = 0.8
	}

	return target
}

// isStartupReady implements the per-member startup-ready predicate (spec
// §4.3).
func isStartupReady(m Member, target float64) bool {
	if m.MediaMatch != MediaMatchMatched {
		return false
	}

	if m.CanPlayThrough {
		return true
	}
	if m.ReadyState >= 4 {
		return true
	}
	if m.ReadyState >= 3 && m.BufferAheadSeconds >= target {
		return true
	}

	return false
}

// isResumeReady implements the per-member resume-ready predicate (spec
// §4.3).
func isResumeReady(m Member, target float64) bool {
	if m.MediaMatch != MediaMatchMatched {
		return false
	}
	if m.Buffering {
		return false
	}

	if m.CanPlayThrough {
		return true
	}
	if m.ReadyState >= 4 {
		return true
	}
	if m.ReadyState >= 3 && m.BufferAheadSeconds >= target {
		return true
	}

	return false
}

// softBufferGraceMs depends on remaining duration (spec §4.3).
func softBufferGraceMs(durationSec *float64, currentPosition float64) int64 {
	if durationSec == nil {
		return 900
	}

	remaining := *durationSec - currentPosition
	switch {
	case remaining <= 5:
		return 0
	case remaining <= 15:
		return 350
	default:
		return 900
	}
}

// shouldPauseForBuffering implements spec §4.3's buffer gate predicate.
func shouldPauseForBuffering(mode SyncMode, members []Member, nowMs int64, durationSec *float64, currentPosition float64) bool {
	grace := softBufferGraceMs(durationSec, currentPosition)

	for _, m := range members {
		if !m.Buffering {
			continue
		}

		if mode == SyncModeStrict {
			return true
		}
		if m.ReadyState < 3 {
			return true
		}
		if m.BufferingStartedAtMs != 0 && nowMs-m.BufferingStartedAtMs >= grace {
			return true
		}
	}

	return false
}

func anyBuffering(members []Member) bool {
	for _, m := range members {
		if m.Buffering {
			return true
		}
	}
	return false
}

func bufferingUserIDs(members []Member) []string {
	ids := make([]string, 0)
	for _, m := range members {
		if m.Buffering {
			ids = append(ids, m.ConnID)
		}
	}
	return ids
}

func allStartupReady(members []Member, target float64) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !isStartupReady(m, target) {
			return false
		}
	}
	return true
}

func allResumeReady(members []Member, target float64) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !isResumeReady(m, target) {
			return false
		}
	}
	return true
}
