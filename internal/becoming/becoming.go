// Package becoming enforces the mission-unknown policy around the
// becoming phrase: no premature or framework-internal aspirations while the
// mission is still being discovered.
package becoming

import (
	"fmt"
	"strings"

	"github.com/danshapiro/wdib/internal/state"
)

// DiscoveryMinDay is the first day a becoming may stick while the mission is
// unknown.
const DiscoveryMinDay = 3

var frameworkMarkers = []string{
	"wdib",
	"control-plane",
	"control plane",
	"worker_result",
	"schema",
	"task machinery",
	"verified tasks",
	"runtime reliability",
	"autonomous loop",
}

// LooksFrameworkInternal reports whether a becoming phrase is about the
// control plane itself rather than the human or the environment.
func LooksFrameworkInternal(text string) bool {
	value := strings.ToLower(strings.TrimSpace(text))
	if value == "" {
		return false
	}
	for _, marker := range frameworkMarkers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}

// ClearFromState applies the pre-cycle policy: while the mission is unknown,
// an early or framework-internal becoming is cleared from state. Returns the
// BECOMING_CLEARED event, or nil when nothing changed.
func ClearFromState(st *state.State, missionUnknown bool) *state.Event {
	if !missionUnknown {
		return nil
	}
	existing := strings.TrimSpace(st.Purpose.Becoming)
	if existing == "" {
		return nil
	}
	if st.Day < DiscoveryMinDay {
		st.Purpose.Becoming = ""
		ev := state.NewEvent(state.EventBecomingCleared, map[string]any{
			"from": existing,
			"reason": "Mission is unknown and discovery is still in progress; " +
				"becoming remains unset until sustained evidence across multiple cycles.",
		})
		return &ev
	}
	if !LooksFrameworkInternal(existing) {
		return nil
	}
	st.Purpose.Becoming = ""
	ev := state.NewEvent(state.EventBecomingCleared, map[string]any{
		"from":   existing,
		"reason": "MISSION.md is empty and becoming was framework-internal; continue mission discovery from external evidence.",
	})
	return &ev
}

// RejectFromResult applies the post-worker policy: while the mission is
// unknown, a proposed becoming is dropped from the worker result when it is
// framework-internal or proposed before the discovery threshold. Returns the
// BECOMING_REJECTED event, or nil when the proposal stands.
func RejectFromResult(res *state.WorkerResult, missionUnknown bool, day int) *state.Event {
	if !missionUnknown {
		return nil
	}
	candidate := strings.TrimSpace(res.Becoming)
	if candidate == "" {
		return nil
	}
	if LooksFrameworkInternal(candidate) {
		res.Becoming = ""
		ev := state.NewEvent(state.EventBecomingRejected, map[string]any{
			"candidate": candidate,
			"reason":    "MISSION.md is empty and candidate becoming was framework-internal; propose human/environment outcomes instead.",
		})
		return &ev
	}
	if day < DiscoveryMinDay {
		res.Becoming = ""
		ev := state.NewEvent(state.EventBecomingRejected, map[string]any{
			"candidate": candidate,
			"reason": fmt.Sprintf("Mission is unknown and day %03d is too early to lock becoming; "+
				"continue evidence-building across multiple cycles first.", day),
		})
		return &ev
	}
	return nil
}
