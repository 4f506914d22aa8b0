// Package hardware advances hardware-request lifecycles from
// machine-observed detection and verification signals.
package hardware

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danshapiro/wdib/internal/cmdrun"
	"github.com/danshapiro/wdib/internal/state"
)

const (
	detectEvidenceCap = 200
	verifyEvidenceCap = 240
)

// Reconciler probes OPEN/DETECTED requests and applies status transitions.
// Probe failures never propagate; they are recorded as evidence.
type Reconciler struct {
	Runner  cmdrun.Runner
	Timeout time.Duration
	Now     func() time.Time
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func appendNote(existing, today, note string) string {
	line := fmt.Sprintf("[%s] %s", today, note)
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

func (r *Reconciler) runShell(ctx context.Context, command string) (bool, string) {
	res, err := r.Runner.Run(ctx, command, r.Timeout)
	if err != nil {
		return false, err.Error()
	}
	if res.TimedOut {
		return false, fmt.Sprintf("timeout after %ds", int(r.Timeout.Seconds()))
	}
	return res.ExitCode == 0, strings.TrimSpace(res.Output)
}

// detect evaluates one detection descriptor and returns presence plus a
// short evidence string.
func (r *Reconciler) detect(ctx context.Context, d state.Detection) (bool, string) {
	value := strings.TrimSpace(d.Value)
	switch d.Kind {
	case state.DetectPathExists:
		_, err := os.Stat(value)
		return err == nil, fmt.Sprintf("path_exists(%s)", value)
	case state.DetectGlobExists:
		matches, err := doublestar.FilepathGlob(value)
		if err != nil {
			return false, fmt.Sprintf("glob_exists(%s) -> bad pattern: %s", value, err)
		}
		return len(matches) > 0, fmt.Sprintf("glob_exists(%s) -> %d match(es)", value, len(matches))
	case state.DetectCommandSuccess:
		ok, output := r.runShell(ctx, value)
		return ok, fmt.Sprintf("command_success(%s) -> %s", value, truncate(output, detectEvidenceCap))
	case state.DetectLsusbContains:
		ok, output := r.runShell(ctx, "lsusb")
		if !ok {
			return false, fmt.Sprintf("lsusb failed: %s", truncate(output, detectEvidenceCap))
		}
		found := strings.Contains(strings.ToLower(output), strings.ToLower(value))
		return found, fmt.Sprintf("lsusb_contains(%s)", value)
	default:
		return false, fmt.Sprintf("unknown detection kind: %s", d.Kind)
	}
}

// Reconcile walks every OPEN/DETECTED request once. Transitions are
// idempotent across repeated ticks.
func (r *Reconciler) Reconcile(ctx context.Context, st *state.State) []state.Event {
	var events []state.Event
	today := state.DateOf(r.Now())

	for i := range st.HardwareRequests {
		req := &st.HardwareRequests[i]
		if req.Status == state.HardwareVerified || req.Status == state.HardwareFailed {
			continue
		}

		checked := today
		req.LastCheckedOn = &checked

		detected, evidence := r.detect(ctx, req.Detection)
		previous := req.Status

		switch {
		case detected:
			if req.Status == state.HardwareOpen {
				req.Status = state.HardwareDetected
				detectedOn := today
				req.DetectedOn = &detectedOn
				events = append(events, state.NewEvent(state.EventHardwareStatusChanged, map[string]any{
					"request_id": req.ID,
					"from":       string(previous),
					"to":         string(state.HardwareDetected),
					"evidence":   evidence,
				}))
			}

			verifyCmd := strings.TrimSpace(req.VerifyCommand)
			if verifyCmd != "" {
				ok, output := r.runShell(ctx, verifyCmd)
				if ok {
					from := req.Status
					req.Status = state.HardwareVerified
					verifiedOn := today
					req.VerifiedOn = &verifiedOn
					req.Notes = appendNote(req.Notes, today, "Verification passed: "+verifyCmd)
					events = append(events, state.NewEvent(state.EventHardwareStatusChanged, map[string]any{
						"request_id": req.ID,
						"from":       string(from),
						"to":         string(state.HardwareVerified),
						"evidence":   truncate(output, verifyEvidenceCap),
					}))
				} else {
					req.VerifyFailures++
					req.Notes = appendNote(req.Notes, today,
						fmt.Sprintf("Verification failed (%s): %s", verifyCmd, truncate(output, verifyEvidenceCap)))
					events = append(events, state.NewEvent(state.EventHardwareVerifyFailed, map[string]any{
						"request_id":      req.ID,
						"verify_failures": req.VerifyFailures,
						"evidence":        truncate(output, verifyEvidenceCap),
					}))
				}
			} else {
				from := req.Status
				req.Status = state.HardwareVerified
				verifiedOn := today
				req.VerifiedOn = &verifiedOn
				events = append(events, state.NewEvent(state.EventHardwareStatusChanged, map[string]any{
					"request_id": req.ID,
					"from":       string(from),
					"to":         string(state.HardwareVerified),
					"evidence":   "No verify_command provided; detection accepted as verification.",
				}))
			}

		case req.Status == state.HardwareDetected:
			// Signal disappeared; drop back without poisoning the request.
			req.Status = state.HardwareOpen
			req.DetectedOn = nil
			req.Notes = appendNote(req.Notes, today, "Detection signal no longer present; moved back to OPEN.")
			events = append(events, state.NewEvent(state.EventHardwareStatusChanged, map[string]any{
				"request_id": req.ID,
				"from":       string(state.HardwareDetected),
				"to":         string(state.HardwareOpen),
				"evidence":   evidence,
			}))
		}
	}
	return events
}
