// Package engine sequences one orchestration tick: inbox, hardware,
// planning, worker, reducer, publication, git, notifications.
package engine

import (
	"context"
	"time"

	"github.com/danshapiro/wdib/internal/becoming"
	"github.com/danshapiro/wdib/internal/cmdrun"
	"github.com/danshapiro/wdib/internal/envutil"
	"github.com/danshapiro/wdib/internal/gitutil"
	"github.com/danshapiro/wdib/internal/hardware"
	"github.com/danshapiro/wdib/internal/inbox"
	"github.com/danshapiro/wdib/internal/mission"
	"github.com/danshapiro/wdib/internal/notify"
	"github.com/danshapiro/wdib/internal/paths"
	"github.com/danshapiro/wdib/internal/planner"
	"github.com/danshapiro/wdib/internal/publish"
	"github.com/danshapiro/wdib/internal/reducer"
	"github.com/danshapiro/wdib/internal/state"
	"github.com/danshapiro/wdib/internal/storage"
	"github.com/danshapiro/wdib/internal/worker"
)

const humanMessageCap = 500

// GitCommitter is the engine's git seam; tests substitute a fake.
type GitCommitter func(projectRoot, deviceID string, day int, status string) (gitutil.CommitInfo, error)

// Engine wires one device's tick. All collaborators are injected so tests
// can run a full tick without subprocesses or network.
type Engine struct {
	Paths    paths.Paths
	DeviceID string
	Store    *storage.Store
	Runner   cmdrun.Runner
	Worker   worker.Executor
	Git      GitCommitter
	Notifier *notify.Router
	Now      func() time.Time
}

// TickResult is the structured outcome surfaced by the CLI.
type TickResult struct {
	DeviceID         string                  `json:"device_id"`
	CycleID          string                  `json:"cycle_id,omitempty"`
	Day              int                     `json:"day,omitempty"`
	Status           string                  `json:"status"`
	Summary          string                  `json:"summary"`
	Skipped          bool                    `json:"skipped,omitempty"`
	Terminated       bool                    `json:"terminated,omitempty"`
	SessionPath      string                  `json:"session_path,omitempty"`
	PublicStatusPath string                  `json:"public_status_path,omitempty"`
	PublicDailyPath  string                  `json:"public_daily_path,omitempty"`
	Git              *gitutil.CommitInfo     `json:"git,omitempty"`
	Notifications    []notify.DeliveryResult `json:"notifications,omitempty"`
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) appendWithCycle(evs []state.Event, cycleID string) error {
	for _, ev := range evs {
		ev.Fields["cycle_id"] = cycleID
		if err := e.Store.AppendEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) appendNotificationEvents(cycleID string, day int, results []notify.DeliveryResult) {
	for _, result := range results {
		fields := map[string]any{
			"cycle_id": cycleID,
			"day":      day,
			"channel":  result.Channel,
		}
		eventType := state.EventNotificationSent
		if result.Sent {
			if result.StatusCode != 0 {
				fields["status_code"] = result.StatusCode
			}
		} else {
			eventType = state.EventNotificationFailed
			reason := result.Reason
			if reason == "" {
				reason = "unknown"
			}
			fields["reason"] = reason
		}
		_ = e.Store.AppendEvent(state.NewEvent(eventType, fields))
	}
}

// recordFailure applies the catch-all failure policy: state ERROR, auto
// incident, CYCLE_FAILED, failure notifications. The original error is then
// re-raised by the caller.
func (e *Engine) recordFailure(st *state.State, cycleID string, day int, cause error) {
	now := e.now()
	today := state.DateOf(now)

	st.Status = state.DeviceError
	ids := make([]string, 0, len(st.Incidents))
	for _, in := range st.Incidents {
		ids = append(ids, in.ID)
	}
	message := cause.Error()
	st.Incidents = append(st.Incidents, state.Incident{
		ID:        state.NextID(ids, "incident", now.Format("20060102")),
		Title:     "WDIB runtime failure",
		Status:    state.IncidentOpen,
		Severity:  state.SeverityHigh,
		Summary:   message,
		CreatedOn: today,
		UpdatedOn: today,
	})
	st.LastSummary = message
	_ = e.Store.SaveState(st)
	_ = e.Store.AppendEvent(state.NewEvent(state.EventCycleFailed, map[string]any{
		"cycle_id": cycleID,
		"day":      day,
		"error":    message,
	}))
	results := e.Notifier.SendFailure(notify.FailureContext{
		DeviceID: e.DeviceID,
		CycleID:  cycleID,
		Day:      day,
		TS:       now,
	})
	e.appendNotificationEvents(cycleID, day, results)
}

func truncateMessage(text string) string {
	if len(text) > humanMessageCap {
		return text[:humanMessageCap]
	}
	return text
}

// Tick runs one full cycle. The returned error means the cycle failed after
// the failure policy already ran; the CLI exits non-zero on it.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	device := e.Paths.Device(e.DeviceID)
	if err := e.Store.EnsureLayout(); err != nil {
		return nil, err
	}

	missionText, err := mission.Load(e.Paths.MissionFile())
	if err != nil {
		return nil, err
	}
	missionUnknown := mission.Unknown(missionText)

	startedAt := e.now()
	today := state.DateOf(startedAt)

	st, err := e.Store.LoadState(e.DeviceID, e.Paths.MissionFile(), today)
	if err != nil {
		return nil, err
	}

	if ev := becoming.ClearFromState(st, missionUnknown); ev != nil {
		if err := e.Store.SaveState(st); err != nil {
			return nil, err
		}
		if err := e.Store.AppendEvent(*ev); err != nil {
			return nil, err
		}
	}

	pendingMessage, err := inbox.LoadAndClear(device.HumanMessage)
	if err != nil {
		return nil, err
	}
	if pendingMessage != "" {
		if err := e.Store.AppendEvent(state.NewEvent(state.EventHumanMessageReceived, map[string]any{
			"message": truncateMessage(pendingMessage),
		})); err != nil {
			return nil, err
		}
	}

	// TERMINATED is absorbing; only a fresh human message wakes the device.
	if st.Status == state.DeviceTerminated && pendingMessage == "" {
		return &TickResult{
			DeviceID: e.DeviceID,
			Status:   string(state.DeviceTerminated),
			Skipped:  true,
			Summary:  "Device is terminated; no cycle was run.",
		}, nil
	}

	day := st.Day + 1
	cycleID := state.CycleID(day, startedAt)
	runDate := today

	if err := e.Store.AppendEvent(state.NewEvent(state.EventCycleStarted, map[string]any{
		"cycle_id": cycleID,
		"day":      day,
		"status":   string(st.Status),
	})); err != nil {
		return nil, err
	}
	if missionUnknown {
		if err := e.Store.AppendEvent(state.NewEvent(state.EventMissionUnknown, map[string]any{
			"cycle_id": cycleID,
			"day":      day,
			"reason": "MISSION.md is not set; keep mission discovery active over multiple cycles. " +
				"Build capabilities, gather evidence, and avoid premature mission locking.",
		})); err != nil {
			return nil, err
		}
	}

	if pendingMessage != "" && inbox.IsTerminateCommand(pendingMessage) {
		return e.terminate(st, cycleID, day, runDate, startedAt, missionText, pendingMessage)
	}

	result, err := e.runCycle(ctx, st, device, cycleID, day, runDate, startedAt, missionText, missionUnknown)
	if err != nil {
		e.recordFailure(st, cycleID, day, err)
		return nil, err
	}
	return result, nil
}

func (e *Engine) terminate(st *state.State, cycleID string, day int, runDate string, startedAt time.Time, missionText, message string) (*TickResult, error) {
	st.Status = state.DeviceTerminated
	st.Day = day
	st.Purpose.Becoming = "Gracefully conclude this mission run and hand over cleanly."
	st.LastSummary = "Received human termination instruction and gracefully ended this run. Goodbye for now."
	if err := e.Store.SaveState(st); err != nil {
		return nil, err
	}
	if err := e.Store.AppendEvent(state.NewEvent(state.EventHumanCommandTerminate, map[string]any{
		"cycle_id": cycleID,
		"day":      day,
		"message":  truncateMessage(message),
	})); err != nil {
		return nil, err
	}

	sessionPath, err := e.Store.SaveSessionRecord(storage.SessionRecord{
		CycleID:      cycleID,
		Day:          day,
		RunDate:      runDate,
		DeviceID:     e.DeviceID,
		Status:       st.Status,
		WorkerStatus: "TERMINATED",
		Summary:      st.LastSummary,
	}, st)
	if err != nil {
		return nil, err
	}

	const objective = "Human requested device termination."
	status := publish.BuildPublicStatus(publish.Input{
		DeviceID:      e.DeviceID,
		CycleID:       cycleID,
		Day:           day,
		State:         st,
		WorkerStatus:  "TERMINATED",
		MissionText:   missionText,
		SummaryHint:   st.LastSummary,
		ObjectiveHint: objective,
		Now:           startedAt,
	})
	statusPath, err := e.Store.SavePublicStatus(status)
	if err != nil {
		return nil, err
	}
	dailyPath, err := e.Store.SavePublicDaily(day, runDate, publish.BuildPublicDaily(status, objective, st.LastSummary, startedAt))
	if err != nil {
		return nil, err
	}

	gitInfo, err := e.Git(e.Paths.Root, e.DeviceID, day, string(st.Status))
	if err != nil {
		gitInfo = gitutil.CommitInfo{Message: "git commit failed: " + err.Error()}
	}
	if err := e.Store.AppendEvent(state.NewEvent(state.EventCycleCompleted, map[string]any{
		"cycle_id": cycleID,
		"day":      day,
		"status":   string(st.Status),
		"git":      gitInfo,
	})); err != nil {
		return nil, err
	}

	results := e.Notifier.SendCycle(notify.CycleContext{Status: status, Git: gitInfo, RunDate: runDate})
	e.appendNotificationEvents(cycleID, day, results)

	return &TickResult{
		DeviceID:         e.DeviceID,
		CycleID:          cycleID,
		Day:              day,
		Status:           string(st.Status),
		Summary:          st.LastSummary,
		Terminated:       true,
		SessionPath:      sessionPath,
		PublicStatusPath: statusPath,
		PublicDailyPath:  dailyPath,
		Git:              &gitInfo,
		Notifications:    results,
	}, nil
}

func (e *Engine) runCycle(ctx context.Context, st *state.State, device paths.DevicePaths, cycleID string, day int, runDate string, startedAt time.Time, missionText string, missionUnknown bool) (*TickResult, error) {
	reconciler := &hardware.Reconciler{
		Runner:  e.Runner,
		Timeout: time.Duration(envutil.CommandTimeoutSeconds()) * time.Second,
		Now:     e.now,
	}
	if err := e.appendWithCycle(reconciler.Reconcile(ctx, st), cycleID); err != nil {
		return nil, err
	}

	pl := &planner.Planner{Now: e.now}
	if err := e.appendWithCycle(pl.RefreshDeferrals(st), cycleID); err != nil {
		return nil, err
	}

	resultPath := device.WorkerResult(cycleID)
	allowedPaths := []string{e.Paths.Root, device.Dir}
	workOrder, planningEvents := pl.Plan(st, e.DeviceID, cycleID, missionText, resultPath, allowedPaths)
	workOrderPath, err := e.Store.SaveWorkOrder(workOrder)
	if err != nil {
		return nil, err
	}
	if err := e.appendWithCycle(planningEvents, cycleID); err != nil {
		return nil, err
	}
	if err := e.Store.SaveState(st); err != nil {
		return nil, err
	}

	workerResult, runMeta, err := e.Worker.Execute(ctx, workOrder)
	if err != nil {
		return nil, err
	}
	if ev := becoming.RejectFromResult(workerResult, missionUnknown, day); ev != nil {
		ev.Fields["cycle_id"] = cycleID
		if err := e.Store.AppendEvent(*ev); err != nil {
			return nil, err
		}
	}
	if _, err := e.Store.SaveWorkerResult(workerResult); err != nil {
		return nil, err
	}
	if err := e.Store.AppendEvent(state.NewEvent(state.EventWorkerExecuted, map[string]any{
		"cycle_id":      cycleID,
		"returncode":    runMeta.ReturnCode,
		"mode":          runMeta.Mode,
		"invocation_id": runMeta.InvocationID,
	})); err != nil {
		return nil, err
	}

	if err := e.appendWithCycle(reducer.Apply(st, workerResult, runDate), cycleID); err != nil {
		return nil, err
	}

	st.Day = day
	if err := e.Store.SaveState(st); err != nil {
		return nil, err
	}

	sessionPath, err := e.Store.SaveSessionRecord(storage.SessionRecord{
		CycleID:          cycleID,
		Day:              day,
		RunDate:          runDate,
		DeviceID:         e.DeviceID,
		Status:           st.Status,
		WorkerStatus:     string(workerResult.Status),
		Summary:          st.LastSummary,
		WorkOrderPath:    workOrderPath,
		WorkerResultPath: resultPath,
	}, st)
	if err != nil {
		return nil, err
	}

	status := publish.BuildPublicStatus(publish.Input{
		DeviceID:      e.DeviceID,
		CycleID:       cycleID,
		Day:           day,
		State:         st,
		WorkerStatus:  string(workerResult.Status),
		MissionText:   missionText,
		SummaryHint:   st.LastSummary,
		ObjectiveHint: workOrder.Objective,
		Now:           startedAt,
	})
	statusPath, err := e.Store.SavePublicStatus(status)
	if err != nil {
		return nil, err
	}
	dailyPath, err := e.Store.SavePublicDaily(day, runDate, publish.BuildPublicDaily(status, workOrder.Objective, st.LastSummary, startedAt))
	if err != nil {
		return nil, err
	}

	gitInfo, err := e.Git(e.Paths.Root, e.DeviceID, day, string(st.Status))
	if err != nil {
		// Adapter failures never fail the cycle.
		gitInfo = gitutil.CommitInfo{Message: "git commit failed: " + err.Error()}
	}
	if err := e.Store.AppendEvent(state.NewEvent(state.EventCycleCompleted, map[string]any{
		"cycle_id": cycleID,
		"day":      day,
		"status":   string(st.Status),
		"git":      gitInfo,
	})); err != nil {
		return nil, err
	}

	results := e.Notifier.SendCycle(notify.CycleContext{Status: status, Git: gitInfo, RunDate: runDate})
	e.appendNotificationEvents(cycleID, day, results)

	return &TickResult{
		DeviceID:         e.DeviceID,
		CycleID:          cycleID,
		Day:              day,
		Status:           string(st.Status),
		Summary:          st.LastSummary,
		SessionPath:      sessionPath,
		PublicStatusPath: statusPath,
		PublicDailyPath:  dailyPath,
		Git:              &gitInfo,
		Notifications:    results,
	}, nil
}
