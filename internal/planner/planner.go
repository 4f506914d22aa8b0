// Package planner refreshes deferrals, selects the cycle's task, and
// composes the work order.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/danshapiro/wdib/internal/state"
)

const (
	// RotationLimit is the selection streak at which an IN_PROGRESS task
	// yields to a waiting TODO task.
	RotationLimit = 2

	missionExcerptCap = 2500
	contextListCap    = 20
)

// Constraints is the fixed constraint list embedded in every work order.
func Constraints() []string {
	return []string{
		"Work only inside allowed_paths.",
		"Do not bypass hardware verification semantics. Hardware requests are complete only when machine-observed detection and verification pass.",
		"Persist outcomes in the worker result contract only.",
		"Favor minimal, testable changes and explicit evidence.",
	}
}

// Planner holds the clock; everything else arrives per call.
type Planner struct {
	Now func() time.Time
}

// RefreshDeferrals clears expired defer_until dates (TASK_DEFER_RELEASED)
// and nukes unparseable ones (TASK_DEFER_INVALID).
func (p *Planner) RefreshDeferrals(st *state.State) []state.Event {
	var events []state.Event
	today := state.DateOf(p.Now())

	for i := range st.Tasks {
		task := &st.Tasks[i]
		if task.DeferUntil == nil || strings.TrimSpace(*task.DeferUntil) == "" {
			continue
		}
		deferDate := strings.TrimSpace(*task.DeferUntil)
		if _, err := time.Parse("2006-01-02", deferDate); err != nil {
			events = append(events, state.NewEvent(state.EventTaskDeferInvalid, map[string]any{
				"task_id":     task.ID,
				"defer_until": deferDate,
				"reason":      "Unparseable defer date cleared.",
			}))
			task.DeferUntil = nil
			task.DeferReason = ""
			task.UpdatedOn = today
			continue
		}
		if deferDate <= today {
			events = append(events, state.NewEvent(state.EventTaskDeferReleased, map[string]any{
				"task_id":     task.ID,
				"defer_until": deferDate,
			}))
			task.DeferUntil = nil
			task.DeferReason = ""
			task.UpdatedOn = today
		}
	}
	return events
}

func deferred(task *state.Task, today string) bool {
	return task.DeferUntil != nil && strings.TrimSpace(*task.DeferUntil) > today
}

// selectTask picks the cycle's task index, applying stagnation rotation.
// Returns -1 when no task is eligible.
func (p *Planner) selectTask(st *state.State, today string, events *[]state.Event) int {
	inProgress := -1
	for i := range st.Tasks {
		task := &st.Tasks[i]
		if task.Status != state.TaskInProgress || deferred(task, today) {
			continue
		}
		if inProgress < 0 || task.SelectionStreak < st.Tasks[inProgress].SelectionStreak {
			inProgress = i
		}
	}

	firstTODO := -1
	for i := range st.Tasks {
		task := &st.Tasks[i]
		if task.Status == state.TaskTODO && !deferred(task, today) {
			firstTODO = i
			break
		}
	}

	if inProgress >= 0 {
		if st.Tasks[inProgress].SelectionStreak >= RotationLimit && firstTODO >= 0 {
			stale := &st.Tasks[inProgress]
			promoted := &st.Tasks[firstTODO]
			*events = append(*events, state.NewEvent(state.EventTaskPlannerRotated, map[string]any{
				"from_task_id": stale.ID,
				"to_task_id":   promoted.ID,
				"reason":       fmt.Sprintf("Task selected %d cycles in a row; rotating to keep progress broad.", stale.SelectionStreak),
			}))
			promoted.Status = state.TaskInProgress
			promoted.UpdatedOn = today
			*events = append(*events, state.NewEvent(state.EventTaskStatusChanged, map[string]any{
				"task_id": promoted.ID,
				"from":    string(state.TaskTODO),
				"to":      string(state.TaskInProgress),
				"reason":  "Promoted by planner rotation.",
			}))
			return firstTODO
		}
		return inProgress
	}

	if firstTODO >= 0 {
		promoted := &st.Tasks[firstTODO]
		promoted.Status = state.TaskInProgress
		promoted.UpdatedOn = today
		*events = append(*events, state.NewEvent(state.EventTaskStatusChanged, map[string]any{
			"task_id": promoted.ID,
			"from":    string(state.TaskTODO),
			"to":      string(state.TaskInProgress),
			"reason":  "Selected by planner for current cycle.",
		}))
		return firstTODO
	}
	return -1
}

func objective(st *state.State, selected int, missionText string) string {
	if selected >= 0 {
		task := st.Tasks[selected]
		return fmt.Sprintf("Advance task %s: %s", task.ID, task.Title)
	}
	for _, req := range st.HardwareRequests {
		if req.Status == state.HardwareOpen || req.Status == state.HardwareDetected {
			return "Continue software progress while hardware requests are pending. " +
				"Do not assume installation is complete unless WDIB marks request VERIFIED."
		}
	}
	if strings.TrimSpace(missionText) == "" {
		return "Mission is currently unknown. Self-discover system capabilities, gather external evidence, " +
			"and propose the next concrete tasks. Do not lock a becoming until the mission is established."
	}
	return "Advance the mission by building the next capability on the roadmap and proposing concrete follow-up tasks."
}

func missionExcerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > missionExcerptCap {
		text = strings.TrimRight(text[:missionExcerptCap], " \t\n") + "\n[TRUNCATED]"
	}
	return text
}

// Plan selects the task, bumps streaks, and returns the composed work order.
// Exactly one task (or none) ends up selected; its streak increments and all
// other streaks reset to 0.
func (p *Planner) Plan(st *state.State, deviceID, cycleID, missionText, resultPath string, allowedPaths []string) (*state.WorkOrder, []state.Event) {
	var events []state.Event
	today := state.DateOf(p.Now())

	selected := p.selectTask(st, today, &events)
	for i := range st.Tasks {
		if i == selected {
			st.Tasks[i].SelectionStreak++
		} else {
			st.Tasks[i].SelectionStreak = 0
		}
	}

	taskCtx := make([]state.TaskSummary, 0, contextListCap)
	for _, t := range st.Tasks {
		if len(taskCtx) == contextListCap {
			break
		}
		taskCtx = append(taskCtx, state.TaskSummary{ID: t.ID, Title: t.Title, Status: string(t.Status)})
	}
	hwCtx := make([]state.HardwareSummary, 0, contextListCap)
	for _, h := range st.HardwareRequests {
		if len(hwCtx) == contextListCap {
			break
		}
		hwCtx = append(hwCtx, state.HardwareSummary{ID: h.ID, Name: h.Name, Status: string(h.Status)})
	}
	incidentCtx := make([]state.IncidentSummary, 0, contextListCap)
	for _, in := range st.Incidents {
		if len(incidentCtx) == contextListCap {
			break
		}
		incidentCtx = append(incidentCtx, state.IncidentSummary{ID: in.ID, Title: in.Title, Status: string(in.Status)})
	}

	wo := &state.WorkOrder{
		SchemaVersion: state.SchemaVersion,
		CycleID:       cycleID,
		CreatedOn:     state.Timestamp(p.Now()),
		DeviceID:      deviceID,
		Objective:     objective(st, selected, missionText),
		Constraints:   Constraints(),
		AllowedPaths:  allowedPaths,
		Context: state.WorkOrderContext{
			Becoming:         st.Purpose.Becoming,
			MissionExcerpt:   missionExcerpt(missionText),
			Tasks:            taskCtx,
			HardwareRequests: hwCtx,
			Incidents:        incidentCtx,
		},
		ResultPath:          resultPath,
		ResultSchemaVersion: state.SchemaVersion,
	}
	return wo, events
}
