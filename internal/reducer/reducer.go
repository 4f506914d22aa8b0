// Package reducer applies a validated worker result to canonical state.
// Apply is a pure transition apart from the injected date: same inputs,
// same state and events.
package reducer

import (
	"fmt"
	"strings"
	"time"

	"github.com/danshapiro/wdib/internal/state"
)

func appendNote(existing, today, note string) string {
	line := fmt.Sprintf("[%s] %s", today, note)
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

func parseDeferDate(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return ""
	}
	return value
}

func yyyymmdd(today string) string {
	return strings.ReplaceAll(today, "-", "")
}

func appendProposedTasks(st *state.State, proposed []state.ProposedTask, today string, events *[]state.Event) {
	openTitles := map[string]bool{}
	for _, t := range st.Tasks {
		if t.Status != state.TaskDone {
			openTitles[strings.ToLower(strings.TrimSpace(t.Title))] = true
		}
	}
	ids := make([]string, 0, len(st.Tasks))
	for _, t := range st.Tasks {
		ids = append(ids, t.ID)
	}

	for _, item := range proposed {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if openTitles[key] {
			continue
		}

		id := state.NextID(ids, "task", yyyymmdd(today))
		ids = append(ids, id)
		openTitles[key] = true

		status := state.ParseTaskStatus(item.Status, state.TaskTODO)
		task := state.Task{
			ID:        id,
			Title:     title,
			Status:    status,
			CreatedOn: today,
			UpdatedOn: today,
		}
		task.Description = strings.TrimSpace(item.Description)
		task.BlockedBy = strings.TrimSpace(item.BlockedBy)
		task.Notes = strings.TrimSpace(item.Notes)
		if status == state.TaskDone {
			completed := today
			task.CompletedOn = &completed
		}
		st.Tasks = append(st.Tasks, task)
		*events = append(*events, state.NewEvent(state.EventTaskCreated, map[string]any{
			"task_id": id,
			"title":   title,
		}))
	}
}

func applyTaskUpdates(st *state.State, updates []state.TaskUpdate, today string, events *[]state.Event) {
	byID := map[string]*state.Task{}
	for i := range st.Tasks {
		byID[st.Tasks[i].ID] = &st.Tasks[i]
	}

	for _, update := range updates {
		task, ok := byID[update.TaskID]
		if !ok {
			continue
		}

		previous := task.Status
		target := previous
		if raw := strings.TrimSpace(update.Status); raw != "" {
			target = state.ParseTaskStatus(raw, previous)
		}
		metadataChanged := false

		if previous != target {
			task.Status = target
			task.UpdatedOn = today
			if target == state.TaskDone {
				completed := today
				task.CompletedOn = &completed
				task.DeferUntil = nil
				task.DeferReason = ""
				task.SelectionStreak = 0
			} else if task.CompletedOn != nil {
				task.CompletedOn = nil
			}
			*events = append(*events, state.NewEvent(state.EventTaskStatusChanged, map[string]any{
				"task_id": task.ID,
				"from":    string(previous),
				"to":      string(target),
				"reason":  "worker_result.task_updates",
			}))
		}

		if update.DeferUntil != nil {
			previousDefer := ""
			if task.DeferUntil != nil {
				previousDefer = strings.TrimSpace(*task.DeferUntil)
			}
			raw := strings.TrimSpace(*update.DeferUntil)
			switch {
			case raw == "":
				if previousDefer != "" {
					task.DeferUntil = nil
					task.DeferReason = ""
					metadataChanged = true
					*events = append(*events, state.NewEvent(state.EventTaskDeferCleared, map[string]any{
						"task_id": task.ID,
						"reason":  "worker_result.task_updates cleared defer_until",
					}))
				}
			default:
				parsed := parseDeferDate(raw)
				if parsed == "" {
					task.DeferUntil = nil
					task.DeferReason = ""
					metadataChanged = true
					*events = append(*events, state.NewEvent(state.EventTaskDeferInvalid, map[string]any{
						"task_id": task.ID,
						"value":   raw,
						"reason":  "worker_result.task_updates.defer_until is not a valid YYYY-MM-DD date",
					}))
				} else if previousDefer != parsed {
					d := parsed
					task.DeferUntil = &d
					metadataChanged = true
					*events = append(*events, state.NewEvent(state.EventTaskDeferSet, map[string]any{
						"task_id":     task.ID,
						"defer_until": parsed,
					}))
				}
			}
		}

		if update.DeferReason != nil {
			raw := strings.TrimSpace(*update.DeferReason)
			normalized := ""
			if task.DeferUntil != nil && strings.TrimSpace(*task.DeferUntil) != "" {
				normalized = raw
			}
			if task.DeferReason != normalized {
				task.DeferReason = normalized
				metadataChanged = true
			}
		}

		if metadataChanged && previous == target {
			task.UpdatedOn = today
		}

		if note := strings.TrimSpace(update.Note); note != "" {
			task.Notes = appendNote(task.Notes, today, note)
		}
	}
}

func appendProposedHardware(st *state.State, proposed []state.ProposedHardware, today string, events *[]state.Event) {
	openNames := map[string]bool{}
	for _, req := range st.HardwareRequests {
		if req.Status == state.HardwareOpen || req.Status == state.HardwareDetected {
			openNames[strings.ToLower(strings.TrimSpace(req.Name))] = true
		}
	}
	ids := make([]string, 0, len(st.HardwareRequests))
	for _, req := range st.HardwareRequests {
		ids = append(ids, req.ID)
	}

	for _, item := range proposed {
		name := strings.TrimSpace(item.Name)
		reason := strings.TrimSpace(item.Reason)
		kind := state.ParseDetectionKind(string(item.Detection.Kind))
		value := strings.TrimSpace(item.Detection.Value)
		if name == "" || reason == "" || kind == "" || value == "" {
			continue
		}

		key := strings.ToLower(name)
		if openNames[key] {
			continue
		}

		id := state.NextID(ids, "hardware", yyyymmdd(today))
		ids = append(ids, id)
		openNames[key] = true

		st.HardwareRequests = append(st.HardwareRequests, state.HardwareRequest{
			ID:            id,
			Name:          name,
			Reason:        reason,
			Status:        state.HardwareOpen,
			Detection:     state.Detection{Kind: kind, Value: value},
			VerifyCommand: strings.TrimSpace(item.VerifyCommand),
			RequestedOn:   today,
			Notes:         strings.TrimSpace(item.Notes),
		})
		*events = append(*events, state.NewEvent(state.EventHardwareRequestCreated, map[string]any{
			"request_id": id,
			"name":       name,
		}))
	}
}

func appendIncidents(st *state.State, proposed []state.ProposedIncident, today string, events *[]state.Event) {
	ids := make([]string, 0, len(st.Incidents))
	for _, in := range st.Incidents {
		ids = append(ids, in.ID)
	}

	for _, item := range proposed {
		title := strings.TrimSpace(item.Title)
		summary := strings.TrimSpace(item.Summary)
		if title == "" || summary == "" {
			continue
		}
		severity := state.ParseSeverity(item.Severity)
		status := state.ParseIncidentStatus(item.Status)

		id := state.NextID(ids, "incident", yyyymmdd(today))
		ids = append(ids, id)
		st.Incidents = append(st.Incidents, state.Incident{
			ID:        id,
			Title:     title,
			Status:    status,
			Severity:  severity,
			Summary:   summary,
			CreatedOn: today,
			UpdatedOn: today,
		})
		*events = append(*events, state.NewEvent(state.EventIncidentCreated, map[string]any{
			"incident_id": id,
			"title":       title,
			"severity":    string(severity),
		}))
	}
}

func appendArtifacts(st *state.State, artifacts []state.ProposedArtifact, today string) {
	for _, item := range artifacts {
		path := strings.TrimSpace(item.Path)
		description := strings.TrimSpace(item.Description)
		if path == "" || description == "" {
			continue
		}
		st.Artifacts = append(st.Artifacts, state.Artifact{
			Path:        path,
			Description: description,
			CreatedOn:   today,
		})
	}
}

func deriveStatus(st *state.State, workerStatus state.WorkerStatus) state.DeviceStatus {
	if workerStatus == state.WorkerFailed {
		return state.DeviceError
	}
	for _, req := range st.HardwareRequests {
		if req.Status == state.HardwareOpen || req.Status == state.HardwareDetected {
			return state.DeviceBlockedHardware
		}
	}
	return state.DeviceActive
}

// Apply mutates st according to the worker result and returns the events in
// application order.
func Apply(st *state.State, res *state.WorkerResult, today string) []state.Event {
	var events []state.Event

	appendProposedTasks(st, res.ProposedTasks, today, &events)
	applyTaskUpdates(st, res.TaskUpdates, today, &events)
	appendProposedHardware(st, res.ProposedHardware, today, &events)
	appendIncidents(st, res.Incidents, today, &events)
	appendArtifacts(st, res.Artifacts, today)

	if becoming := strings.TrimSpace(res.Becoming); becoming != "" {
		old := st.Purpose.Becoming
		if old != becoming {
			st.Purpose.Becoming = becoming
			events = append(events, state.NewEvent(state.EventBecomingUpdated, map[string]any{
				"from": old,
				"to":   becoming,
			}))
		}
	}

	summary := strings.TrimSpace(res.Summary)
	st.LastSummary = summary

	if res.Status == state.WorkerFailed {
		failureSummary := summary
		if failureSummary == "" {
			failureSummary = "Worker returned FAILED status."
		}
		appendIncidents(st, []state.ProposedIncident{{
			Title:    "Worker execution failed",
			Summary:  failureSummary,
			Severity: string(state.SeverityHigh),
			Status:   string(state.IncidentOpen),
		}}, today, &events)
	}

	st.Status = deriveStatus(st, res.Status)
	return events
}
