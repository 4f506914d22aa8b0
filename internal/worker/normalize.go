package worker

import (
	"strings"

	"github.com/danshapiro/wdib/internal/state"
)

var allowedTopLevel = []string{
	"schema_version",
	"cycle_id",
	"status",
	"summary",
	"becoming",
	"proposed_tasks",
	"task_updates",
	"proposed_hardware_requests",
	"incidents",
	"artifacts",
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Normalize coerces a raw worker payload into schema-compatible shape:
// unknown top-level keys dropped, legacy status spellings mapped, empty
// cycle_id filled from the work order, legacy "tasks" migrated to
// proposed_tasks, incident severity/status normalized.
func Normalize(payload map[string]any, wo *state.WorkOrder) map[string]any {
	normalized := map[string]any{}
	for _, key := range allowedTopLevel {
		if v, ok := payload[key]; ok {
			normalized[key] = v
		}
	}

	normalized["schema_version"] = state.SchemaVersion

	cycleID := strings.TrimSpace(str(normalized["cycle_id"]))
	if cycleID == "" {
		cycleID = wo.CycleID
	}
	normalized["cycle_id"] = cycleID

	normalized["status"] = string(state.ParseWorkerStatus(str(normalized["status"])))

	summary := strings.TrimSpace(str(normalized["summary"]))
	if summary == "" {
		summary = "Worker completed without a summary."
	}
	normalized["summary"] = summary

	if _, ok := normalized["proposed_tasks"]; !ok {
		if legacy, ok := payload["tasks"].([]any); ok {
			var proposed []any
			for _, item := range legacy {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				title := strings.TrimSpace(str(entry["title"]))
				if title == "" {
					title = strings.TrimSpace(str(entry["name"]))
				}
				if title == "" {
					continue
				}
				task := map[string]any{"title": title}
				if d := str(entry["description"]); d != "" {
					task["description"] = d
				}
				status := state.ParseTaskStatus(str(entry["status"]), "")
				if status != "" {
					task["status"] = string(status)
				}
				if b := str(entry["blocked_by"]); b != "" {
					task["blocked_by"] = b
				}
				if n := str(entry["notes"]); n != "" {
					task["notes"] = n
				}
				proposed = append(proposed, task)
			}
			if len(proposed) > 0 {
				normalized["proposed_tasks"] = proposed
			}
		}
	}

	if incidents, ok := payload["incidents"].([]any); ok {
		normalizedIncidents := []any{}
		for _, item := range incidents {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			title := strings.TrimSpace(str(entry["title"]))
			if title == "" {
				title = strings.TrimSpace(str(entry["id"]))
			}
			if title == "" {
				title = "WDIB incident"
			}
			summaryText := strings.TrimSpace(str(entry["summary"]))
			if summaryText == "" {
				summaryText = strings.TrimSpace(str(entry["detail"]))
			}
			if summaryText == "" {
				summaryText = title + " reported by worker."
			}
			normalizedIncidents = append(normalizedIncidents, map[string]any{
				"title":    title,
				"summary":  summaryText,
				"severity": string(state.ParseSeverity(str(entry["severity"]))),
				"status":   string(state.ParseIncidentStatus(str(entry["status"]))),
			})
		}
		normalized["incidents"] = normalizedIncidents
	}

	return normalized
}
