// Package publish builds the sanitized public artifacts: status.json and
// the per-day markdown summary. Nothing in here may leak device internals.
package publish

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/danshapiro/wdib/internal/mission"
	"github.com/danshapiro/wdib/internal/state"
)

// TaskCounts breaks tasks down by status.
type TaskCounts struct {
	TODO       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Blocked    int `json:"blocked"`
}

// HardwareCounts breaks hardware requests down by status.
type HardwareCounts struct {
	Open     int `json:"open"`
	Detected int `json:"detected"`
	Verified int `json:"verified"`
	Failed   int `json:"failed"`
}

// Counts is the numeric section of the status snapshot.
type Counts struct {
	Tasks            TaskCounts     `json:"tasks"`
	HardwareRequests HardwareCounts `json:"hardware_requests"`
	IncidentsOpen    int            `json:"incidents_open"`
}

// PublicStatus is the sanitized snapshot written to public/status.json.
type PublicStatus struct {
	SchemaVersion      string   `json:"schema_version"`
	DeviceIDShort      string   `json:"device_id_short"`
	CycleID            string   `json:"cycle_id"`
	UpdatedAt          string   `json:"updated_at"`
	Date               string   `json:"date"`
	FirstAwokeOn       string   `json:"first_awoke_on"`
	Day                int      `json:"day"`
	Status             string   `json:"status"`
	WorkerStatus       string   `json:"worker_status"`
	Purpose            string   `json:"purpose"`
	Becoming           string   `json:"becoming"`
	RecentActivity     string   `json:"recent_activity"`
	NextTasks          []string `json:"next_tasks"`
	CompletedTasks     []string `json:"completed_tasks"`
	HardwareFocus      []string `json:"hardware_focus"`
	EngineeringDetails []string `json:"engineering_details"`
	SelfObservation    string   `json:"self_observation"`
	Counts             Counts   `json:"counts"`
	PublicNotice       string   `json:"public_notice"`
}

// Input bundles everything the builders need for one cycle.
type Input struct {
	DeviceID      string
	CycleID       string
	Day           int
	State         *state.State
	WorkerStatus  string
	MissionText   string
	SummaryHint   string
	ObjectiveHint string
	Now           time.Time
}

var evidencePairRE = regexp.MustCompile("`([^`\n]+)`\\s*->\\s*([^\n.;]+)")

func nextTaskTitles(tasks []state.Task) []string {
	var picked []string
	seen := map[string]bool{}
	for _, desired := range []state.TaskStatus{state.TaskInProgress, state.TaskTODO} {
		for _, task := range tasks {
			if task.Status != desired {
				continue
			}
			title := Sanitize(task.Title, 100)
			if title == "" || seen[title] {
				continue
			}
			picked = append(picked, title)
			seen[title] = true
			if len(picked) >= 3 {
				return picked
			}
		}
	}
	return picked
}

func completedTaskTitles(tasks []state.Task) []string {
	var picked []string
	seen := map[string]bool{}
	for i := len(tasks) - 1; i >= 0 && len(picked) < 3; i-- {
		task := tasks[i]
		if task.Status != state.TaskDone {
			continue
		}
		title := Sanitize(task.Title, 100)
		if title == "" || seen[title] {
			continue
		}
		picked = append(picked, title)
		seen[title] = true
	}
	return picked
}

func hardwareFocus(requests []state.HardwareRequest) []string {
	var picked []string
	for _, req := range requests {
		if req.Status != state.HardwareOpen && req.Status != state.HardwareDetected {
			continue
		}
		name := Sanitize(req.Name, 80)
		if name == "" {
			continue
		}
		picked = append(picked, fmt.Sprintf("%s (%s)", name, req.Status))
		if len(picked) >= 3 {
			break
		}
	}
	return picked
}

// engineeringDetails mines "`command` -> outcome" evidence pairs out of the
// worker summary.
func engineeringDetails(summary string) []string {
	var details []string
	for _, m := range evidencePairRE.FindAllStringSubmatch(summary, 5) {
		command := Sanitize(m[1], 80)
		outcome := Sanitize(m[2], 100)
		if command == "" || outcome == "" {
			continue
		}
		details = append(details, command+" -> "+outcome)
	}
	return details
}

func selfObservation(summary string) string {
	trimmed := strings.TrimSpace(summary)
	if trimmed == "" {
		return ""
	}
	sentences := strings.Split(trimmed, ". ")
	return SafeReflection(sentences[len(sentences)-1])
}

func recentActivity(summaryHint, objectiveHint string) string {
	if summaryText := strings.TrimSpace(summaryHint); summaryText != "" {
		trimmed := summaryText
		for _, marker := range []string{
			"Verification evidence:",
			"Commands run:",
			"State/context probes:",
			"Result contract verification:",
		} {
			if idx := strings.Index(trimmed, marker); idx != -1 {
				trimmed = strings.TrimSpace(trimmed[:idx])
			}
		}
		if reflected := SafeReflection(trimmed); reflected != "" {
			lowered := strings.ToLower(reflected)
			if strings.Contains(lowered, "proposed next tasks") {
				return "Inspected local context and drafted the next tasks."
			}
			if strings.Contains(lowered, "capability discovery") {
				return "Completed capability discovery and mapped the next steps."
			}
			return reflected
		}
	}

	if objective := strings.TrimSpace(objectiveHint); objective != "" {
		if strings.HasPrefix(objective, "Advance task ") {
			candidate := objective
			if _, suffix, ok := strings.Cut(objective, ":"); ok && strings.TrimSpace(suffix) != "" {
				candidate = strings.TrimSpace(suffix)
			}
			return "Worked on: " + Sanitize(candidate, 150)
		}
		lowered := strings.ToLower(objective)
		if strings.Contains(lowered, "hardware requests are pending") {
			return "Kept software work moving while waiting for hardware verification."
		}
		if strings.Contains(lowered, "mission is currently unknown") {
			return "Inspected local environment and planned practical next steps."
		}
		return Sanitize(objective, 160)
	}

	return "Made steady progress on mission-aligned work."
}

func countTasks(tasks []state.Task) TaskCounts {
	var c TaskCounts
	for _, t := range tasks {
		switch t.Status {
		case state.TaskTODO:
			c.TODO++
		case state.TaskInProgress:
			c.InProgress++
		case state.TaskDone:
			c.Done++
		case state.TaskBlocked:
			c.Blocked++
		}
	}
	return c
}

func countHardware(requests []state.HardwareRequest) HardwareCounts {
	var c HardwareCounts
	for _, r := range requests {
		switch r.Status {
		case state.HardwareOpen:
			c.Open++
		case state.HardwareDetected:
			c.Detected++
		case state.HardwareVerified:
			c.Verified++
		case state.HardwareFailed:
			c.Failed++
		}
	}
	return c
}

func countOpenIncidents(incidents []state.Incident) int {
	n := 0
	for _, in := range incidents {
		if in.Status == state.IncidentOpen {
			n++
		}
	}
	return n
}

func shortDeviceID(deviceID string) string {
	if len(deviceID) > 8 {
		return deviceID[:8]
	}
	return deviceID
}

// BuildPublicStatus composes the sanitized status snapshot.
func BuildPublicStatus(in Input) *PublicStatus {
	purpose := Sanitize(mission.ExtractPurpose(in.MissionText), 180)
	if purpose == "" {
		purpose = "Unset (add a mission in MISSION.md)."
	}
	return &PublicStatus{
		SchemaVersion:      state.SchemaVersion,
		DeviceIDShort:      shortDeviceID(in.DeviceID),
		CycleID:            in.CycleID,
		UpdatedAt:          state.Timestamp(in.Now),
		Date:               state.DateOf(in.Now),
		FirstAwokeOn:       in.State.AwokeOn,
		Day:                in.Day,
		Status:             string(in.State.Status),
		WorkerStatus:       in.WorkerStatus,
		Purpose:            purpose,
		Becoming:           Sanitize(in.State.Purpose.Becoming, 180),
		RecentActivity:     recentActivity(in.SummaryHint, in.ObjectiveHint),
		NextTasks:          nextTaskTitles(in.State.Tasks),
		CompletedTasks:     completedTaskTitles(in.State.Tasks),
		HardwareFocus:      hardwareFocus(in.State.HardwareRequests),
		EngineeringDetails: engineeringDetails(in.SummaryHint),
		SelfObservation:    selfObservation(in.SummaryHint),
		Counts: Counts{
			Tasks:            countTasks(in.State.Tasks),
			HardwareRequests: countHardware(in.State.HardwareRequests),
			IncidentsOpen:    countOpenIncidents(in.State.Incidents),
		},
		PublicNotice: "Sanitized publication only. Detailed logs remain on-device.",
	}
}

func ordinal(day int) string {
	suffix := "th"
	if day%100 < 10 || day%100 > 20 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", day, suffix)
}

// BuildPublicDaily composes the per-day markdown summary from the status
// snapshot.
func BuildPublicDaily(status *PublicStatus, objective, summaryHint string, now time.Time) string {
	humanDate := fmt.Sprintf("%s %s %s", now.Format("Monday"), ordinal(now.Day()), now.Format("January 2006"))
	cleanedObjective := Sanitize(objective, 200)
	cleanedHint := SafeReflection(summaryHint)

	lines := []string{
		fmt.Sprintf("# Day %03d - %s", status.Day, humanDate),
		"",
		"I awoke and:",
		"- Reflected on what I should become.",
	}
	if status.Becoming != "" {
		lines = append(lines, "- Held this direction: "+status.Becoming)
	}
	if cleanedObjective != "" {
		lines = append(lines, "- Focused on this step: "+cleanedObjective)
	}
	lines = append(lines,
		"- Inspected myself and my local environment.",
		fmt.Sprintf("- Finished this cycle with status `%s`.", status.Status),
		"",
		"## Snapshot",
		fmt.Sprintf("- Device: `%s`", status.DeviceIDShort),
		fmt.Sprintf("- Cycle: `%s`", status.CycleID),
		fmt.Sprintf("- Worker: `%s`", status.WorkerStatus),
		fmt.Sprintf("- Tasks: %d TODO, %d IN_PROGRESS, %d DONE, %d BLOCKED",
			status.Counts.Tasks.TODO, status.Counts.Tasks.InProgress,
			status.Counts.Tasks.Done, status.Counts.Tasks.Blocked),
		fmt.Sprintf("- Hardware requests: %d OPEN, %d DETECTED, %d VERIFIED, %d FAILED",
			status.Counts.HardwareRequests.Open, status.Counts.HardwareRequests.Detected,
			status.Counts.HardwareRequests.Verified, status.Counts.HardwareRequests.Failed),
		fmt.Sprintf("- Open incidents: %d", status.Counts.IncidentsOpen),
		"",
		"## Note",
		"- This is a sanitized public summary. Raw logs and detailed traces stay on-device.",
	)
	if cleanedHint != "" {
		lines = append(lines, "", "## Reflection", "- "+cleanedHint)
	}
	return strings.Join(lines, "\n") + "\n"
}
