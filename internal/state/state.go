// Package state defines the canonical device state, the worker contracts,
// and the event vocabulary.
package state

import (
	"fmt"
	"strings"
	"time"
)

const SchemaVersion = "1.0"

// DeviceStatus is the top-level device lifecycle status.
type DeviceStatus string

const (
	DeviceActive          DeviceStatus = "ACTIVE"
	DeviceBlockedHardware DeviceStatus = "BLOCKED_HARDWARE"
	DeviceError           DeviceStatus = "ERROR"
	DeviceTerminated      DeviceStatus = "TERMINATED"
)

// TaskStatus is the task lifecycle status.
type TaskStatus string

const (
	TaskTODO       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
	TaskBlocked    TaskStatus = "BLOCKED"
)

// ParseTaskStatus normalizes a raw status string, mapping the legacy PENDING
// spelling to TODO. Unknown values fall back to def.
func ParseTaskStatus(raw string, def TaskStatus) TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TODO", "PENDING":
		return TaskTODO
	case "IN_PROGRESS":
		return TaskInProgress
	case "DONE":
		return TaskDone
	case "BLOCKED":
		return TaskBlocked
	default:
		return def
	}
}

// HardwareStatus is the hardware request lifecycle status.
type HardwareStatus string

const (
	HardwareOpen     HardwareStatus = "OPEN"
	HardwareDetected HardwareStatus = "DETECTED"
	HardwareVerified HardwareStatus = "VERIFIED"
	HardwareFailed   HardwareStatus = "FAILED"
)

// DetectionKind selects the machine-observed hardware presence probe.
type DetectionKind string

const (
	DetectPathExists     DetectionKind = "path_exists"
	DetectGlobExists     DetectionKind = "glob_exists"
	DetectCommandSuccess DetectionKind = "command_success"
	DetectLsusbContains  DetectionKind = "lsusb_contains"
)

// ParseDetectionKind returns the kind, or "" when raw is not in the closed set.
func ParseDetectionKind(raw string) DetectionKind {
	switch DetectionKind(strings.ToLower(strings.TrimSpace(raw))) {
	case DetectPathExists, DetectGlobExists, DetectCommandSuccess, DetectLsusbContains:
		return DetectionKind(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return ""
	}
}

// Severity is the incident severity.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ParseSeverity defaults unknown values to MEDIUM.
func ParseSeverity(raw string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(raw))) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(strings.ToUpper(strings.TrimSpace(raw)))
	default:
		return SeverityMedium
	}
}

// IncidentStatus is OPEN or RESOLVED.
type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "OPEN"
	IncidentResolved IncidentStatus = "RESOLVED"
)

// ParseIncidentStatus defaults unknown values to OPEN.
func ParseIncidentStatus(raw string) IncidentStatus {
	if IncidentStatus(strings.ToUpper(strings.TrimSpace(raw))) == IncidentResolved {
		return IncidentResolved
	}
	return IncidentOpen
}

// WorkerStatus is the status a worker result reports.
type WorkerStatus string

const (
	WorkerCompleted WorkerStatus = "COMPLETED"
	WorkerBlocked   WorkerStatus = "BLOCKED"
	WorkerFailed    WorkerStatus = "FAILED"
)

// ParseWorkerStatus maps legacy spellings (SUCCESS and DONE meant COMPLETED,
// ERROR meant FAILED, PENDING meant BLOCKED) and coerces anything unknown to
// BLOCKED so a confused worker can never claim success by accident.
func ParseWorkerStatus(raw string) WorkerStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "SUCCESS", "DONE":
		return WorkerCompleted
	case "FAILED", "ERROR":
		return WorkerFailed
	case "BLOCKED", "PENDING":
		return WorkerBlocked
	default:
		return WorkerBlocked
	}
}

// EventType is the closed event vocabulary for events.ndjson.
type EventType string

const (
	EventCycleStarted            EventType = "CYCLE_STARTED"
	EventCycleCompleted          EventType = "CYCLE_COMPLETED"
	EventCycleFailed             EventType = "CYCLE_FAILED"
	EventHardwareStatusChanged   EventType = "HARDWARE_STATUS_CHANGED"
	EventHardwareVerifyFailed    EventType = "HARDWARE_VERIFICATION_FAILED"
	EventHardwareRequestCreated  EventType = "HARDWARE_REQUEST_CREATED"
	EventTaskStatusChanged       EventType = "TASK_STATUS_CHANGED"
	EventTaskCreated             EventType = "TASK_CREATED"
	EventTaskPlannerRotated      EventType = "TASK_PLANNER_ROTATED"
	EventTaskDeferSet            EventType = "TASK_DEFER_SET"
	EventTaskDeferReleased       EventType = "TASK_DEFER_RELEASED"
	EventTaskDeferCleared        EventType = "TASK_DEFER_CLEARED"
	EventTaskDeferInvalid        EventType = "TASK_DEFER_INVALID"
	EventIncidentCreated         EventType = "INCIDENT_CREATED"
	EventBecomingUpdated         EventType = "BECOMING_UPDATED"
	EventBecomingCleared         EventType = "BECOMING_CLEARED"
	EventBecomingRejected        EventType = "BECOMING_REJECTED"
	EventWorkerExecuted          EventType = "WORKER_EXECUTED"
	EventHumanMessageReceived    EventType = "HUMAN_MESSAGE_RECEIVED"
	EventHumanCommandTerminate   EventType = "HUMAN_COMMAND_TERMINATE"
	EventNotificationSent        EventType = "NOTIFICATION_SENT"
	EventNotificationFailed      EventType = "NOTIFICATION_FAILED"
	EventStateInitialized        EventType = "STATE_INITIALIZED"
	EventStateMigrated           EventType = "STATE_MIGRATED"
	EventMissionUnknown          EventType = "MISSION_UNKNOWN"
)

// Detection pairs a probe kind with its probe value.
type Detection struct {
	Kind  DetectionKind `json:"kind"`
	Value string        `json:"value"`
}

// Task is one unit of planned work.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          TaskStatus `json:"status"`
	BlockedBy       string     `json:"blocked_by,omitempty"`
	CreatedOn       string     `json:"created_on"`
	UpdatedOn       string     `json:"updated_on"`
	CompletedOn     *string    `json:"completed_on"`
	DeferUntil      *string    `json:"defer_until"`
	DeferReason     string     `json:"defer_reason,omitempty"`
	SelectionStreak int        `json:"selection_streak"`
	Notes           string     `json:"notes,omitempty"`
}

// HardwareRequest tracks one piece of hardware the device is waiting on.
type HardwareRequest struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Reason         string         `json:"reason"`
	Status         HardwareStatus `json:"status"`
	Detection      Detection      `json:"detection"`
	VerifyCommand  string         `json:"verify_command,omitempty"`
	RequestedOn    string         `json:"requested_on"`
	LastCheckedOn  *string        `json:"last_checked_on"`
	DetectedOn     *string        `json:"detected_on"`
	VerifiedOn     *string        `json:"verified_on"`
	VerifyFailures int            `json:"verify_failures"`
	Notes          string         `json:"notes,omitempty"`
}

// Incident records a problem that needs or needed attention.
type Incident struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Status    IncidentStatus `json:"status"`
	Severity  Severity       `json:"severity"`
	Summary   string         `json:"summary"`
	CreatedOn string         `json:"created_on"`
	UpdatedOn string         `json:"updated_on"`
}

// Artifact points at a file the worker produced.
type Artifact struct {
	Path        string `json:"path"`
	Description string `json:"description"`
	CreatedOn   string `json:"created_on,omitempty"`
}

// Purpose carries the device's aspirational direction.
type Purpose struct {
	Becoming    string `json:"becoming"`
	MissionPath string `json:"mission_path"`
}

// State is the canonical per-device document in state.json.
type State struct {
	SchemaVersion    string            `json:"schema_version"`
	DeviceID         string            `json:"device_id"`
	AwokeOn          string            `json:"awoke_on"`
	Day              int               `json:"day"`
	Purpose          Purpose           `json:"purpose"`
	Status           DeviceStatus      `json:"status"`
	Tasks            []Task            `json:"tasks"`
	HardwareRequests []HardwareRequest `json:"hardware_requests"`
	Incidents        []Incident        `json:"incidents"`
	Artifacts        []Artifact        `json:"artifacts"`
	LastSummary      string            `json:"last_summary"`
}

// Default returns the state template written on a device's first tick.
func Default(deviceID, missionPath, today string) *State {
	return &State{
		SchemaVersion:    SchemaVersion,
		DeviceID:         deviceID,
		AwokeOn:          today,
		Day:              0,
		Purpose:          Purpose{Becoming: "", MissionPath: missionPath},
		Status:           DeviceActive,
		Tasks:            []Task{},
		HardwareRequests: []HardwareRequest{},
		Incidents:        []Incident{},
		Artifacts:        []Artifact{},
		LastSummary:      "",
	}
}

// NextID returns the next available "<prefix>-YYYYMMDD-NNN" id given the ids
// already in use.
func NextID(existing []string, prefix, yyyymmdd string) string {
	used := make(map[string]bool, len(existing))
	for _, id := range existing {
		used[id] = true
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s-%s-%03d", prefix, yyyymmdd, n)
		if !used[id] {
			return id
		}
	}
}

// CycleID builds the cycle identifier for a day and wall-clock instant.
func CycleID(day int, now time.Time) string {
	return fmt.Sprintf("cycle-%03d-%s", day, now.Format("20060102T150405"))
}

// Timestamp renders the canonical ISO-8601 seconds form.
func Timestamp(now time.Time) string {
	return now.Format("2006-01-02T15:04:05")
}

// DateOf renders the canonical date form.
func DateOf(now time.Time) string {
	return now.Format("2006-01-02")
}
