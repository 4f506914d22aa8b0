package state

// Work order and worker result documents exchanged with the external worker.

// TaskSummary is the compact task view embedded in work-order context.
type TaskSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// HardwareSummary is the compact hardware view embedded in work-order context.
type HardwareSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// IncidentSummary is the compact incident view embedded in work-order context.
type IncidentSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// WorkOrderContext carries the situational context handed to the worker.
type WorkOrderContext struct {
	Becoming         string            `json:"becoming"`
	MissionExcerpt   string            `json:"mission_excerpt"`
	Tasks            []TaskSummary     `json:"tasks"`
	HardwareRequests []HardwareSummary `json:"hardware_requests"`
	Incidents        []IncidentSummary `json:"incidents"`
}

// WorkOrder is the contract handed to the worker each cycle.
type WorkOrder struct {
	SchemaVersion       string           `json:"schema_version"`
	CycleID             string           `json:"cycle_id"`
	CreatedOn           string           `json:"created_on"`
	DeviceID            string           `json:"device_id"`
	Objective           string           `json:"objective"`
	Constraints         []string         `json:"constraints"`
	AllowedPaths        []string         `json:"allowed_paths"`
	Context             WorkOrderContext `json:"context"`
	ResultPath          string           `json:"result_path"`
	ResultSchemaVersion string           `json:"result_schema_version"`
}

// ProposedTask is a worker-suggested new task.
type ProposedTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	BlockedBy   string `json:"blocked_by,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// TaskUpdate mutates an existing task. Defer fields are pointers so the
// reducer can tell "absent" (no change) apart from "present but empty"
// (clear the deferral).
type TaskUpdate struct {
	TaskID      string  `json:"task_id"`
	Status      string  `json:"status,omitempty"`
	DeferUntil  *string `json:"defer_until,omitempty"`
	DeferReason *string `json:"defer_reason,omitempty"`
	Note        string  `json:"note,omitempty"`
}

// ProposedHardware is a worker-suggested hardware request.
type ProposedHardware struct {
	Name          string    `json:"name"`
	Reason        string    `json:"reason"`
	Detection     Detection `json:"detection"`
	VerifyCommand string    `json:"verify_command,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// ProposedIncident is a worker-reported incident.
type ProposedIncident struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Severity string `json:"severity,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ProposedArtifact is a worker-reported artifact.
type ProposedArtifact struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

// WorkerResult is the contract the worker writes back each cycle.
type WorkerResult struct {
	SchemaVersion    string             `json:"schema_version"`
	CycleID          string             `json:"cycle_id"`
	Status           WorkerStatus       `json:"status"`
	Summary          string             `json:"summary"`
	Becoming         string             `json:"becoming,omitempty"`
	ProposedTasks    []ProposedTask     `json:"proposed_tasks,omitempty"`
	TaskUpdates      []TaskUpdate       `json:"task_updates,omitempty"`
	ProposedHardware []ProposedHardware `json:"proposed_hardware_requests,omitempty"`
	Incidents        []ProposedIncident `json:"incidents,omitempty"`
	Artifacts        []ProposedArtifact `json:"artifacts,omitempty"`
}
