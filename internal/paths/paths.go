// Package paths resolves the project root and the per-device subtree.
package paths

import (
	"fmt"
	"path/filepath"
)

const (
	stateFileName        = "state.json"
	eventsFileName       = "events.ndjson"
	runtimeDirName       = "runtime"
	workOrdersDirName    = "work_orders"
	workerResultsDirName = "worker_results"
	humanMessageFileName = "human_message.txt"
	sessionsDirName      = "sessions"
	publicDirName        = "public"
	publicDailyDirName   = "daily"
	publicStatusFileName = "status.json"
)

// Paths anchors all on-disk locations at a single project root. It is
// constructed once at CLI entry and threaded through explicitly.
type Paths struct {
	Root string
}

func New(root string) Paths {
	return Paths{Root: root}
}

func (p Paths) EnvFile() string      { return filepath.Join(p.Root, ".env") }
func (p Paths) DeviceIDFile() string { return filepath.Join(p.Root, ".device_id") }
func (p Paths) MissionFile() string  { return filepath.Join(p.Root, "MISSION.md") }
func (p Paths) ConfigFile() string   { return filepath.Join(p.Root, "wdib.yaml") }
func (p Paths) DevicesDir() string   { return filepath.Join(p.Root, "devices") }

// Device returns the layout for one device directory.
func (p Paths) Device(deviceID string) DevicePaths {
	dir := filepath.Join(p.DevicesDir(), deviceID)
	runtimeDir := filepath.Join(dir, runtimeDirName)
	publicDir := filepath.Join(dir, publicDirName)
	return DevicePaths{
		Dir:           dir,
		State:         filepath.Join(dir, stateFileName),
		Events:        filepath.Join(dir, eventsFileName),
		Sessions:      filepath.Join(dir, sessionsDirName),
		Runtime:       runtimeDir,
		WorkOrders:    filepath.Join(runtimeDir, workOrdersDirName),
		WorkerResults: filepath.Join(runtimeDir, workerResultsDirName),
		HumanMessage:  filepath.Join(runtimeDir, humanMessageFileName),
		PublicDir:     publicDir,
		PublicDaily:   filepath.Join(publicDir, publicDailyDirName),
		PublicStatus:  filepath.Join(publicDir, publicStatusFileName),
	}
}

// DevicePaths is the per-device filesystem layout:
//
//	devices/<uuid>/
//	  state.json
//	  events.ndjson
//	  sessions/day_NNN_YYYY-MM-DD.json
//	  runtime/{human_message.txt,work_orders/,worker_results/}
//	  public/{status.json,daily/day_NNN_YYYY-MM-DD.md}
type DevicePaths struct {
	Dir           string
	State         string
	Events        string
	Sessions      string
	Runtime       string
	WorkOrders    string
	WorkerResults string
	HumanMessage  string
	PublicDir     string
	PublicDaily   string
	PublicStatus  string
}

func (d DevicePaths) WorkOrder(cycleID string) string {
	return filepath.Join(d.WorkOrders, cycleID+".json")
}

func (d DevicePaths) WorkerResult(cycleID string) string {
	return filepath.Join(d.WorkerResults, cycleID+".json")
}

func (d DevicePaths) SessionRecord(day int, runDate string) string {
	return filepath.Join(d.Sessions, fmt.Sprintf("day_%03d_%s.json", day, runDate))
}

func (d DevicePaths) PublicDailyFile(day int, runDate string) string {
	return filepath.Join(d.PublicDaily, fmt.Sprintf("day_%03d_%s.md", day, runDate))
}
