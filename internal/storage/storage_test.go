package storage

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/danshapiro/wdib/internal/paths"
	"github.com/danshapiro/wdib/internal/state"
)

const testDeviceID = "0a1b2c3d-0000-0000-0000-000000000000"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	p := paths.New(t.TempDir())
	s := New(p.Device(testDeviceID))
	if err := s.EnsureLayout(); err != nil {
		t.Fatal(err)
	}
	return s
}

func readEvents(t *testing.T, s *Store) []state.Event {
	t.Helper()
	raw, err := os.ReadFile(s.Device.Events)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	var events []state.Event
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var ev state.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestLoadState_FirstRunCreatesDefault(t *testing.T) {
	s := newTestStore(t)

	st, err := s.LoadState(testDeviceID, "/srv/MISSION.md", "2026-08-25")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.Day != 0 || st.Status != state.DeviceActive {
		t.Errorf("default state = %+v", st)
	}

	events := readEvents(t, s)
	if len(events) != 1 || events[0].Type != state.EventStateInitialized {
		t.Errorf("events = %+v, want single STATE_INITIALIZED", events)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	st, err := s.LoadState(testDeviceID, "/srv/MISSION.md", "2026-08-25")
	if err != nil {
		t.Fatal(err)
	}
	st.Day = 4
	st.LastSummary = "made progress"
	st.Tasks = append(st.Tasks, state.Task{
		ID: "task-20260825-001", Title: "Build probe", Status: state.TaskTODO,
		CreatedOn: "2026-08-25", UpdatedOn: "2026-08-25",
	})
	if err := s.SaveState(st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	back, err := s.LoadState(testDeviceID, "/srv/MISSION.md", "2026-08-25")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Day != 4 || back.LastSummary != "made progress" || len(back.Tasks) != 1 {
		t.Errorf("round trip = %+v", back)
	}
	if back.Tasks[0].ID != st.Tasks[0].ID {
		t.Errorf("task round trip = %+v", back.Tasks[0])
	}
}

func TestSaveState_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	st, err := s.LoadState(testDeviceID, "/srv/MISSION.md", "2026-08-25")
	if err != nil {
		t.Fatal(err)
	}
	st.Status = "NAPPING"
	if err := s.SaveState(st); err == nil {
		t.Fatal("invalid state written without error")
	}
}

func TestLoadState_MigratesLegacySpiritPath(t *testing.T) {
	s := newTestStore(t)
	legacy := map[string]any{
		"schema_version": "1.0",
		"device_id":      testDeviceID,
		"awoke_on":       "2026-08-01",
		"day":            2,
		"purpose": map[string]any{
			"spirit_path": "/srv/wdib/SPIRIT.md",
		},
		"status":            "ACTIVE",
		"tasks":             []any{},
		"hardware_requests": []any{},
		"incidents":         []any{},
		"artifacts":         []any{},
		"last_summary":      "",
	}
	b, _ := json.Marshal(legacy)
	if err := os.WriteFile(s.Device.State, b, 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := s.LoadState(testDeviceID, "/srv/wdib/MISSION.md", "2026-08-25")
	if err != nil {
		t.Fatalf("LoadState legacy: %v", err)
	}
	if st.Purpose.MissionPath != "/srv/wdib/MISSION.md" {
		t.Errorf("mission_path = %q", st.Purpose.MissionPath)
	}
	if st.Purpose.Becoming != "" {
		t.Errorf("becoming should be backfilled empty, got %q", st.Purpose.Becoming)
	}

	events := readEvents(t, s)
	if len(events) != 1 || events[0].Type != state.EventStateMigrated {
		t.Errorf("events = %+v, want single STATE_MIGRATED", events)
	}

	// Migration is persisted; a second load is clean.
	if _, err := s.LoadState(testDeviceID, "/srv/wdib/MISSION.md", "2026-08-25"); err != nil {
		t.Fatalf("post-migration load: %v", err)
	}
	if got := readEvents(t, s); len(got) != 1 {
		t.Errorf("second load should not re-migrate, events = %d", len(got))
	}
}

func TestAppendEvent_AppendOnly(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.AppendEvent(state.NewEvent(state.EventCycleStarted, map[string]any{"day": i})); err != nil {
			t.Fatal(err)
		}
	}
	events := readEvents(t, s)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for _, ev := range events {
		if ev.TS == "" {
			t.Error("timestamp not filled on append")
		}
	}

	raw, err := os.ReadFile(s.Device.Events)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if strings.Contains(line, "\n") {
			t.Error("events must be single-line JSON")
		}
	}
}

func TestSaveSessionRecord_DigestsState(t *testing.T) {
	s := newTestStore(t)
	st, err := s.LoadState(testDeviceID, "/srv/MISSION.md", "2026-08-25")
	if err != nil {
		t.Fatal(err)
	}
	path, err := s.SaveSessionRecord(SessionRecord{
		CycleID: "cycle-001-20260825T060000", Day: 1, RunDate: "2026-08-25",
		DeviceID: testDeviceID, Status: st.Status, WorkerStatus: "COMPLETED",
	}, st)
	if err != nil {
		t.Fatalf("SaveSessionRecord: %v", err)
	}
	var rec SessionRecord
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.StateDigest) != 64 {
		t.Errorf("state_digest = %q, want 64 hex chars", rec.StateDigest)
	}
}

func TestSaveWorkOrder_Validates(t *testing.T) {
	s := newTestStore(t)
	wo := &state.WorkOrder{
		SchemaVersion: "1.0",
		CycleID:       "cycle-001-20260825T060000",
		CreatedOn:     "2026-08-25T06:00:00",
		DeviceID:      testDeviceID,
		Objective:     "Advance task task-20260825-001: Build probe",
		Constraints:   []string{"Work only inside allowed_paths."},
		AllowedPaths:  []string{"/srv/wdib"},
		Context: state.WorkOrderContext{
			Tasks:            []state.TaskSummary{},
			HardwareRequests: []state.HardwareSummary{},
			Incidents:        []state.IncidentSummary{},
		},
		ResultPath:          "/srv/wdib/result.json",
		ResultSchemaVersion: "1.0",
	}
	if _, err := s.SaveWorkOrder(wo); err != nil {
		t.Fatalf("SaveWorkOrder: %v", err)
	}

	wo.Objective = ""
	if _, err := s.SaveWorkOrder(wo); err == nil {
		t.Fatal("empty objective accepted")
	}
}
