package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/danshapiro/wdib/internal/state"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 25, 6, 30, 0, 0, time.UTC)
}

func newPlanner() *Planner {
	return &Planner{Now: fixedNow}
}

func task(id, title string, status state.TaskStatus, streak int) state.Task {
	return state.Task{
		ID: id, Title: title, Status: status, SelectionStreak: streak,
		CreatedOn: "2026-08-20", UpdatedOn: "2026-08-20",
	}
}

func plan(t *testing.T, st *state.State) (*state.WorkOrder, []state.Event) {
	t.Helper()
	wo, events := newPlanner().Plan(st, "dev-1", "cycle-003-20260825T063000",
		"", "/srv/wdib/devices/dev-1/worker_results/r.json", []string{"/srv/wdib"})
	if wo == nil {
		t.Fatal("nil work order")
	}
	return wo, events
}

func TestPlan_RotatesStaleTask(t *testing.T) {
	st := &state.State{Tasks: []state.Task{
		task("task-a", "Stale work", state.TaskInProgress, 2),
		task("task-b", "Fresh work", state.TaskTODO, 0),
	}}

	wo, events := plan(t, st)

	if st.Tasks[1].Status != state.TaskInProgress {
		t.Fatalf("task-b status = %s, want IN_PROGRESS", st.Tasks[1].Status)
	}
	if st.Tasks[0].SelectionStreak != 0 {
		t.Errorf("stale streak = %d, want reset to 0", st.Tasks[0].SelectionStreak)
	}
	if st.Tasks[1].SelectionStreak != 1 {
		t.Errorf("promoted streak = %d, want 1", st.Tasks[1].SelectionStreak)
	}
	if !strings.Contains(wo.Objective, "task-b") {
		t.Errorf("objective = %q, want task-b selected", wo.Objective)
	}

	var rotated, promoted bool
	for _, ev := range events {
		switch ev.Type {
		case state.EventTaskPlannerRotated:
			rotated = true
			if ev.Fields["from_task_id"] != "task-a" || ev.Fields["to_task_id"] != "task-b" {
				t.Errorf("rotation fields = %v", ev.Fields)
			}
		case state.EventTaskStatusChanged:
			promoted = true
			if ev.Fields["reason"] != "Promoted by planner rotation." {
				t.Errorf("promotion reason = %v", ev.Fields["reason"])
			}
		}
	}
	if !rotated || !promoted {
		t.Errorf("events = %+v, want rotation plus promotion", events)
	}
}

func TestPlan_StreakBelowLimitKeepsTask(t *testing.T) {
	st := &state.State{Tasks: []state.Task{
		task("task-a", "Ongoing work", state.TaskInProgress, 1),
		task("task-b", "Waiting work", state.TaskTODO, 0),
	}}

	wo, events := plan(t, st)

	if !strings.Contains(wo.Objective, "task-a") {
		t.Errorf("objective = %q, want task-a kept", wo.Objective)
	}
	if st.Tasks[0].SelectionStreak != 2 {
		t.Errorf("streak = %d, want 2", st.Tasks[0].SelectionStreak)
	}
	if len(events) != 0 {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestPlan_PromotesFirstTODO(t *testing.T) {
	st := &state.State{Tasks: []state.Task{
		task("task-a", "First in line", state.TaskTODO, 0),
		task("task-b", "Second in line", state.TaskTODO, 0),
	}}

	wo, events := plan(t, st)

	if st.Tasks[0].Status != state.TaskInProgress {
		t.Fatalf("task-a status = %s, want IN_PROGRESS", st.Tasks[0].Status)
	}
	if !strings.Contains(wo.Objective, "task-a") {
		t.Errorf("objective = %q", wo.Objective)
	}
	if len(events) != 1 || events[0].Fields["reason"] != "Selected by planner for current cycle." {
		t.Errorf("events = %+v", events)
	}
}

func TestPlan_ExactlyOneStreakIncrements(t *testing.T) {
	st := &state.State{Tasks: []state.Task{
		task("task-a", "A", state.TaskInProgress, 0),
		task("task-b", "B", state.TaskInProgress, 1),
		task("task-c", "C", state.TaskTODO, 3),
	}}

	plan(t, st)

	// Lowest-streak IN_PROGRESS wins; everyone else resets.
	if st.Tasks[0].SelectionStreak != 1 {
		t.Errorf("selected streak = %d, want 1", st.Tasks[0].SelectionStreak)
	}
	if st.Tasks[1].SelectionStreak != 0 || st.Tasks[2].SelectionStreak != 0 {
		t.Errorf("unselected streaks = %d/%d, want 0/0",
			st.Tasks[1].SelectionStreak, st.Tasks[2].SelectionStreak)
	}
}

func TestRefreshDeferrals(t *testing.T) {
	expired := "2026-08-24"
	future := "2026-09-01"
	bogus := "soonish"
	st := &state.State{Tasks: []state.Task{
		func() state.Task {
			tk := task("task-a", "Expired", state.TaskTODO, 0)
			tk.DeferUntil = &expired
			tk.DeferReason = "waiting on parts"
			return tk
		}(),
		func() state.Task {
			tk := task("task-b", "Future", state.TaskTODO, 0)
			tk.DeferUntil = &future
			return tk
		}(),
		func() state.Task {
			tk := task("task-c", "Bogus", state.TaskTODO, 0)
			tk.DeferUntil = &bogus
			return tk
		}(),
	}}

	events := newPlanner().RefreshDeferrals(st)

	if st.Tasks[0].DeferUntil != nil || st.Tasks[0].DeferReason != "" {
		t.Errorf("expired deferral not released: %+v", st.Tasks[0])
	}
	if st.Tasks[1].DeferUntil == nil {
		t.Error("future deferral should stand")
	}
	if st.Tasks[2].DeferUntil != nil {
		t.Error("unparseable deferral should be cleared")
	}

	types := map[state.EventType]int{}
	for _, ev := range events {
		types[ev.Type]++
	}
	if types[state.EventTaskDeferReleased] != 1 || types[state.EventTaskDeferInvalid] != 1 {
		t.Errorf("event mix = %v", types)
	}
}

func TestPlan_DeferredTasksAreInvisible(t *testing.T) {
	future := "2026-09-01"
	st := &state.State{Tasks: []state.Task{
		func() state.Task {
			tk := task("task-a", "Deferred", state.TaskInProgress, 0)
			tk.DeferUntil = &future
			return tk
		}(),
	}}

	wo, _ := plan(t, st)

	if strings.Contains(wo.Objective, "task-a") {
		t.Errorf("deferred task selected: %q", wo.Objective)
	}
}

func TestObjective_ClosedSet(t *testing.T) {
	now := "the mission text"

	hw := &state.State{HardwareRequests: []state.HardwareRequest{{
		ID: "hw-1", Name: "sensor", Status: state.HardwareOpen,
	}}}
	if got := objective(hw, -1, now); !strings.HasPrefix(got, "Continue software progress while hardware requests are pending.") {
		t.Errorf("hardware objective = %q", got)
	}

	empty := &state.State{}
	if got := objective(empty, -1, ""); !strings.HasPrefix(got, "Mission is currently unknown.") {
		t.Errorf("discovery objective = %q", got)
	}
	if got := objective(empty, -1, now); !strings.HasPrefix(got, "Advance the mission") {
		t.Errorf("mission objective = %q", got)
	}
}

func TestPlan_WorkOrderShape(t *testing.T) {
	st := &state.State{
		Tasks: []state.Task{task("task-a", "Build probe", state.TaskInProgress, 0)},
		HardwareRequests: []state.HardwareRequest{{
			ID: "hw-1", Name: "sensor", Status: state.HardwareVerified,
		}},
	}
	wo, _ := newPlanner().Plan(st, "dev-1", "cycle-003-20260825T063000",
		strings.Repeat("m", 3000), "/srv/r.json", []string{"/srv/wdib"})

	if wo.CycleID != "cycle-003-20260825T063000" || wo.DeviceID != "dev-1" {
		t.Errorf("identity fields = %q/%q", wo.CycleID, wo.DeviceID)
	}
	if len(wo.Constraints) != 4 {
		t.Errorf("constraints = %d, want 4", len(wo.Constraints))
	}
	if !strings.HasSuffix(wo.Context.MissionExcerpt, "[TRUNCATED]") {
		t.Error("long mission should be truncated with a marker")
	}
	if len(wo.Context.Tasks) != 1 || len(wo.Context.HardwareRequests) != 1 {
		t.Errorf("context = %+v", wo.Context)
	}
	if wo.ResultPath != "/srv/r.json" || wo.ResultSchemaVersion != "1.0" {
		t.Errorf("result contract = %q/%q", wo.ResultPath, wo.ResultSchemaVersion)
	}
}
