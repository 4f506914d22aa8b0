package contracts

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func validState() map[string]any {
	return map[string]any{
		"schema_version": "1.0",
		"device_id":      "0a1b2c3d-0000-0000-0000-000000000000",
		"awoke_on":       "2026-08-25",
		"day":            1,
		"purpose": map[string]any{
			"becoming":     "",
			"mission_path": "/srv/wdib/MISSION.md",
		},
		"status":            "ACTIVE",
		"tasks":             []any{},
		"hardware_requests": []any{},
		"incidents":         []any{},
		"artifacts":         []any{},
		"last_summary":      "",
	}
}

func validWorkOrder() map[string]any {
	return map[string]any{
		"schema_version": "1.0",
		"cycle_id":       "cycle-001-20260825T060000",
		"created_on":     "2026-08-25T06:00:00",
		"device_id":      "0a1b2c3d-0000-0000-0000-000000000000",
		"objective":      "Advance task task-20260825-001: Build probe",
		"constraints":    []any{"Work only inside allowed_paths."},
		"allowed_paths":  []any{"/srv/wdib"},
		"context": map[string]any{
			"becoming":          "",
			"mission_excerpt":   "",
			"tasks":             []any{},
			"hardware_requests": []any{},
			"incidents":         []any{},
		},
		"result_path":           "/srv/wdib/result.json",
		"result_schema_version": "1.0",
	}
}

func TestValidateState_Valid(t *testing.T) {
	if err := ValidateState(validState()); err != nil {
		t.Fatalf("valid state rejected: %v", err)
	}
}

// Every validator must work as the very first validation in a process, so
// schema compilation cannot be deferred past the point a schema is read.
func TestValidators_FirstUse(t *testing.T) {
	if err := ValidateWorkOrder(validWorkOrder()); err != nil {
		t.Fatalf("valid work order rejected: %v", err)
	}
	if err := ValidateState(validState()); err != nil {
		t.Fatalf("valid state rejected: %v", err)
	}
	if err := ValidateWorkerResult(map[string]any{
		"schema_version": "1.0",
		"cycle_id":       "cycle-001-20260825T060000",
		"status":         "COMPLETED",
		"summary":        "did a thing",
	}); err != nil {
		t.Fatalf("valid worker result rejected: %v", err)
	}
}

func TestValidateWorkOrder_MissingObjective(t *testing.T) {
	doc := validWorkOrder()
	delete(doc, "objective")
	if err := ValidateWorkOrder(doc); err == nil {
		t.Fatal("work order without objective accepted")
	}
}

func TestValidateState_BadStatus(t *testing.T) {
	doc := validState()
	doc["status"] = "SLEEPING"
	err := ValidateState(doc)
	if err == nil {
		t.Fatal("invalid status accepted")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if ve.Label != "state" {
		t.Errorf("label = %q, want state", ve.Label)
	}
	if !strings.HasPrefix(ve.Error(), "invalid state: ") {
		t.Errorf("message = %q", ve.Error())
	}
	if !strings.Contains(ve.Error(), "/status") {
		t.Errorf("message should name the failing location, got %q", ve.Error())
	}
}

func TestValidateWorkerResult_RequiresSummary(t *testing.T) {
	doc := map[string]any{
		"schema_version": "1.0",
		"cycle_id":       "cycle-001-20260825T060000",
		"status":         "COMPLETED",
	}
	if err := ValidateWorkerResult(doc); err == nil {
		t.Fatal("worker result without summary accepted")
	}
	doc["summary"] = "did a thing"
	if err := ValidateWorkerResult(doc); err != nil {
		t.Fatalf("minimal worker result rejected: %v", err)
	}
}

func TestValidateWorkerResult_EmptyCycleID(t *testing.T) {
	doc := map[string]any{
		"schema_version": "1.0",
		"cycle_id":       "",
		"status":         "BLOCKED",
		"summary":        "x",
	}
	if err := ValidateWorkerResult(doc); err == nil {
		t.Fatal("empty cycle_id accepted")
	}
}

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	if !strings.HasSuffix(text, "\n") {
		t.Error("canonical JSON should end with a newline")
	}
	if strings.Index(text, "alpha") > strings.Index(text, "zeta") {
		t.Errorf("keys not sorted:\n%s", text)
	}
	if !strings.Contains(text, "  \"alpha\"") {
		t.Errorf("expected 2-space indent:\n%s", text)
	}
}

func TestDumpLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	in := map[string]any{"b": "two", "a": float64(1)}
	if err := DumpJSON(path, in); err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := LoadJSON(path, &out); err != nil {
		t.Fatal(err)
	}
	if out["a"] != float64(1) || out["b"] != "two" {
		t.Errorf("round trip mismatch: %v", out)
	}
}

func TestProblemCap(t *testing.T) {
	doc := validState()
	tasks := make([]any, 0, 15)
	for i := 0; i < 15; i++ {
		tasks = append(tasks, map[string]any{"title": ""})
	}
	doc["tasks"] = tasks
	err := ValidateState(doc)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(ve.Problems) > 10 {
		t.Errorf("problems = %d, want <= 10", len(ve.Problems))
	}
}
