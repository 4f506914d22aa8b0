// Package storage owns the per-device filesystem layout: the canonical
// state document, the append-only event log, and the runtime and public
// artifacts written each cycle.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/danshapiro/wdib/internal/contracts"
	"github.com/danshapiro/wdib/internal/paths"
	"github.com/danshapiro/wdib/internal/state"
)

// Store reads and writes one device's subtree.
type Store struct {
	Device paths.DevicePaths
	Now    func() time.Time
}

func New(device paths.DevicePaths) *Store {
	return &Store{Device: device, Now: time.Now}
}

// EnsureLayout idempotently creates the device directory tree.
func (s *Store) EnsureLayout() error {
	dirs := []string{
		s.Device.Dir,
		s.Device.Sessions,
		s.Device.Runtime,
		s.Device.WorkOrders,
		s.Device.WorkerResults,
		s.Device.PublicDir,
		s.Device.PublicDaily,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// LoadState reads state.json, creating the default template on first run
// (STATE_INITIALIZED) and migrating legacy documents in place
// (STATE_MIGRATED). The document is schema-validated before decoding.
func (s *Store) LoadState(deviceID, missionPath, today string) (*state.State, error) {
	raw, err := os.ReadFile(s.Device.State)
	if errors.Is(err, os.ErrNotExist) {
		st := state.Default(deviceID, missionPath, today)
		if err := s.SaveState(st); err != nil {
			return nil, err
		}
		if err := s.AppendEvent(state.NewEvent(state.EventStateInitialized, map[string]any{
			"device_id": deviceID,
		})); err != nil {
			return nil, err
		}
		return st, nil
	}
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Device.State, err)
	}

	migrations := migrateLegacy(doc)

	if err := contracts.ValidateState(doc); err != nil {
		return nil, err
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var st state.State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}

	if len(migrations) > 0 {
		if err := s.SaveState(&st); err != nil {
			return nil, err
		}
		if err := s.AppendEvent(state.NewEvent(state.EventStateMigrated, map[string]any{
			"changes": migrations,
		})); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// migrateLegacy rewrites pre-1.0 field spellings in place and returns a
// description of what changed.
func migrateLegacy(doc map[string]any) []string {
	var changes []string
	purpose, ok := doc["purpose"].(map[string]any)
	if !ok {
		return changes
	}
	if spirit, ok := purpose["spirit_path"].(string); ok {
		delete(purpose, "spirit_path")
		if strings.HasSuffix(spirit, "SPIRIT.md") {
			spirit = strings.TrimSuffix(spirit, "SPIRIT.md") + "MISSION.md"
		}
		purpose["mission_path"] = spirit
		changes = append(changes, "purpose.spirit_path -> purpose.mission_path")
	}
	if _, ok := purpose["becoming"]; !ok {
		purpose["becoming"] = ""
		changes = append(changes, "purpose.becoming backfilled")
	}
	return changes
}

// SaveState validates and writes state.json in the canonical encoding.
func (s *Store) SaveState(st *state.State) error {
	if err := contracts.ValidateState(st); err != nil {
		return err
	}
	return contracts.DumpJSON(s.Device.State, st)
}

// AppendEvent appends one single-line JSON event to events.ndjson, filling
// the timestamp when unset. The log is strictly append-only.
func (s *Store) AppendEvent(ev state.Event) error {
	if ev.TS == "" {
		ev.TS = state.Timestamp(s.Now())
	}
	line, err := contracts.MarshalLine(ev)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.Device.Events, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// AppendEvents appends events in order, stopping on the first failure.
func (s *Store) AppendEvents(evs []state.Event) error {
	for _, ev := range evs {
		if err := s.AppendEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// SaveWorkOrder validates and persists the work order before the worker runs.
func (s *Store) SaveWorkOrder(wo *state.WorkOrder) (string, error) {
	if err := contracts.ValidateWorkOrder(wo); err != nil {
		return "", err
	}
	p := s.Device.WorkOrder(wo.CycleID)
	if err := contracts.DumpJSON(p, wo); err != nil {
		return "", err
	}
	return p, nil
}

// SaveWorkerResult persists the normalized worker result before the reducer
// runs, so a failed cycle can be reconstructed post-mortem.
func (s *Store) SaveWorkerResult(res *state.WorkerResult) (string, error) {
	p := s.Device.WorkerResult(res.CycleID)
	if err := contracts.DumpJSON(p, res); err != nil {
		return "", err
	}
	return p, nil
}

// SessionRecord is the immutable per-cycle record under sessions/.
type SessionRecord struct {
	CycleID          string             `json:"cycle_id"`
	Day              int                `json:"day"`
	RunDate          string             `json:"run_date"`
	DeviceID         string             `json:"device_id"`
	Status           state.DeviceStatus `json:"status"`
	WorkerStatus     string             `json:"worker_status"`
	Summary          string             `json:"summary"`
	WorkOrderPath    string             `json:"work_order_path"`
	WorkerResultPath string             `json:"worker_result_path"`
	StateDigest      string             `json:"state_digest"`
}

// SaveSessionRecord writes the session record, stamping it with a blake3
// digest of the canonical state document at cycle end.
func (s *Store) SaveSessionRecord(rec SessionRecord, st *state.State) (string, error) {
	canonical, err := contracts.MarshalCanonical(st)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(canonical)
	rec.StateDigest = hex.EncodeToString(sum[:])
	p := s.Device.SessionRecord(rec.Day, rec.RunDate)
	if err := contracts.DumpJSON(p, rec); err != nil {
		return "", err
	}
	return p, nil
}

// SavePublicStatus overwrites public/status.json.
func (s *Store) SavePublicStatus(snapshot any) (string, error) {
	if err := contracts.DumpJSON(s.Device.PublicStatus, snapshot); err != nil {
		return "", err
	}
	return s.Device.PublicStatus, nil
}

// SavePublicDaily writes the per-day public markdown.
func (s *Store) SavePublicDaily(day int, runDate, markdown string) (string, error) {
	p := s.Device.PublicDailyFile(day, runDate)
	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	if err := os.WriteFile(p, []byte(markdown), 0o644); err != nil {
		return "", err
	}
	return p, nil
}
