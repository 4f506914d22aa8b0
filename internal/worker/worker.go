// Package worker spawns the external codex worker for one cycle and turns
// its output file into a validated worker result.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/danshapiro/wdib/internal/contracts"
	"github.com/danshapiro/wdib/internal/envutil"
	"github.com/danshapiro/wdib/internal/state"
)

const outputTailCap = 4000

// RunFailure is raised when the worker binary is missing, exits non-zero,
// or produces no valid result.
type RunFailure struct {
	Reason string
}

func (e *RunFailure) Error() string { return e.Reason }

func failf(format string, args ...any) error {
	return &RunFailure{Reason: fmt.Sprintf(format, args...)}
}

// RunMetadata describes one worker invocation for the WORKER_EXECUTED event.
type RunMetadata struct {
	Mode         string `json:"mode"`
	InvocationID string `json:"invocation_id"`
	ReturnCode   int    `json:"returncode"`
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	WebSearch    bool   `json:"web_search"`
}

// Executor is the engine-facing seam; tests substitute a fake.
type Executor interface {
	Execute(ctx context.Context, wo *state.WorkOrder) (*state.WorkerResult, RunMetadata, error)
}

// Adapter runs codex exec against the project root.
type Adapter struct {
	ProjectRoot string
	Timeout     time.Duration
	Now         func() time.Time
}

func (a *Adapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Adapter) newInvocationID() string {
	t := a.now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func tail(s string) string {
	if len(s) <= outputTailCap {
		return s
	}
	return s[len(s)-outputTailCap:]
}

func sandboxMode() string {
	mode := envutil.Str("WDIB_CODEX_SANDBOX", "workspace-write")
	switch mode {
	case "read-only", "workspace-write", "danger-full-access":
		return mode
	default:
		return "workspace-write"
	}
}

// Execute runs one work order. In skip mode (WDIB_SKIP_CODEX) a fixed
// BLOCKED result is written instead of spawning the worker.
func (a *Adapter) Execute(ctx context.Context, wo *state.WorkOrder) (*state.WorkerResult, RunMetadata, error) {
	meta := RunMetadata{InvocationID: a.newInvocationID()}

	if envutil.Bool("WDIB_SKIP_CODEX", false) {
		meta.Mode = "skipped"
		res, err := a.writeSkipResult(wo)
		return res, meta, err
	}
	meta.Mode = "live"
	meta.WebSearch = envutil.Bool("WDIB_CODEX_ENABLE_WEB_SEARCH", false)

	codexBin, err := exec.LookPath("codex")
	if err != nil {
		return nil, meta, failf("codex binary was not found in PATH")
	}

	prompt := Prompt(wo, meta.WebSearch)
	args := []string{
		"exec",
		"--sandbox", sandboxMode(),
		"--output-last-message", wo.ResultPath,
		"--cd", a.ProjectRoot,
	}
	if meta.WebSearch {
		args = append(args, "--search")
	}
	if model := envutil.Str("WDIB_CODEX_MODEL", ""); model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, prompt)

	runCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, codexBin, args...)
	cmd.Env = os.Environ()
	// Non-interactive codex exec wants CODEX_API_KEY.
	if os.Getenv("CODEX_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") != "" {
		cmd.Env = append(cmd.Env, "CODEX_API_KEY="+os.Getenv("OPENAI_API_KEY"))
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	meta.Stdout = tail(stdout.String())
	meta.Stderr = tail(stderr.String())
	if cmd.ProcessState != nil {
		meta.ReturnCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, meta, failf("codex exec timed out after %s", a.Timeout)
	}
	if runErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return nil, meta, failf("codex exec failed (%d): %s", meta.ReturnCode, detail)
	}

	res, err := a.readResult(wo)
	return res, meta, err
}

func (a *Adapter) writeSkipResult(wo *state.WorkOrder) (*state.WorkerResult, error) {
	payload := map[string]any{
		"schema_version": state.SchemaVersion,
		"cycle_id":       wo.CycleID,
		"status":         string(state.WorkerBlocked),
		"summary":        "Codex execution skipped because WDIB_SKIP_CODEX=true.",
	}
	if err := os.MkdirAll(filepath.Dir(wo.ResultPath), 0o755); err != nil {
		return nil, err
	}
	if err := contracts.DumpJSON(wo.ResultPath, payload); err != nil {
		return nil, err
	}
	return decodeResult(payload)
}

func (a *Adapter) readResult(wo *state.WorkOrder) (*state.WorkerResult, error) {
	raw, err := os.ReadFile(wo.ResultPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, failf("worker result file not found: %s", wo.ResultPath)
	}
	if err != nil {
		return nil, err
	}
	payload, err := ExtractJSONObject(string(raw))
	if err != nil {
		return nil, &RunFailure{Reason: err.Error()}
	}
	normalized := Normalize(payload, wo)
	return decodeResult(normalized)
}

func decodeResult(payload map[string]any) (*state.WorkerResult, error) {
	if err := contracts.ValidateWorkerResult(payload); err != nil {
		var ve *contracts.ValidationError
		if errors.As(err, &ve) {
			return nil, &RunFailure{Reason: ve.Error()}
		}
		return nil, err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var res state.WorkerResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
