// Package gitutil commits and pushes the per-device subtree.
package gitutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/danshapiro/wdib/internal/envutil"
)

type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func runGit(dir string, args ...string) (string, string, error) {
	// Disable background auto-maintenance so cron-driven ticks never leave
	// stray git helper processes behind.
	base := []string{
		"-C", dir,
		"-c", "maintenance.auto=0",
		"-c", "gc.auto=0",
	}
	cmd := exec.Command("git", append(base, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	outStr := stdout.String()
	errStr := stderr.String()
	if err != nil {
		return outStr, errStr, &CommandError{Args: args, Stdout: outStr, Stderr: errStr, Err: err}
	}
	return outStr, errStr, nil
}

// CommitInfo reports what the adapter did. Push problems land in Message and
// never fail the cycle.
type CommitInfo struct {
	Committed bool   `json:"committed"`
	Pushed    bool   `json:"pushed"`
	Message   string `json:"message"`
}

// CommitDeviceChanges stages devices/<uuid>, commits when there is a staged
// diff, and optionally pushes. Identity, remote, branch, and push behavior
// come from env (WDIB_GIT_*).
func CommitDeviceChanges(projectRoot, deviceID string, day int, status string) (CommitInfo, error) {
	if envutil.Bool("WDIB_SKIP_GIT_COMMIT", false) {
		return CommitInfo{Message: "Skipped git commit because WDIB_SKIP_GIT_COMMIT=true."}, nil
	}

	deviceRel := "devices/" + deviceID
	shortID := deviceID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	remote := envutil.Str("WDIB_GIT_REMOTE", "origin")
	branch := envutil.Str("WDIB_GIT_BRANCH", "")
	autoPush := envutil.Bool("WDIB_GIT_AUTO_PUSH", true)

	if name := envutil.Str("WDIB_GIT_USER_NAME", ""); name != "" {
		_, _, _ = runGit(projectRoot, "config", "user.name", name)
	}
	if email := envutil.Str("WDIB_GIT_USER_EMAIL", ""); email != "" {
		_, _, _ = runGit(projectRoot, "config", "user.email", email)
	}

	// A device subtree that does not exist yet, or holds no files, is an
	// empty stage, not an error. git add exits 128 on a no-match pathspec.
	if _, err := os.Stat(filepath.Join(projectRoot, deviceRel)); os.IsNotExist(err) {
		return CommitInfo{Message: "No device changes to commit."}, nil
	}
	if _, addErr, err := runGit(projectRoot, "add", "--", deviceRel); err != nil {
		if strings.Contains(addErr, "did not match any files") {
			return CommitInfo{Message: "No device changes to commit."}, nil
		}
		return CommitInfo{}, err
	}

	staged, _, err := runGit(projectRoot, "diff", "--cached", "--name-only", "--", deviceRel)
	if err != nil {
		return CommitInfo{}, err
	}
	if strings.TrimSpace(staged) == "" {
		return CommitInfo{Message: "No device changes to commit."}, nil
	}

	message := fmt.Sprintf("%s day %03d - %s", shortID, day, status)
	if _, _, err := runGit(projectRoot, "commit", "-m", message, "--", deviceRel); err != nil {
		return CommitInfo{}, err
	}

	if !autoPush {
		return CommitInfo{Committed: true, Message: message}, nil
	}

	if _, _, err := runGit(projectRoot, "remote", "get-url", remote); err != nil {
		return CommitInfo{
			Committed: true,
			Message:   fmt.Sprintf("%s (remote '%s' not configured)", message, remote),
		}, nil
	}

	pushArgs := []string{"push", remote}
	if branch != "" {
		pushArgs = append(pushArgs, "HEAD:"+branch)
	}
	if _, pushErr, err := runGit(projectRoot, pushArgs...); err != nil {
		detail := strings.TrimSpace(pushErr)
		if len(detail) > 200 {
			detail = detail[:200]
		}
		return CommitInfo{
			Committed: true,
			Message:   fmt.Sprintf("%s (push failed: %s)", message, detail),
		}, nil
	}

	return CommitInfo{Committed: true, Pushed: true, Message: message}, nil
}
