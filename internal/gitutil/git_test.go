package gitutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	run("init", "-b", "main")
	run("config", "user.name", "test")
	run("config", "user.email", "test@test")
	if err := os.WriteFile(filepath.Join(dir, "initial.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "-A")
	run("commit", "-m", "initial")
	return dir
}

func writeDeviceFile(t *testing.T, dir, deviceID, name, body string) {
	t.Helper()
	deviceDir := filepath.Join(dir, "devices", deviceID)
	if err := os.MkdirAll(deviceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deviceDir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCommitDeviceChanges(t *testing.T) {
	dir := initTestRepo(t)
	deviceID := "0a1b2c3d-0000-0000-0000-000000000000"
	writeDeviceFile(t, dir, deviceID, "state.json", "{}")
	t.Setenv("WDIB_GIT_AUTO_PUSH", "false")
	t.Setenv("WDIB_SKIP_GIT_COMMIT", "false")

	info, err := CommitDeviceChanges(dir, deviceID, 3, "ACTIVE")
	if err != nil {
		t.Fatalf("CommitDeviceChanges: %v", err)
	}
	if !info.Committed {
		t.Fatalf("expected committed, got %+v", info)
	}
	if info.Pushed {
		t.Fatalf("push disabled but Pushed=true")
	}
	if want := "0a1b2c3d day 003 - ACTIVE"; info.Message != want {
		t.Errorf("message = %q, want %q", info.Message, want)
	}
}

func TestCommitDeviceChanges_NoChanges(t *testing.T) {
	dir := initTestRepo(t)
	deviceID := "0a1b2c3d-0000-0000-0000-000000000000"
	t.Setenv("WDIB_GIT_AUTO_PUSH", "false")

	info, err := CommitDeviceChanges(dir, deviceID, 1, "ACTIVE")
	if err != nil {
		t.Fatalf("CommitDeviceChanges: %v", err)
	}
	if info.Committed {
		t.Fatalf("nothing staged but Committed=true: %+v", info)
	}
	if info.Message != "No device changes to commit." {
		t.Errorf("message = %q", info.Message)
	}
}

func TestCommitDeviceChanges_EmptyDeviceDir(t *testing.T) {
	dir := initTestRepo(t)
	deviceID := "0a1b2c3d-0000-0000-0000-000000000000"
	if err := os.MkdirAll(filepath.Join(dir, "devices", deviceID), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WDIB_GIT_AUTO_PUSH", "false")

	info, err := CommitDeviceChanges(dir, deviceID, 1, "ACTIVE")
	if err != nil {
		t.Fatalf("CommitDeviceChanges: %v", err)
	}
	if info.Committed {
		t.Fatalf("empty device dir but Committed=true: %+v", info)
	}
	if info.Message != "No device changes to commit." {
		t.Errorf("message = %q", info.Message)
	}
}

func TestCommitDeviceChanges_MissingRemote(t *testing.T) {
	dir := initTestRepo(t)
	deviceID := "feedface-0000-0000-0000-000000000000"
	writeDeviceFile(t, dir, deviceID, "events.ndjson", "")
	t.Setenv("WDIB_GIT_AUTO_PUSH", "true")

	info, err := CommitDeviceChanges(dir, deviceID, 2, "ACTIVE")
	if err != nil {
		t.Fatalf("CommitDeviceChanges: %v", err)
	}
	if !info.Committed || info.Pushed {
		t.Fatalf("want committed without push, got %+v", info)
	}
	if !strings.Contains(info.Message, "remote 'origin' not configured") {
		t.Errorf("message should report missing remote, got %q", info.Message)
	}
}

func TestCommitDeviceChanges_Skip(t *testing.T) {
	dir := initTestRepo(t)
	t.Setenv("WDIB_SKIP_GIT_COMMIT", "true")

	info, err := CommitDeviceChanges(dir, "dead", 1, "ACTIVE")
	if err != nil {
		t.Fatalf("CommitDeviceChanges: %v", err)
	}
	if info.Committed || info.Pushed {
		t.Fatalf("skip flag set but work happened: %+v", info)
	}
}
