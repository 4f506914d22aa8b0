package envutil

import (
	"os"
	"testing"

	"github.com/danshapiro/wdib/internal/paths"
)

func TestBool(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"1", true}, {"true", true}, {"YES", true}, {"on", true},
		{"0", false}, {"false", false}, {"maybe", false}, {"", false},
	}
	for _, tc := range cases {
		t.Setenv("WDIB_TEST_BOOL", tc.raw)
		if got := Bool("WDIB_TEST_BOOL", true); got != tc.want {
			t.Errorf("Bool(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
	os.Unsetenv("WDIB_TEST_BOOL_ABSENT")
	if !Bool("WDIB_TEST_BOOL_ABSENT", true) {
		t.Error("absent var should fall back to default")
	}
}

func TestIntAndStr(t *testing.T) {
	t.Setenv("WDIB_TEST_INT", " 42 ")
	if got := Int("WDIB_TEST_INT", 7); got != 42 {
		t.Errorf("Int = %d", got)
	}
	t.Setenv("WDIB_TEST_INT", "not-a-number")
	if got := Int("WDIB_TEST_INT", 7); got != 7 {
		t.Errorf("Int bad parse = %d, want default", got)
	}
	t.Setenv("WDIB_TEST_STR", "  value  ")
	if got := Str("WDIB_TEST_STR", "def"); got != "value" {
		t.Errorf("Str = %q", got)
	}
	t.Setenv("WDIB_TEST_STR", "   ")
	if got := Str("WDIB_TEST_STR", "def"); got != "def" {
		t.Errorf("Str blank = %q, want default", got)
	}
}

func TestTimeoutFloors(t *testing.T) {
	t.Setenv("WDIB_CODEX_TIMEOUT_SECONDS", "10")
	if got := CodexTimeoutSeconds(); got != 60 {
		t.Errorf("codex timeout floor = %d, want 60", got)
	}
	t.Setenv("WDIB_HW_COMMAND_TIMEOUT_SECONDS", "1")
	if got := CommandTimeoutSeconds(); got != 5 {
		t.Errorf("command timeout floor = %d, want 5", got)
	}
}

func TestResolveDeviceID_Persists(t *testing.T) {
	t.Setenv("WDIB_DEVICE_ID", "")
	os.Unsetenv("WDIB_DEVICE_ID")
	p := paths.New(t.TempDir())

	first, err := ResolveDeviceID(p)
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("empty device id")
	}

	// A second resolve in a fresh process env reads the persisted file.
	os.Unsetenv("WDIB_DEVICE_ID")
	second, err := ResolveDeviceID(p)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("device id not stable: %q then %q", first, second)
	}
	if os.Getenv("WDIB_DEVICE_ID") != first {
		t.Error("resolved id should be exported to env")
	}
}

func TestResolveDeviceID_EnvWins(t *testing.T) {
	t.Setenv("WDIB_DEVICE_ID", "0A1B2C3D-0000-0000-0000-000000000000")
	got, err := ResolveDeviceID(paths.New(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	if got != "0a1b2c3d-0000-0000-0000-000000000000" {
		t.Errorf("id = %q, want normalized lowercase", got)
	}
}

func TestLoadProjectConfig(t *testing.T) {
	p := paths.New(t.TempDir())
	cfg, err := LoadProjectConfig(p)
	if err != nil {
		t.Fatalf("missing config: %v", err)
	}
	if cfg.Git.Remote != "" {
		t.Errorf("missing file should yield empty config: %+v", cfg)
	}

	yamlDoc := "git:\n  remote: origin\n  branch: main\nnotifications:\n  channels: [webhook]\nworker:\n  model: gpt-5\n"
	if err := os.WriteFile(p.ConfigFile(), []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadProjectConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Git.Remote != "origin" || cfg.Worker.Model != "gpt-5" {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := os.WriteFile(p.ConfigFile(), []byte("unknown_section:\n  a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProjectConfig(p); err == nil {
		t.Error("unknown keys should be rejected")
	}
}

func TestApplyEnvDefaults(t *testing.T) {
	t.Setenv("WDIB_GIT_REMOTE", "already-set")
	t.Setenv("WDIB_GIT_BRANCH", "")
	os.Unsetenv("WDIB_GIT_BRANCH")

	var cfg ProjectConfig
	cfg.Git.Remote = "origin"
	cfg.Git.Branch = "main"
	cfg.ApplyEnvDefaults()

	if os.Getenv("WDIB_GIT_REMOTE") != "already-set" {
		t.Error("env must win over config")
	}
	if os.Getenv("WDIB_GIT_BRANCH") != "main" {
		t.Error("unset env should be seeded from config")
	}
}
