package envutil

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danshapiro/wdib/internal/paths"
)

// ProjectConfig is the optional wdib.yaml overlay at the project root. It
// supplies defaults for settings that are otherwise env-only; process env
// always wins.
type ProjectConfig struct {
	Git struct {
		UserName  string `yaml:"user_name"`
		UserEmail string `yaml:"user_email"`
		Remote    string `yaml:"remote"`
		Branch    string `yaml:"branch"`
	} `yaml:"git"`
	Notifications struct {
		Channels   []string `yaml:"channels"`
		WebhookURL string   `yaml:"webhook_url"`
	} `yaml:"notifications"`
	Worker struct {
		Model   string `yaml:"model"`
		Sandbox string `yaml:"sandbox"`
	} `yaml:"worker"`
}

// LoadProjectConfig reads wdib.yaml. A missing file yields an empty config.
func LoadProjectConfig(p paths.Paths) (*ProjectConfig, error) {
	b, err := os.ReadFile(p.ConfigFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ProjectConfig{}, nil
		}
		return nil, err
	}
	var cfg ProjectConfig
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.ConfigFile(), err)
	}
	return &cfg, nil
}

// ApplyEnvDefaults seeds env vars from the config for every key that is not
// already set, so downstream code keeps a single env-based read path.
func (c *ProjectConfig) ApplyEnvDefaults() {
	setDefault := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		if _, ok := os.LookupEnv(name); ok {
			return
		}
		_ = os.Setenv(name, value)
	}
	setDefault("WDIB_GIT_USER_NAME", c.Git.UserName)
	setDefault("WDIB_GIT_USER_EMAIL", c.Git.UserEmail)
	setDefault("WDIB_GIT_REMOTE", c.Git.Remote)
	setDefault("WDIB_GIT_BRANCH", c.Git.Branch)
	setDefault("WDIB_NOTIFICATION_CHANNELS", strings.Join(c.Notifications.Channels, ","))
	setDefault("WDIB_WEBHOOK_URL", c.Notifications.WebhookURL)
	setDefault("WDIB_CODEX_MODEL", c.Worker.Model)
	setDefault("WDIB_CODEX_SANDBOX", c.Worker.Sandbox)
}

// CodexTimeoutSeconds returns the worker timeout with a 1200 s default and a
// 60 s floor.
func CodexTimeoutSeconds() int {
	v := Int("WDIB_CODEX_TIMEOUT_SECONDS", 1200)
	if v < 60 {
		return 60
	}
	return v
}

// CommandTimeoutSeconds returns the hardware probe timeout with a 20 s
// default and a 5 s floor.
func CommandTimeoutSeconds() int {
	v := Int("WDIB_HW_COMMAND_TIMEOUT_SECONDS", 20)
	if v < 5 {
		return 5
	}
	return v
}
