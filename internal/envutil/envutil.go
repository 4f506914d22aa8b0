// Package envutil loads process configuration: .env files, typed env
// accessors, the optional wdib.yaml overlay, and device identity.
package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/danshapiro/wdib/internal/paths"
)

// LoadDotenv loads key/value pairs from the project .env file into process
// env. Existing variables are never overwritten.
func LoadDotenv(p paths.Paths) {
	_ = godotenv.Load(p.EnvFile())
}

// Bool reads a boolean env var. Accepted truthy spellings: 1, true, yes, on.
func Bool(name string, def bool) bool {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Int reads an integer env var, falling back to def on absence or parse error.
func Int(name string, def int) int {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

// Str reads a trimmed string env var with a default.
func Str(name, def string) string {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		return def
	}
	return v
}

func normalizeUUID(raw string) string {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return id.String()
}

// ResolveDeviceID resolves (or lazily creates) the device UUID.
// Precedence: WDIB_DEVICE_ID env, then .env file, then .device_id file;
// absent all three, a v4 UUID is generated and persisted to .device_id.
func ResolveDeviceID(p paths.Paths) (string, error) {
	if id := normalizeUUID(os.Getenv("WDIB_DEVICE_ID")); id != "" {
		return id, nil
	}

	if values, err := godotenv.Read(p.EnvFile()); err == nil {
		if id := normalizeUUID(values["WDIB_DEVICE_ID"]); id != "" {
			_ = os.Setenv("WDIB_DEVICE_ID", id)
			return id, nil
		}
	}

	if b, err := os.ReadFile(p.DeviceIDFile()); err == nil {
		if id := normalizeUUID(string(b)); id != "" {
			_ = os.Setenv("WDIB_DEVICE_ID", id)
			return id, nil
		}
	}

	generated := uuid.NewString()
	if err := os.WriteFile(p.DeviceIDFile(), []byte(generated), 0o644); err != nil {
		return "", err
	}
	_ = os.Setenv("WDIB_DEVICE_ID", generated)
	return generated, nil
}
