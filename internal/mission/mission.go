// Package mission reads the human-curated mission file.
package mission

import (
	"errors"
	"os"
	"strings"
)

// Load returns the mission text, trimmed. A missing file reads as empty.
func Load(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Unknown reports whether the mission is effectively absent.
func Unknown(text string) bool {
	return strings.TrimSpace(text) == ""
}

// ExtractPurpose pulls the text under a "Mission" markdown heading, for the
// public status snapshot. Falls back to the first non-heading paragraph.
func ExtractPurpose(text string) string {
	lines := strings.Split(text, "\n")
	inMission := false
	var collected []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.ToLower(strings.TrimLeft(trimmed, "# "))
			inMission = strings.Contains(heading, "mission")
			continue
		}
		if inMission && trimmed != "" {
			collected = append(collected, trimmed)
		}
		if inMission && trimmed == "" && len(collected) > 0 {
			break
		}
	}
	if len(collected) > 0 {
		return strings.Join(collected, " ")
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			return trimmed
		}
	}
	return ""
}
