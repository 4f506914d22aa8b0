// Package inbox handles the operator message file under runtime/.
package inbox

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var terminateMarkers = []string{
	"terminate",
	"shutdown",
	"shut down",
	"power down",
	"stop this device",
	"stop device",
	"kill command",
	"kill wdib",
	"goodbye",
}

// Enqueue writes a pending human message, replacing any unread one.
func Enqueue(path, body string, now time.Time) error {
	content := fmt.Sprintf("ts=%s\n%s\n", now.Format("2006-01-02T15:04:05"), strings.TrimSpace(body))
	return os.WriteFile(path, []byte(content), 0o644)
}

// LoadAndClear reads and deletes the pending message. The leading ts= line
// is stripped; a missing file yields "".
func LoadAndClear(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	text := string(b)
	if strings.HasPrefix(text, "ts=") {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = ""
		}
	}
	return strings.TrimSpace(text), nil
}

// IsTerminateCommand reports whether the message asks the device to stop.
func IsTerminateCommand(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range terminateMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
