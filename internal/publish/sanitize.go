package publish

import (
	"regexp"
	"strings"
)

var (
	urlRE   = regexp.MustCompile(`(?i)https?://\S+`)
	emailRE = regexp.MustCompile(`\b[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}\b`)
	ipv4RE  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	macRE   = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`)
	uuidRE  = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	// Go regexp has no lookahead; candidates are matched broadly and the
	// letter+digit requirement is checked in the replace callback.
	tokenRE    = regexp.MustCompile(`\b[A-Za-z0-9]{12,}\b`)
	unixPathRE = regexp.MustCompile("(^|[\\s(`\"'])/(?:[A-Za-z0-9._-]+/)+[A-Za-z0-9._-]+")
	spacesRE   = regexp.MustCompile(`\s+`)

	digitRE  = regexp.MustCompile(`\d`)
	letterRE = regexp.MustCompile(`[A-Za-z]`)
)

var reflectionBlockedMarkers = []string{
	"`",
	"state.json",
	"events.ndjson",
	"worker_result",
	"incident-",
	"cycle-",
	"codex",
	"python3",
	"pytest",
	"trace",
}

// Sanitize strips identifying or secret-looking substrings, collapses
// whitespace, and enforces a length cap.
func Sanitize(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	value := urlRE.ReplaceAllString(text, "[redacted-url]")
	value = emailRE.ReplaceAllString(value, "[redacted-email]")
	value = ipv4RE.ReplaceAllString(value, "[redacted-ip]")
	value = macRE.ReplaceAllString(value, "[redacted-mac]")
	value = uuidRE.ReplaceAllString(value, "[redacted-id]")
	value = tokenRE.ReplaceAllStringFunc(value, func(m string) string {
		if digitRE.MatchString(m) && letterRE.MatchString(m) {
			return "[redacted-token]"
		}
		return m
	})
	value = unixPathRE.ReplaceAllString(value, " [redacted-path]")
	value = strings.TrimSpace(spacesRE.ReplaceAllString(value, " "))
	if len(value) > maxLen {
		// The ellipsis counts against the cap.
		return strings.TrimRight(value[:maxLen-3], " ") + "..."
	}
	return value
}

// SafeReflection sanitizes a candidate reflection and drops it entirely when
// it still carries code-fenced tokens or internal filenames.
func SafeReflection(text string) string {
	cleaned := Sanitize(text, 160)
	if cleaned == "" {
		return ""
	}
	lowered := strings.ToLower(cleaned)
	for _, marker := range reflectionBlockedMarkers {
		if strings.Contains(lowered, marker) {
			return ""
		}
	}
	return cleaned
}
