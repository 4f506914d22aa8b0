package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/danshapiro/wdib/internal/envutil"
	"github.com/danshapiro/wdib/internal/publish"
)

const defaultWebhookTimeout = 8 * time.Second

var boldRE = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// NormalizeMrkdwn converts markdown bold to Slack-style mrkdwn bold.
func NormalizeMrkdwn(text string) string {
	return boldRE.ReplaceAllString(text, "*$1*")
}

func webhookURL() string {
	return envutil.Str("WDIB_WEBHOOK_URL", "")
}

func webhookTimeout() time.Duration {
	v := envutil.Int("WDIB_WEBHOOK_TIMEOUT_SECONDS", 8)
	if v <= 0 {
		return defaultWebhookTimeout
	}
	return time.Duration(v) * time.Second
}

func legacyIconEmoji() string {
	return envutil.Str("WDIB_WEBHOOK_ICON_EMOJI", "")
}

func awakeningEmoji() string {
	if v := envutil.Str("WDIB_WEBHOOK_AWAKENING_EMOJI", ""); v != "" {
		return v
	}
	if v := legacyIconEmoji(); v != "" {
		return v
	}
	return ":sunrise:"
}

func updateEmoji() string {
	if v := envutil.Str("WDIB_WEBHOOK_UPDATE_EMOJI", ""); v != "" {
		return v
	}
	if v := legacyIconEmoji(); v != "" {
		return v
	}
	return ":coffee:"
}

func messageStyle() string {
	if envutil.Str("WDIB_WEBHOOK_MESSAGE_STYLE", "human") == "detailed" {
		return "detailed"
	}
	return "human"
}

// messageType classifies a cycle summary: terminate, awakening (day <= 1),
// or update.
func messageType(status *publish.PublicStatus) string {
	if strings.EqualFold(status.Status, "TERMINATED") || strings.EqualFold(status.WorkerStatus, "TERMINATED") {
		return "terminate"
	}
	if status.Day <= 1 {
		return "awakening"
	}
	return "update"
}

func cycleIconEmoji(status *publish.PublicStatus) string {
	switch messageType(status) {
	case "terminate":
		return ""
	case "awakening":
		return awakeningEmoji()
	default:
		return updateEmoji()
	}
}

func ordinalDay(day int) string {
	suffix := "th"
	if day%100 < 10 || day%100 > 20 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", day, suffix)
}

func humanDate(runDate string) string {
	parsed, err := time.Parse("2006-01-02", runDate)
	if err != nil {
		return runDate
	}
	return fmt.Sprintf("%s %s %s", parsed.Format("Monday"), ordinalDay(parsed.Day()), parsed.Format("January"))
}

func bulletLines(items []string, fallback string) []string {
	var cleaned []string
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{fallback}
	}
	if len(cleaned) > 3 {
		cleaned = cleaned[:3]
	}
	out := make([]string, 0, len(cleaned))
	for _, item := range cleaned {
		out = append(out, "• "+item)
	}
	return out
}

func engineeringDetailLines(status *publish.PublicStatus) []string {
	var details []string
	for _, item := range status.EngineeringDetails {
		if v := strings.TrimSpace(item); v != "" {
			details = append(details, v)
		}
		if len(details) == 5 {
			break
		}
	}
	return details
}

func buildAwakeningText(ctx CycleContext) string {
	s := ctx.Status
	lines := []string{fmt.Sprintf("%s *%s, I awoke and:*", awakeningEmoji(), humanDate(ctx.RunDate)), ""}
	lines = append(lines, "Explored myself and mapped my local hardware/software baseline.")
	if s.RecentActivity != "" {
		lines = append(lines, "What I did: "+s.RecentActivity)
	}
	if s.Becoming != "" {
		lines = append(lines, "I've reviewed my mission: "+s.Becoming)
	} else if s.Purpose != "" {
		lines = append(lines, "I've reviewed my mission: "+s.Purpose)
	}
	if s.SelfObservation != "" {
		lines = append(lines, "What I learned about myself: "+s.SelfObservation)
	}
	lines = append(lines, "", "What's next:")
	lines = append(lines, bulletLines(s.NextTasks, "Continue local inspection and propose the first concrete task.")...)
	if details := engineeringDetailLines(s); len(details) > 0 {
		lines = append(lines, "", "Engineering details:")
		lines = append(lines, details...)
	}
	return strings.Join(lines, "\n")
}

func buildUpdateText(ctx CycleContext) string {
	s := ctx.Status
	lines := []string{fmt.Sprintf("%s *%s journal, cycle `%s`*", updateEmoji(), humanDate(ctx.RunDate), s.CycleID), ""}

	lines = append(lines, "*What I did*")
	if s.RecentActivity != "" {
		lines = append(lines, "What I did: "+s.RecentActivity)
	} else {
		lines = append(lines, "What I did: Kept momentum on mission-aligned tasks.")
	}
	for i, title := range s.CompletedTasks {
		if i == 2 {
			break
		}
		lines = append(lines, "Completed: "+title)
	}
	if len(s.HardwareFocus) > 0 {
		lines = append(lines, "Hardware context: "+s.HardwareFocus[0])
	}

	lines = append(lines, "", "*What I'm thinking*")
	if s.Becoming != "" {
		lines = append(lines, "Becoming: "+s.Becoming)
	} else if s.Purpose != "" {
		lines = append(lines, "Mission anchor: "+s.Purpose)
	}
	if s.SelfObservation != "" {
		lines = append(lines, "Reflection: "+s.SelfObservation)
	}

	if details := engineeringDetailLines(s); len(details) > 0 {
		lines = append(lines, "", "*Engineering notes*")
		lines = append(lines, details...)
	}

	if len(s.NextTasks) > 0 {
		lines = append(lines, "", "*What's next*")
		lines = append(lines, bulletLines(s.NextTasks, "Continue with current in-progress work.")...)
	}
	return strings.Join(lines, "\n")
}

func buildTerminateText(ctx CycleContext) string {
	s := ctx.Status
	lines := []string{fmt.Sprintf("*Closing journal - %s, cycle `%s`*", humanDate(ctx.RunDate), s.CycleID), ""}
	if s.RecentActivity != "" {
		lines = append(lines, "I closed this run after: "+s.RecentActivity)
	} else {
		lines = append(lines, "I closed this run cleanly after completing my last cycle checks.")
	}
	switch {
	case s.SelfObservation != "":
		lines = append(lines, "Reflection: "+s.SelfObservation)
	case s.Becoming != "":
		lines = append(lines, "Reflection: I leave this chapter while aiming toward "+s.Becoming+".")
	case s.Purpose != "":
		lines = append(lines, "Reflection: My mission remains "+s.Purpose+".")
	}
	lines = append(lines, "", "*Carrying forward*")
	if s.Becoming != "" {
		lines = append(lines, "Becoming stays anchored on: "+s.Becoming)
	} else if s.Purpose != "" {
		lines = append(lines, "Mission carries forward as: "+s.Purpose)
	}
	lines = append(lines, "Goodbye for now.")
	return strings.Join(lines, "\n")
}

func buildDetailedText(ctx CycleContext) string {
	s := ctx.Status
	gitMark := "no"
	if ctx.Git.Pushed {
		gitMark = "yes"
	}
	lines := []string{
		fmt.Sprintf("*WDIB Daily Summary* (%s)", ctx.RunDate),
		fmt.Sprintf("- Device: `%s`", s.DeviceIDShort),
		fmt.Sprintf("- Day: `%03d`", s.Day),
		fmt.Sprintf("- Status: `%s` | Worker: `%s`", s.Status, s.WorkerStatus),
		fmt.Sprintf("- Cycle: `%s`", s.CycleID),
	}
	if s.Purpose != "" {
		lines = append(lines, "- Purpose: "+s.Purpose)
	}
	if s.Becoming != "" {
		lines = append(lines, "- Becoming: "+s.Becoming)
	}
	lines = append(lines,
		fmt.Sprintf("- Pushed to GitHub: `%s`", gitMark),
		"- This update is sanitized; detailed logs remain on-device.",
	)
	return strings.Join(lines, "\n")
}

func buildCycleText(ctx CycleContext) string {
	if messageStyle() == "detailed" {
		return buildDetailedText(ctx)
	}
	// An LLM-authored journal entry is preferred; templates are the
	// always-available fallback.
	if text, err := authorCycleText(ctx); err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	switch messageType(ctx.Status) {
	case "terminate":
		return buildTerminateText(ctx)
	case "awakening":
		return buildAwakeningText(ctx)
	default:
		return buildUpdateText(ctx)
	}
}

func buildFailureText(ctx FailureContext) string {
	shortID := ctx.DeviceID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	if shortID == "" {
		shortID = "-"
	}
	return strings.Join([]string{
		fmt.Sprintf("*WDIB Cycle Failed* (%s)", ctx.TS.Format("2006-01-02")),
		fmt.Sprintf("- Device: `%s`", shortID),
		fmt.Sprintf("- Day: `%03d`", ctx.Day),
		fmt.Sprintf("- Cycle: `%s`", ctx.CycleID),
		"- Check device-local logs for details.",
	}, "\n")
}

func postText(text, iconEmoji string) DeliveryResult {
	url := webhookURL()
	if url == "" {
		return DeliveryResult{Reason: "WDIB_WEBHOOK_URL is not configured"}
	}

	payload := map[string]string{"text": NormalizeMrkdwn(text)}
	if username := envutil.Str("WDIB_WEBHOOK_USERNAME", ""); username != "" {
		payload["username"] = username
	}
	if iconEmoji = strings.TrimSpace(iconEmoji); iconEmoji != "" {
		payload["icon_emoji"] = iconEmoji
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return DeliveryResult{Reason: "webhook request failed: " + err.Error()}
	}

	client := &http.Client{Timeout: webhookTimeout()}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return DeliveryResult{Reason: "webhook request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	snippet := string(respBody)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	if resp.StatusCode != http.StatusOK {
		return DeliveryResult{
			Reason:       fmt.Sprintf("unexpected response status %d", resp.StatusCode),
			StatusCode:   resp.StatusCode,
			ResponseBody: snippet,
		}
	}
	return DeliveryResult{Sent: true, StatusCode: resp.StatusCode, ResponseBody: snippet}
}

func webhookProvider() Provider {
	return Provider{
		Name:         "webhook",
		IsConfigured: func() bool { return webhookURL() != "" },
		NotifyCycle: func(ctx CycleContext) DeliveryResult {
			return postText(buildCycleText(ctx), cycleIconEmoji(ctx.Status))
		},
		NotifyFailure: func(ctx FailureContext) DeliveryResult {
			return postText(buildFailureText(ctx), updateEmoji())
		},
	}
}
