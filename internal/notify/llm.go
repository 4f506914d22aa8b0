package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/danshapiro/wdib/internal/envutil"
)

const chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// authorCycleText asks an LLM to write the journal entry from the sanitized
// status snapshot. Any failure falls back to templates; this path must never
// block or fail a notification.
func authorCycleText(ctx CycleContext) (string, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return "", errors.New("OPENAI_API_KEY is not set")
	}

	snapshot, err := json.Marshal(ctx.Status)
	if err != nil {
		return "", err
	}

	system := "You write short first-person journal posts for an autonomous device. " +
		"Use only the facts in the provided sanitized status JSON. " +
		"Never invent identifiers, secrets, or paths. Slack mrkdwn, under 120 words."
	user := fmt.Sprintf("Message type: %s. Date: %s.\nStatus JSON:\n%s",
		messageType(ctx.Status), humanDate(ctx.RunDate), snapshot)

	body, err := json.Marshal(chatRequest{
		Model: envutil.Str("WDIB_LLM_MODEL", "gpt-5"),
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, chatCompletionsURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: webhookTimeout()}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion returned status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
