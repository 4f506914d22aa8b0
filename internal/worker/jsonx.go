package worker

import (
	"encoding/json"
	"errors"
	"strings"
)

// ExtractJSONObject parses worker output forgivingly. Precedence: strict
// JSON first, then the largest "{...}" substring (workers sometimes frame
// the JSON in prose or code fences), then failure. Anything that survives
// still has to pass schema validation downstream.
func ExtractJSONObject(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err == nil {
		return doc, nil
	}

	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end <= start {
		return nil, errors.New("worker result output is not valid JSON")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &doc); err != nil {
		return nil, errors.New("worker result output is not valid JSON: " + err.Error())
	}
	return doc, nil
}
