package state

import "encoding/json"

// Event is one line of events.ndjson. Payload fields are flattened next to
// ts and type on encode.
type Event struct {
	TS     string
	Type   EventType
	Fields map[string]any
}

// NewEvent builds an event with a payload map; ts is filled at append time.
func NewEvent(t EventType, fields map[string]any) Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return Event{Type: t, Fields: fields}
}

func (e Event) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		doc[k] = v
	}
	doc["ts"] = e.TS
	doc["type"] = string(e.Type)
	return json.Marshal(doc)
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if ts, ok := doc["ts"].(string); ok {
		e.TS = ts
	}
	if t, ok := doc["type"].(string); ok {
		e.Type = EventType(t)
	}
	delete(doc, "ts")
	delete(doc, "type")
	e.Fields = doc
	return nil
}
