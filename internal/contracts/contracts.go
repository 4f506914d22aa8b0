// Package contracts validates the state, work order, and worker result
// documents against their embedded JSON schemas and owns the canonical
// on-disk JSON encoding.
package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxReportedProblems = 10

// ValidationError reports schema violations with a compact, stable message.
type ValidationError struct {
	Label    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Label, strings.Join(e.Problems, "; "))
}

var (
	compileOnce sync.Once
	compileErr  error

	stateSchema        *jsonschema.Schema
	workOrderSchema    *jsonschema.Schema
	workerResultSchema *jsonschema.Schema
)

func compileSchemas() error {
	compileOnce.Do(func() {
		compile := func(name, doc string) *jsonschema.Schema {
			if compileErr != nil {
				return nil
			}
			c := jsonschema.NewCompiler()
			url := "wdib://schemas/" + name + ".json"
			if err := c.AddResource(url, strings.NewReader(doc)); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return nil
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return nil
			}
			return s
		}
		stateSchema = compile("state", stateSchemaDoc)
		workOrderSchema = compile("work_order", workOrderSchemaDoc)
		workerResultSchema = compile("worker_result", workerResultSchemaDoc)
	})
	return compileErr
}

// toDocument converts any value to the generic JSON form the validator
// operates on.
func toDocument(v any) (any, error) {
	if doc, ok := v.(map[string]any); ok {
		return doc, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func collectProblems(err *jsonschema.ValidationError, out *[]string) {
	if len(*out) >= maxReportedProblems {
		return
	}
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectProblems(cause, out)
		if len(*out) >= maxReportedProblems {
			return
		}
	}
}

func validate(label string, schema *jsonschema.Schema, v any) error {
	doc, err := toDocument(v)
	if err != nil {
		return &ValidationError{Label: label, Problems: []string{"/: " + err.Error()}}
	}
	if err := schema.Validate(doc); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return &ValidationError{Label: label, Problems: []string{"/: " + err.Error()}}
		}
		var problems []string
		collectProblems(ve, &problems)
		if len(problems) == 0 {
			problems = []string{"/: " + ve.Message}
		}
		return &ValidationError{Label: label, Problems: problems}
	}
	return nil
}

// The exported validators compile the schemas before touching the package
// vars; reading a schema var earlier (for example as a call argument) would
// observe nil on the first validation of the process.

// ValidateState checks a device state document.
func ValidateState(v any) error {
	if err := compileSchemas(); err != nil {
		return err
	}
	return validate("state", stateSchema, v)
}

// ValidateWorkOrder checks a work order document.
func ValidateWorkOrder(v any) error {
	if err := compileSchemas(); err != nil {
		return err
	}
	return validate("work_order", workOrderSchema, v)
}

// ValidateWorkerResult checks a worker result document.
func ValidateWorkerResult(v any) error {
	if err := compileSchemas(); err != nil {
		return err
	}
	return validate("worker_result", workerResultSchema, v)
}

// MarshalCanonical renders v as 2-space-indented JSON with sorted keys and a
// trailing newline. The value is round-tripped through generic maps because
// encoding/json sorts map keys deterministically.
func MarshalCanonical(v any) ([]byte, error) {
	doc, err := toDocument(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalLine renders v as single-line sorted-key JSON, newline terminated.
// Used for NDJSON event appends.
func MarshalLine(v any) ([]byte, error) {
	doc, err := toDocument(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DumpJSON writes v to path in the canonical encoding.
func DumpJSON(path string, v any) error {
	b, err := MarshalCanonical(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadJSON reads path into out.
func LoadJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
