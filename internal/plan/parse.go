package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchema checks only the outer shape. Week contents are decoded
// leniently and backfilled during normalization.
const envelopeSchema = `{
  "type": "object",
  "required": ["weeks"],
  "properties": {
    "weeks": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "object"}
    }
  }
}`

var compiledEnvelope = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
})

// ParseError explains why generated text could not be read as a plan.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "unparseable plan: " + e.Reason }

// ParsePlan reads generator output as a list of week drafts. Markdown code
// fences and prose around the JSON document are ignored, and a bare array of
// weeks is accepted in place of the {"weeks": [...]} envelope.
func ParsePlan(raw string) ([]Draft, error) {
	doc, ok := ExtractJSON(raw)
	if !ok {
		return nil, &ParseError{Reason: "no JSON document found"}
	}
	if strings.HasPrefix(doc, "[") {
		doc = `{"weeks":` + doc + `}`
	}

	schema, err := compiledEnvelope()
	if err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, &ParseError{Reason: strings.Join(msgs, "; ")}
	}

	var envelope struct {
		Weeks []Draft `json:"weeks"`
	}
	if err := json.Unmarshal([]byte(doc), &envelope); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	return envelope.Weeks, nil
}

// ExtractJSON returns the JSON document in s after stripping markdown code
// fences. Text starting with '[' is taken as a bare array. Otherwise the first
// '{' that opens a valid document ending at the last '}' wins, so brackets in
// leading prose are skipped.
func ExtractJSON(s string) (string, bool) {
	s = stripFences(s)
	if strings.HasPrefix(s, "[") {
		end := strings.LastIndex(s, "]")
		if end <= 0 {
			return "", false
		}
		return s[:end+1], true
	}

	end := strings.LastIndex(s, "}")
	first := -1
	for i := 0; i < end; i++ {
		if s[i] != '{' {
			continue
		}
		if first < 0 {
			first = i
		}
		if json.Valid([]byte(s[i : end+1])) {
			return s[i : end+1], true
		}
	}
	if first < 0 {
		return "", false
	}
	// Nothing valid: hand back the widest candidate so the decode error names it.
	return s[first : end+1], true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...).
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
