package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resultSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["summary", "document_type", "attributes"],
  "properties": {
    "summary": {"type": "string"},
    "document_type": {"type": "string"},
    "attributes": {"type": "object"}
  }
}`

var resultSchema = jsonschema.MustCompileString("analysis-result.json", resultSchemaJSON)

var errNoJSONObject = errors.New("no JSON object in model output")

// ParseResult extracts the first balanced JSON object from raw model output,
// validates it and decodes it.
func ParseResult(raw string) (Result, error) {
	obj, ok := firstJSONObject(raw)
	if !ok {
		return Result{}, errNoJSONObject
	}

	var v any
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return Result{}, fmt.Errorf("decode model output: %w", err)
	}
	if err := resultSchema.Validate(v); err != nil {
		return Result{}, fmt.Errorf("model output does not match schema: %w", err)
	}

	var res Result
	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	if err := dec.Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}
	if res.Attributes == nil {
		res.Attributes = map[string]any{}
	}
	return res, nil
}

// firstJSONObject returns the earliest-starting brace-balanced {...}
// substring of s in one pass. Braces inside JSON strings are ignored.
func firstJSONObject(s string) (string, bool) {
	first := strings.IndexByte(s, '{')
	if first < 0 {
		return "", false
	}

	var (
		open      []int
		bestStart = -1
		bestEnd   int
		inString  bool
		escaped   bool
	)
	for i := first; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			if len(open) == 0 {
				return s[start : i+1], true
			}
			if bestStart < 0 || start < bestStart {
				bestStart, bestEnd = start, i
			}
		}
	}
	if bestStart < 0 {
		return "", false
	}
	return s[bestStart : bestEnd+1], true
}
