// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be located in a model
// response.
var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSONRaw locates the first JSON object in raw model output and
// returns its text. Models wrap JSON in markdown fences, preambles and
// postambles; all of that is stripped. The bool result is false when no
// balanced object is present.
func ExtractJSONRaw(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	// Strip markdown code fences (```json ... ``` or ``` ... ```).
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}

	// Scan for the matching close brace, respecting strings.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// ExtractJSON parses the first JSON object in raw model output into a
// generic map. All generated structure is untrusted input; callers must
// still validate every field against their allow-lists.
func ExtractJSON(raw string) (map[string]any, error) {
	text, ok := ExtractJSONRaw(raw)
	if !ok {
		return nil, ErrNoJSON
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeJSONInto extracts the first JSON object and unmarshals it into v.
func DecodeJSONInto(raw string, v any) error {
	text, ok := ExtractJSONRaw(raw)
	if !ok {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(text), v)
}
