// Package llmjson decodes JSON produced by language models, which routinely
// arrives wrapped in markdown fences, surrounded by prose, or carrying
// trailing commas. Decoding is a pure function of the input text.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var openingFenceRe = regexp.MustCompile("^```[a-zA-Z0-9]*[ \t]*\n?")

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = openingFenceRe.ReplaceAllString(trimmed, "")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ExtractObject returns the largest balanced {...} span in s, honoring JSON
// string literals and escapes.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// RepairTrailingCommas removes commas that directly precede a closing brace
// or bracket, outside of string literals.
func RepairTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			// Look ahead past whitespace for a closing token.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Decode unmarshals model output into v: strict parse first, then fence
// stripping, then balanced-object extraction, then trailing-comma repair.
func Decode(s string, v any) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("empty model response")
	}

	candidates := []string{strings.TrimSpace(s)}

	stripped := StripFences(s)
	if stripped != candidates[0] {
		candidates = append(candidates, stripped)
	}
	if obj, ok := ExtractObject(stripped); ok && obj != stripped {
		candidates = append(candidates, obj)
	}

	var lastErr error
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
		repaired := RepairTrailingCommas(candidate)
		if repaired == candidate {
			continue
		}
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("unparseable model response: %w", lastErr)
}
