// Package jsonx recovers structured JSON objects from free-form LLM output.
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// snippetLen bounds the diagnostic excerpt carried by MalformedOutputError.
const snippetLen = 300

// MalformedOutputError reports that no valid JSON object could be recovered
// from a model response. Snippet holds the start of the offending text.
type MalformedOutputError struct {
	Snippet string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("jsonx: no valid JSON object in model output: %q", e.Snippet)
}

var (
	fenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
	greedyRe   = regexp.MustCompile(`(?s)\{.*\}`)
	trailingRe = regexp.MustCompile(`,\s*([}\]])`)
)

// Extract parses a JSON object out of raw model text. It tries, in order:
// a direct parse, a parse of the fenced code block, each balanced {...}
// span (with trailing-comma repair), and finally the broadest greedy
// {...} match. The first successful parse wins.
func Extract(text string) (map[string]any, error) {
	if obj, err := parse(text); err == nil {
		return obj, nil
	}

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		if obj, err := parse(m[1]); err == nil {
			return obj, nil
		}
	}

	// Balanced-brace scan over each {...} span in the text.
	for start := strings.Index(text, "{"); start >= 0; {
		span, ok := balancedSpan(text[start:])
		if !ok {
			break
		}
		if obj, err := parse(repairTrailingCommas(span)); err == nil {
			return obj, nil
		}
		next := strings.Index(text[start+len(span):], "{")
		if next < 0 {
			break
		}
		start += len(span) + next
	}

	if m := greedyRe.FindString(text); m != "" {
		if obj, err := parse(repairTrailingCommas(m)); err == nil {
			return obj, nil
		}
	}

	snippet := text
	if len(snippet) > snippetLen {
		snippet = snippet[:snippetLen]
	}
	return nil, &MalformedOutputError{Snippet: snippet}
}

func parse(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// balancedSpan returns the prefix of s covering the first balanced {...}
// group. s must start at a '{'. Braces inside JSON strings are skipped.
func balancedSpan(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// repairTrailingCommas removes commas that immediately precede a closing
// brace or bracket, the most common structural slip in model output.
func repairTrailingCommas(s string) string {
	return trailingRe.ReplaceAllString(s, "$1")
}
