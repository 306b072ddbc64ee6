package validate

import (
	"strings"

	"github.com/goccy/go-json"
)

// IsMalformed is the cheap structural check the orchestrator runs on
// accumulated output before accepting a provider's answer. It errs toward
// false positives: a wrongly rejected answer costs one extra fallback
// attempt, while a false negative for a JSON-mode request breaks downstream
// consumers that assume parseable output.
func IsMalformed(text string, requireJSON bool) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	if requireJSON {
		payload := StripFences(trimmed)
		if payload == "" {
			return true
		}
		if !json.Valid([]byte(payload)) {
			return true
		}
		return false
	}

	return looksTruncated(trimmed)
}

// StripFences removes a wrapping markdown code fence, the most common
// artifact models add around JSON output.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence line (``` or ```json).
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// looksTruncated applies brace/bracket balance heuristics to plain-text
// output. Unbalanced structure usually means the provider stopped mid-answer.
func looksTruncated(text string) bool {
	braces, brackets := 0, 0
	inString := false
	escaped := false

	for _, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
			}
		}
	}

	return braces > 0 || brackets > 0
}
