// Package decode turns possibly-malformed assistant payloads into structured
// data. Upstream model output is not guaranteed to be well-formed JSON, so
// decoding walks an ordered chain of fallback strategies and always returns a
// result value, preferring some displayable text over a hard failure.
package decode

import (
	"encoding/json"
	"errors"
	"regexp"
)

// ErrAllStrategiesFailed is reported when no strategy could salvage anything
// from the payload.
var ErrAllStrategiesFailed = errors.New("all decode strategies failed")

// Result is the outcome of decoding one payload. Raw always carries the
// original string so callers can display it when decoding fails.
type Result struct {
	Success bool
	Data    map[string]any
	Err     error
	Raw     string
}

var (
	nonGreedyObject = regexp.MustCompile(`(?s)\{.*?\}`)
	trailingCommas  = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeys    = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	bareWordValues  = regexp.MustCompile(`:\s*([A-Za-z_][A-Za-z0-9_]*)\s*([,}])`)
	textField       = regexp.MustCompile(`"text"\s*:\s*"([^"]*)"`)
	longQuotedRun   = regexp.MustCompile(`"([^"]{10,})"`)
)

// Decode runs the fallback chain against raw. Strategies are attempted in a
// fixed order and the first success wins:
//
//  1. direct JSON parse
//  2. brace-balanced span extraction
//  3. non-greedy {...} regex extraction
//  4. heuristic repair (trailing commas, unquoted keys, bare-word values)
//     followed by re-extraction
//  5. targeted "text" field capture
//  6. first quoted run of at least 10 characters
//
// The ordering is a policy: structural validity beats pattern guessing beats
// substring salvage. Decode never panics and never returns a zero Result.
func Decode(raw string) Result {
	// Strategy 1: the payload is already valid JSON.
	if data, ok := parseObject(raw); ok {
		return success(raw, data)
	}

	// Strategy 2: balanced-brace scan for the first complete object span.
	if span, ok := extractBalanced(raw); ok {
		if data, ok := parseObject(span); ok {
			return success(raw, data)
		}
	}

	// Strategy 3: first non-greedy {...} match.
	if span := nonGreedyObject.FindString(raw); span != "" {
		if data, ok := parseObject(span); ok {
			return success(raw, data)
		}
	}

	// Strategy 4: repair common model mistakes, then extract again.
	repaired := repair(raw)
	if span, ok := extractBalanced(repaired); ok {
		if data, ok := parseObject(span); ok {
			return success(raw, data)
		}
	}
	if span := nonGreedyObject.FindString(repaired); span != "" {
		if data, ok := parseObject(span); ok {
			return success(raw, data)
		}
	}

	// Strategy 5: salvage just the "text" field. The capture group is naive
	// and truncates at the first embedded quote; that is a known limitation,
	// kept because a truncated reply still beats no reply.
	if m := textField.FindStringSubmatch(raw); m != nil {
		return success(raw, map[string]any{"text": m[1]})
	}

	// Strategy 6: last resort, any quoted run long enough to be a sentence.
	if m := longQuotedRun.FindStringSubmatch(raw); m != nil {
		return success(raw, map[string]any{"text": m[1]})
	}

	return Result{Success: false, Err: ErrAllStrategiesFailed, Raw: raw}
}

func success(raw string, data map[string]any) Result {
	return Result{Success: true, Data: data, Raw: raw}
}

func parseObject(s string) (map[string]any, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	return data, true
}

// extractBalanced returns the first span where brace depth returns to zero
// after having gone positive. The scan is textual and does not honor braces
// inside string literals; strategy 1 already handled well-formed payloads.
func extractBalanced(s string) (string, bool) {
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// repair applies cheap textual fixes for the malformations models produce
// most often. It can mangle payloads that were nearly valid, which is why it
// runs after the structural strategies.
func repair(s string) string {
	out := trailingCommas.ReplaceAllString(s, "$1")
	out = unquotedKeys.ReplaceAllString(out, `$1"$2":`)
	out = bareWordValues.ReplaceAllString(out, `: "$1"$2`)
	return out
}
