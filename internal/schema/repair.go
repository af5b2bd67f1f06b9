package schema

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	codeFencePattern = regexp.MustCompile("```[A-Za-z0-9_-]*")

	clockToken    = `(?:\d+:){1,2}\d+(?:\.\d+)?`
	clockPattern  = regexp.MustCompile(`(?i)("(?:timestamp_seconds|timestamp|time|start_time|start|seconds)"\s*:\s*)(?:"(` + clockToken + `)"|(` + clockToken + `))`)
	quotedSeconds = regexp.MustCompile(`("timestamp_seconds"\s*:\s*)"(\d+(?:\.\d+)?)"`)
	bareClock     = regexp.MustCompile(`^(` + clockToken + `)(?:[\s,\]}]|$)`)
)

// Repair cleans raw model output so it can be decoded as JSON. Empty input
// becomes "[]". Code fences are removed, the first balanced array or object
// is extracted from surrounding prose, and clock-style values such as
// 1:30.5, "02:00" or 1:02:03 under time-like keys become numeric seconds.
// Unquoted clock values under any other key are converted too.
func Repair(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "[]"
	}
	text = strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
	if text == "" {
		return "[]"
	}
	text = extractJSON(text)
	return rewriteTimestamps(text)
}

// extractJSON returns the first balanced array or object that decodes after
// timestamp rewriting. When none decodes, the first balanced candidate is
// returned so the caller reports a meaningful syntax error. Text without any
// balanced candidate is returned unchanged.
func extractJSON(text string) string {
	fallback := ""
	for start := 0; start < len(text); start++ {
		if text[start] != '[' && text[start] != '{' {
			continue
		}
		end, ok := matchBracket(text, start)
		if !ok {
			continue
		}
		candidate := text[start : end+1]
		if start == 0 && end == len(text)-1 {
			return candidate
		}
		if json.Valid([]byte(rewriteTimestamps(candidate))) {
			return candidate
		}
		if fallback == "" {
			fallback = candidate
		}
	}
	if fallback != "" {
		return fallback
	}
	return text
}

// matchBracket finds the index closing the bracket at start. Brackets inside
// JSON strings are ignored and escapes are honoured.
func matchBracket(text string, start int) (int, bool) {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func rewriteTimestamps(text string) string {
	text = clockPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := clockPattern.FindStringSubmatch(match)
		token := parts[2]
		if token == "" {
			token = parts[3]
		}
		seconds, ok := ClockSeconds(token)
		if !ok {
			return match
		}
		return parts[1] + strconv.FormatFloat(seconds, 'f', -1, 64)
	})
	text = quotedSeconds.ReplaceAllString(text, "${1}${2}")
	return rewriteBareClocks(text)
}

// rewriteBareClocks converts unquoted clock tokens in any value position.
// String contents are copied through untouched.
func rewriteBareClocks(text string) string {
	var b strings.Builder
	inString, escaped := false, false
	valueStart := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			b.WriteByte(ch)
			continue
		}
		if valueStart && ch >= '0' && ch <= '9' {
			if m := bareClock.FindStringSubmatchIndex(text[i:]); m != nil {
				if seconds, ok := ClockSeconds(text[i : i+m[3]]); ok {
					b.WriteString(strconv.FormatFloat(seconds, 'f', -1, 64))
					i += m[3] - 1
					valueStart = false
					continue
				}
			}
		}
		switch ch {
		case '"':
			inString = true
			valueStart = false
		case ':', ',', '[':
			valueStart = true
		case ' ', '\t', '\n', '\r':
		default:
			valueStart = false
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// ClockSeconds converts MM:SS, MM:SS.s or H:MM:SS into seconds.
func ClockSeconds(token string) (float64, bool) {
	fields := strings.Split(strings.TrimSpace(token), ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, false
	}
	secs, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	total := secs
	multiplier := 60.0
	for i := len(fields) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(fields[i])
		if err != nil || n < 0 {
			return 0, false
		}
		total += float64(n) * multiplier
		multiplier *= 60
	}
	return total, true
}
