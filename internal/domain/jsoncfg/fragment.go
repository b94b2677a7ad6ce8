package jsoncfg

import "strings"

// ExtractJSONFragment returns the first complete JSON object or array in
// model output, skipping code fences and any prose around them. Brackets
// inside string literals are ignored. If the document is cut off before the
// value closes, everything from the opening bracket onward is returned so the
// decoder reports the truncation.
func ExtractJSONFragment(raw string) string {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return strings.TrimRight(strings.TrimSpace(raw[start:]), "`")
}
