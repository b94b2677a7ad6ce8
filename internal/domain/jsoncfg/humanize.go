package jsoncfg

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HumanizeKey turns camelCase, snake_case and kebab-case keys into title-cased
// words: "colorPalette" and "color_palette" both become "Color Palette".
func HumanizeKey(key string) string {
	runes := []rune(strings.TrimSpace(key))
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && startsWord(runes, i):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	if len(words) == 0 {
		return ""
	}
	// cases.Caser is stateful and must not be shared between goroutines.
	return cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
}

func startsWord(runes []rune, i int) bool {
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	// "UIElements": the E starts a new word because a lowercase rune follows.
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
