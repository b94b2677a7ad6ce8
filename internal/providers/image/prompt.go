package image

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

// MaxPromptLength is the prompt ceiling in runes. dall-e-3 rejects anything
// longer, so the limit is applied to every model.
const MaxPromptLength = 4000

const (
	transparencyClause = "Render the subject on a fully transparent background with no backdrop."
	noTextClause       = "Do not include any text, letters, words, logos, or typography in the image."
	ellipsis           = "..."

	defaultEditInstruction = "Enhance the overall image quality with sharper details, cleaner lighting, and balanced colors"
)

var (
	summaryKeys = []string{"summary", "description"}
	paletteKeys = []string{"colorPalette", "color_palette", "colors", "palette"}
	hexColor    = regexp.MustCompile(`#(?:[0-9a-fA-F]{8}|[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
)

// StyleText returns the prompt text for a stored style: the flattened
// structured attributes when present, the free-text prompt otherwise.
func StyleText(style domain.ImageStyle) string {
	if style.HasStructuredData() {
		return BuildStyleDescription(style.StyleData)
	}
	return style.FreeText()
}

// BuildStyleDescription flattens a style record into one descriptive string.
// Name, summary and palette lead in that order; every other field follows in
// record order as "Humanized Key: value", with nested records flattened one
// level. Empty values are skipped.
func BuildStyleDescription(rec jsoncfg.Record) string {
	var segments []string
	used := map[string]bool{}

	if v, ok := rec.Get("name"); ok && !v.IsZero() {
		segments = append(segments, v.Text())
		used["name"] = true
	}
	for _, key := range summaryKeys {
		if v, ok := rec.Get(key); ok && !v.IsZero() {
			segments = append(segments, v.Text())
			used[key] = true
			break
		}
	}
	for _, key := range paletteKeys {
		if v, ok := rec.Get(key); ok && !v.IsZero() {
			segments = append(segments, "Color palette: "+paletteText(v))
			used[key] = true
			break
		}
	}

	for _, f := range rec.Fields() {
		if used[f.Key] || f.Value.IsZero() {
			continue
		}
		if f.Value.Kind != jsoncfg.KindRecord {
			segments = append(segments, jsoncfg.HumanizeKey(f.Key)+": "+f.Value.Text())
			continue
		}
		parent := jsoncfg.HumanizeKey(f.Key)
		for _, child := range f.Value.Record.Fields() {
			if child.Value.IsZero() {
				continue
			}
			segments = append(segments, parent+" "+jsoncfg.HumanizeKey(child.Key)+": "+child.Value.Text())
		}
	}

	for i, s := range segments {
		segments[i] = strings.TrimRight(strings.TrimSpace(s), ".")
	}
	return strings.Join(segments, ". ")
}

// paletteText reduces palette entries to their hex codes, keeping the entry
// text when it carries none.
func paletteText(v jsoncfg.Value) string {
	var entries []string
	switch v.Kind {
	case jsoncfg.KindList:
		entries = v.List
	case jsoncfg.KindRecord:
		for _, f := range v.Record.Fields() {
			entries = append(entries, f.Value.Text())
		}
	default:
		entries = strings.Split(v.Str, ",")
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if codes := hexColor.FindAllString(entry, -1); len(codes) > 0 {
			out = append(out, codes...)
			continue
		}
		out = append(out, entry)
	}
	return strings.Join(out, ", ")
}

// PromptInput carries everything ComposePrompt needs.
type PromptInput struct {
	StyleDescription string
	Concept          string
	Transparency     bool
	RenderText       bool
	Model            string
}

// ComposePrompt builds "<concept>. Style: <style>" plus the optional
// transparency and no-text clauses. When the result exceeds MaxPromptLength
// the style is cut from the tail; the concept is never shortened.
func ComposePrompt(in PromptInput) string {
	concept := strings.TrimSpace(in.Concept)
	style := strings.TrimSpace(in.StyleDescription)

	var clauses []string
	if caps, ok := Lookup(in.Model); in.Transparency && ok && caps.SupportsTransparency {
		clauses = append(clauses, transparencyClause)
	}
	if !in.RenderText {
		clauses = append(clauses, noTextClause)
	}
	tail := ""
	if len(clauses) > 0 {
		tail = " " + strings.Join(clauses, " ")
	}

	if style == "" {
		return strings.TrimSpace(sentence(concept) + tail)
	}

	head := concept + ". Style: "
	full := head + style + "." + tail
	if utf8.RuneCountInString(full) <= MaxPromptLength {
		return full
	}
	budget := MaxPromptLength - utf8.RuneCountInString(head+tail) - len(ellipsis)
	if budget <= 0 {
		return strings.TrimSpace(sentence(concept) + tail)
	}
	return head + truncateRunes(style, budget) + ellipsis + tail
}

// EditPrompt wraps an edit instruction with the directive to leave the rest of
// the image alone.
func EditPrompt(instruction string) string {
	instruction = strings.TrimRight(strings.TrimSpace(instruction), ".")
	if instruction == "" {
		instruction = defaultEditInstruction
	}
	return instruction + ". Keep all other details of the image exactly the same, including composition, subjects, colors, and style; only modify what is requested."
}

const adjustmentSeparator = " Adjustment: "

// RegenerationPrompt derives a fresh-generation prompt from the prompt of the
// source image and a user instruction. Only the original prompt is cut to fit
// MaxPromptLength, from its tail and marked with an ellipsis; the instruction
// is always kept whole.
func RegenerationPrompt(original, instruction string) string {
	original = strings.TrimSpace(original)
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return clipRunes(original, MaxPromptLength)
	}
	if original == "" {
		return instruction
	}
	suffix := adjustmentSeparator + instruction
	room := MaxPromptLength - utf8.RuneCountInString(suffix)
	if room <= len(ellipsis) {
		return instruction
	}
	return clipRunes(original, room) + suffix
}

// sentence terminates s with a period unless it already ends with one.
func sentence(s string) string {
	if s == "" || strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

// clipRunes shortens s to at most n runes, ending it with the ellipsis marker
// when anything was dropped.
func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= len(ellipsis) {
		return truncateRunes(s, n)
	}
	return truncateRunes(s, n-len(ellipsis)) + ellipsis
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
