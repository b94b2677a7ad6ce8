package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

const (
	staticProviderName = "static"
	openAIProviderName = "openai"
)

// styleShapeInstruction fixes the JSON shape of style extraction regardless of
// the user's extraction prompt.
const styleShapeInstruction = `Respond only with a JSON object of the form ` +
	`{"style":{"name":string,"description":string,"colorPalette":string[],"lighting":string,` +
	`"composition":string,"mood":string,"textures":string,"medium":string},"concept":string}. ` +
	`"style" describes how the image looks, independent of its subject. ` +
	`"concept" is one sentence describing what the image shows.`

const conceptShapeInstruction = `Respond only with a JSON object of the form ` +
	`{"concepts":[{"title":string,"visual":string,"headline":string}]}.`

// DefaultExtractionPrompt is used when no style-extraction system prompt is stored.
const DefaultExtractionPrompt = "You are an art director. Analyze the reference image and describe its visual style " +
	"precisely enough that an illustrator could reproduce it on a different subject: palette, lighting, " +
	"composition, textures, medium, and mood."

// DefaultConceptPrompt is used when no concept-generation system prompt is stored.
const DefaultConceptPrompt = "You are a senior marketing strategist. Write distinct visual concepts for marketing " +
	"images. Each concept names a scene that can be illustrated without any text in the image."

func buildExtractionMessage(req ExtractStyleRequest) string {
	sb := &strings.Builder{}
	sb.WriteString(coalesce(req.ExtractionPrompt, DefaultExtractionPrompt))
	if c := strings.TrimSpace(req.CompositionPrompt); c != "" {
		fmt.Fprintf(sb, "\n\nFor the composition field: %s", c)
	}
	if c := strings.TrimSpace(req.ConceptPrompt); c != "" {
		fmt.Fprintf(sb, "\n\nFor the concept field: %s", c)
	}
	return sb.String()
}

func buildConceptMessage(req ConceptRequest) string {
	p := req.Parameters
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Company: %s\n", coalesce(req.CompanyName, "unnamed company"))
	fmt.Fprintf(sb, "Marketing content:\n%s\n\n", strings.TrimSpace(req.MarketingContent))
	fmt.Fprintf(sb, "Write %d concepts. %s %s", ClampCount(p.Count, DefaultConceptCount), metaphorGuidance(p.Metaphor), complexityGuidance(p.Complexity))
	if lang := languageName(p.Locale); lang != "" {
		fmt.Fprintf(sb, " Write the concepts in %s.", lang)
	}
	if strings.TrimSpace(p.ReferenceImageURL) != "" {
		sb.WriteString(" Take visual cues from the attached reference image.")
	}
	return sb.String()
}

func buildReviseMessage(req ReviseRequest) (string, error) {
	current, err := json.Marshal(req.Concepts)
	if err != nil {
		return "", err
	}
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Company: %s\n", coalesce(req.CompanyName, "unnamed company"))
	if mc := strings.TrimSpace(req.MarketingContent); mc != "" {
		fmt.Fprintf(sb, "Marketing content:\n%s\n\n", mc)
	}
	fmt.Fprintf(sb, "Current concepts:\n%s\n\n", current)
	fmt.Fprintf(sb, "Feedback: %s\n\n", strings.TrimSpace(req.Feedback))
	fmt.Fprintf(sb, "Rewrite the entire list so it follows the feedback. Keep %d concepts unless the feedback asks for a different number.", len(req.Concepts))
	if lang := languageName(req.Parameters.Locale); lang != "" {
		fmt.Fprintf(sb, " Write in %s.", lang)
	}
	return sb.String(), nil
}

func buildRefineMessage(req RefineStyleRequest) (string, error) {
	current, err := json.Marshal(req.StyleData)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Current style:\n%s\n\nFeedback: %s\n\nReturn the complete updated style as one JSON object with the same keys, changing only what the feedback asks for.",
		current, strings.TrimSpace(req.Feedback)), nil
}

func buildTestConceptsMessage(req TestConceptsRequest, count int) (string, error) {
	style, err := json.Marshal(req.StyleData)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Style:\n%s\n\nSuggest %d short, varied subjects that would show off this style well. %s",
		style, count, `Respond only with {"concepts":[string]}.`)
	if lang := languageName(req.Locale); lang != "" {
		msg += " Write in " + lang + "."
	}
	return msg, nil
}

func buildNewConceptMessage(req NewConceptRequest) (string, error) {
	style, err := json.Marshal(req.StyleData)
	if err != nil {
		return "", err
	}
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Style:\n%s\n\n", style)
	if len(req.Existing) > 0 {
		fmt.Fprintf(sb, "Already used subjects: %s\n", strings.Join(req.Existing, "; "))
	}
	if h := strings.TrimSpace(req.Hint); h != "" {
		fmt.Fprintf(sb, "Direction: %s\n", h)
	}
	sb.WriteString(`Suggest one new subject that differs from the used ones. Respond only with {"concept":string}.`)
	if lang := languageName(req.Locale); lang != "" {
		sb.WriteString(" Write in " + lang + ".")
	}
	return sb.String(), nil
}

// metaphorGuidance maps the 0-100 literal/metaphorical axis to an instruction.
func metaphorGuidance(v int) string {
	switch {
	case v < 25:
		return "Keep the concepts literal: show the product or service directly."
	case v < 50:
		return "Lean literal, with light symbolic touches."
	case v < 75:
		return "Lean metaphorical: express benefits through symbolic scenes."
	default:
		return "Be strongly metaphorical and surprising."
	}
}

// complexityGuidance maps the 0-100 simple/complex axis to an instruction.
func complexityGuidance(v int) string {
	switch {
	case v < 25:
		return "Each scene should have a single subject and a plain setting."
	case v < 50:
		return "Keep scenes simple with one or two elements."
	case v < 75:
		return "Scenes may combine several elements."
	default:
		return "Scenes may be rich and layered."
	}
}

// languageName turns a locale tag into an English language name. Unknown and
// English locales return "".
func languageName(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return ""
	}
	return display.English.Languages().Name(base)
}

func clampTemperature(t float64) float64 {
	switch {
	case t <= 0:
		return 0.8
	case t > 2:
		return 2
	default:
		return t
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := jsoncfg.ExtractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

// parseStyleExtraction reads {"style":{...},"concept":"..."}. A bare style
// object without the wrapper is accepted too.
func parseStyleExtraction(raw string) (jsoncfg.Record, string, error) {
	rec, err := jsoncfg.ParseObject(raw)
	if err != nil {
		return jsoncfg.Record{}, "", err
	}
	concept := ""
	if v, ok := rec.Get("concept"); ok {
		concept = v.Text()
	}
	if v, ok := rec.Get("style"); ok && v.Kind == jsoncfg.KindRecord && !v.IsZero() {
		return v.Record, concept, nil
	}
	rec.Delete("concept")
	if rec.Len() == 0 || jsoncfg.Nested(rec).IsZero() {
		return jsoncfg.Record{}, "", jsoncfg.ErrNotObject
	}
	return rec, concept, nil
}

// dedupe trims values and drops blanks and case-insensitive repeats.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// conceptParameters fills defaults in generation parameters.
func conceptParameters(p domain.ConceptParameters) domain.ConceptParameters {
	p.Count = ClampCount(p.Count, DefaultConceptCount)
	p.Temperature = clampTemperature(p.Temperature)
	p.Metaphor = min(max(p.Metaphor, 0), 100)
	p.Complexity = min(max(p.Complexity, 0), 100)
	return p
}
