package jsoncfg

import (
	"reflect"
	"testing"
)

func TestNormalizeConceptsShapesAgree(t *testing.T) {
	shapes := map[string]string{
		"bare array":       `["Sunrise over the city","A cup of coffee"]`,
		"wrapped":          `{"concepts":["Sunrise over the city","A cup of coffee"]}`,
		"array of objects": `[{"concept":"Sunrise over the city"},{"concept":"A cup of coffee"}]`,
		"fenced":           "```json\n[\"Sunrise over the city\",\"A cup of coffee\"]\n```",
	}
	want := []string{"Sunrise over the city", "A cup of coffee"}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			list, err := NormalizeConcepts(raw)
			if err != nil {
				t.Fatalf("NormalizeConcepts returned error: %v", err)
			}
			if got := ConceptStrings(list); !reflect.DeepEqual(got, want) {
				t.Fatalf("ConceptStrings = %#v, want %#v", got, want)
			}
		})
	}
}

func TestNormalizeConceptsStructuredObjects(t *testing.T) {
	list, err := NormalizeConcepts(`{"items":[{"title":"Morning Ritual","visual":"steam rising","tagline":null}]}`)
	if err != nil {
		t.Fatalf("NormalizeConcepts returned error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if title := ConceptTitle(list[0]); title != "Morning Ritual" {
		t.Fatalf("ConceptTitle = %q", title)
	}
	if text := ConceptText(list[0]); text != "Morning Ritual. Visual: steam rising" {
		t.Fatalf("ConceptText = %q", text)
	}
}

func TestNormalizeConceptsRejectsUnusablePayloads(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", `{"message":"sorry"}`, `[]`, `["", "  "]`} {
		if _, err := NormalizeConcepts(raw); err == nil {
			t.Fatalf("NormalizeConcepts(%q) expected error", raw)
		}
	}
}
