package jsoncfg

import (
	"errors"
	"fmt"
	"strings"
)

// ConceptKey is the key plain-string concepts are stored under.
const ConceptKey = "concept"

// ErrNoConcepts is returned when model output holds no recognizable concept list.
var ErrNoConcepts = errors.New("jsoncfg: no concepts found")

// NormalizeConcepts converts a concept-list payload into uniform records. The
// payload may be a bare array, an object wrapping the array under "concepts"
// (or under its first array-valued key), and elements may be strings or
// objects. Strings become {"concept": s}.
func NormalizeConcepts(raw string) ([]Record, error) {
	fragment := ExtractJSONFragment(raw)
	if fragment == "" {
		return nil, ErrNoConcepts
	}
	n, err := parseNode([]byte(fragment))
	if err != nil {
		return nil, fmt.Errorf("jsoncfg: parse concepts: %w", err)
	}
	items := conceptItems(n)
	out := make([]Record, 0, len(items))
	for _, item := range items {
		switch item.kind {
		case nodeObject:
			if rec := item.toRecord(); rec.Len() > 0 && !Nested(rec).IsZero() {
				out = append(out, rec)
			}
		case nodeScalar, nodeArray:
			if s := item.flatten(); s != "" {
				out = append(out, NewRecord(Field{Key: ConceptKey, Value: String(s)}))
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrNoConcepts
	}
	return out, nil
}

func conceptItems(n node) []node {
	switch n.kind {
	case nodeArray:
		return n.vals
	case nodeObject:
		for i, key := range n.keys {
			if strings.EqualFold(key, "concepts") && n.vals[i].kind == nodeArray {
				return n.vals[i].vals
			}
		}
		for i := range n.keys {
			if n.vals[i].kind == nodeArray {
				return n.vals[i].vals
			}
		}
	}
	return nil
}

// ConceptTitle returns the display title of a concept: its first non-empty value.
func ConceptTitle(c Record) string {
	for _, f := range c.fields {
		if !f.Value.IsZero() {
			return f.Value.Text()
		}
	}
	return ""
}

// ConceptText flattens a concept record into the single line used as the
// concept half of an image prompt.
func ConceptText(c Record) string {
	var parts []string
	titled := false
	for _, f := range c.fields {
		if f.Value.IsZero() {
			continue
		}
		text := strings.TrimRight(f.Value.Text(), ". ")
		if !titled {
			parts = append(parts, text)
			titled = true
			continue
		}
		parts = append(parts, HumanizeKey(f.Key)+": "+text)
	}
	return strings.Join(parts, ". ")
}

// ConceptStrings converts a concept list to prompt-ready strings.
func ConceptStrings(list []Record) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		if text := ConceptText(c); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// CloneRecords deep-copies a slice of records.
func CloneRecords(list []Record) []Record {
	if list == nil {
		return nil
	}
	out := make([]Record, len(list))
	for i, r := range list {
		out[i] = r.Clone()
	}
	return out
}
