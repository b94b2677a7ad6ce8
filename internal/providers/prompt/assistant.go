// Package prompt talks to the language model that extracts styles and writes
// marketing concepts. Every operation has a defined fallback for model output
// that does not parse.
package prompt

import (
	"context"
	"errors"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

// ErrUnparseable is returned when model output cannot be used and the
// operation's fallback is to keep the caller's current value.
var ErrUnparseable = errors.New("prompt: model output could not be parsed")

const (
	// DefaultConceptCount applies when a request omits the count.
	DefaultConceptCount = 5
	// MaxConceptCount caps concepts generated in one call.
	MaxConceptCount = 20
	// DefaultTestConceptCount is the number of preview concepts produced for a style.
	DefaultTestConceptCount = 3
)

// Meta describes where a result came from.
type Meta struct {
	Provider       string `json:"provider"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// ExtractStyleRequest asks the vision model to describe an image's style.
type ExtractStyleRequest struct {
	// ImageURL must be reachable by the provider: a public URL or a data URI.
	ImageURL          string
	ExtractionPrompt  string
	CompositionPrompt string
	ConceptPrompt     string
}

// StyleExtraction is the structured style read from a reference image plus a
// one-line description of what the image shows.
type StyleExtraction struct {
	StyleData jsoncfg.Record
	Concept   string
	Meta
}

// ConceptRequest asks for a fresh concept list.
type ConceptRequest struct {
	CompanyName      string
	MarketingContent string
	SystemPrompt     string
	Parameters       domain.ConceptParameters
}

// ReviseRequest asks for a rewrite of a whole concept list.
type ReviseRequest struct {
	CompanyName      string
	MarketingContent string
	Concepts         []jsoncfg.Record
	Feedback         string
	Parameters       domain.ConceptParameters
}

// ConceptSet is a normalized concept list.
type ConceptSet struct {
	Concepts []jsoncfg.Record
	Meta
}

// RefineStyleRequest asks for a style record adjusted by feedback.
type RefineStyleRequest struct {
	StyleData jsoncfg.Record
	Feedback  string
}

// StyleRefinement is the refined style. Changed is false when the model output
// was unusable and the original style was kept.
type StyleRefinement struct {
	StyleData jsoncfg.Record
	Changed   bool
	Meta
}

// TestConceptsRequest asks for short concepts to preview a style with.
type TestConceptsRequest struct {
	StyleData jsoncfg.Record
	Count     int
	Locale    string
}

// TestConcepts are preview concepts for a style.
type TestConcepts struct {
	Concepts []string
	Meta
}

// NewConceptRequest asks for one concept that differs from Existing.
type NewConceptRequest struct {
	StyleData jsoncfg.Record
	Existing  []string
	Hint      string
	Locale    string
}

// NewConcept is one generated concept.
type NewConcept struct {
	Concept string
	Meta
}

// Assistant is implemented by OpenAIAssistant and StaticAssistant.
type Assistant interface {
	ExtractStyle(ctx context.Context, req ExtractStyleRequest) (*StyleExtraction, error)
	GenerateConcepts(ctx context.Context, req ConceptRequest) (*ConceptSet, error)
	// ReviseConcepts returns ErrUnparseable when the rewrite is unusable.
	ReviseConcepts(ctx context.Context, req ReviseRequest) (*ConceptSet, error)
	RefineStyle(ctx context.Context, req RefineStyleRequest) (*StyleRefinement, error)
	GenerateTestConcepts(ctx context.Context, req TestConceptsRequest) (*TestConcepts, error)
	GenerateNewConcept(ctx context.Context, req NewConceptRequest) (*NewConcept, error)
}

// PlaceholderStyle is returned when style extraction output does not parse.
func PlaceholderStyle() jsoncfg.Record {
	return jsoncfg.NewRecord(
		jsoncfg.Field{Key: "name", Value: jsoncfg.String("Clean Modern")},
		jsoncfg.Field{Key: "description", Value: jsoncfg.String("A clean, modern commercial look with soft lighting and a balanced composition")},
		jsoncfg.Field{Key: "colorPalette", Value: jsoncfg.List("#FFFFFF", "#F2F2F2", "#333333", "#0070F3")},
		jsoncfg.Field{Key: "lighting", Value: jsoncfg.String("soft, diffused studio lighting")},
		jsoncfg.Field{Key: "composition", Value: jsoncfg.String("centered subject with generous negative space")},
		jsoncfg.Field{Key: "mood", Value: jsoncfg.String("professional and approachable")},
	)
}

// PlaceholderConcept accompanies PlaceholderStyle.
const PlaceholderConcept = "A product presented on a clean background"

// ClampCount applies the default and ceiling to a requested concept count.
func ClampCount(n, def int) int {
	if n <= 0 {
		return def
	}
	return min(n, MaxConceptCount)
}
