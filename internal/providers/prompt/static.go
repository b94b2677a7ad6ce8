package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stylegen/internal/domain/jsoncfg"
)

// StaticAssistant answers without a model. It backs development setups
// without an API key and is the fallback of OpenAIAssistant.
type StaticAssistant struct{}

func NewStaticAssistant() *StaticAssistant {
	return &StaticAssistant{}
}

var staticScenes = []struct{ title, visual string }{
	{"Hero shot", "the %s product centered on a seamless backdrop"},
	{"In use", "a customer enjoying %s in an everyday setting"},
	{"Behind the scenes", "hands crafting the %s offering in a workshop"},
	{"Flat lay", "a top-down arrangement of %s essentials"},
	{"Morning ritual", "%s as part of a calm morning routine"},
	{"Gift moment", "%s wrapped as a thoughtful gift"},
	{"Community", "friends sharing %s around a table"},
	{"Detail", "a close-up of the texture and finish of %s"},
}

var staticSubjects = []string{
	"a ceramic coffee cup on a wooden table",
	"a bicycle leaning against a brick wall",
	"a potted plant by a sunny window",
	"a pair of sneakers on a city sidewalk",
	"a stack of books with reading glasses",
	"a lighthouse on a rocky coast",
}

func (s *StaticAssistant) ExtractStyle(context.Context, ExtractStyleRequest) (*StyleExtraction, error) {
	return &StyleExtraction{
		StyleData: PlaceholderStyle(),
		Concept:   PlaceholderConcept,
		Meta:      Meta{Provider: staticProviderName},
	}, nil
}

func (s *StaticAssistant) GenerateConcepts(_ context.Context, req ConceptRequest) (*ConceptSet, error) {
	p := conceptParameters(req.Parameters)
	name := cases.Title(language.Und).String(coalesce(req.CompanyName, "your brand"))
	out := make([]jsoncfg.Record, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		scene := staticScenes[i%len(staticScenes)]
		title := scene.title
		if i >= len(staticScenes) {
			title = fmt.Sprintf("%s %d", scene.title, i/len(staticScenes)+1)
		}
		out = append(out, jsoncfg.NewRecord(
			jsoncfg.Field{Key: "title", Value: jsoncfg.String(title)},
			jsoncfg.Field{Key: "visual", Value: jsoncfg.String(fmt.Sprintf(scene.visual, name))},
		))
	}
	return &ConceptSet{Concepts: out, Meta: Meta{Provider: staticProviderName}}, nil
}

// ReviseConcepts cannot rewrite without a model; the caller keeps its list.
func (s *StaticAssistant) ReviseConcepts(context.Context, ReviseRequest) (*ConceptSet, error) {
	return nil, ErrUnparseable
}

func (s *StaticAssistant) RefineStyle(_ context.Context, req RefineStyleRequest) (*StyleRefinement, error) {
	return &StyleRefinement{StyleData: req.StyleData.Clone(), Meta: Meta{Provider: staticProviderName}}, nil
}

func (s *StaticAssistant) GenerateTestConcepts(_ context.Context, req TestConceptsRequest) (*TestConcepts, error) {
	n := ClampCount(req.Count, DefaultTestConceptCount)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, staticSubjects[i%len(staticSubjects)])
	}
	return &TestConcepts{Concepts: dedupe(out), Meta: Meta{Provider: staticProviderName}}, nil
}

func (s *StaticAssistant) GenerateNewConcept(_ context.Context, req NewConceptRequest) (*NewConcept, error) {
	used := make(map[string]bool, len(req.Existing))
	for _, e := range req.Existing {
		used[strings.ToLower(strings.TrimSpace(e))] = true
	}
	for _, subject := range staticSubjects {
		if !used[subject] {
			return &NewConcept{Concept: subject, Meta: Meta{Provider: staticProviderName}}, nil
		}
	}
	return &NewConcept{
		Concept: fmt.Sprintf("%s, seen from a new angle", staticSubjects[len(req.Existing)%len(staticSubjects)]),
		Meta:    Meta{Provider: staticProviderName},
	}, nil
}

var _ Assistant = (*StaticAssistant)(nil)
