package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// chatReply builds a client whose every completion returns content.
func chatReply(t *testing.T, content string, seen *openAIChatRequest) *http.Client {
	t.Helper()
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer dummy" {
			t.Errorf("authorization = %q", got)
		}
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(string(body))),
		}, nil
	})}
}

func newTestAssistant(t *testing.T, client *http.Client, reasons *[]string) *OpenAIAssistant {
	t.Helper()
	a, err := NewOpenAIAssistant(OpenAIOptions{
		APIKey:     "dummy",
		HTTPClient: client,
		OnFallback: func(reason string, err error) {
			if reasons != nil {
				*reasons = append(*reasons, reason)
			}
		},
	})
	if err != nil {
		t.Fatalf("NewOpenAIAssistant: %v", err)
	}
	return a
}

func TestExtractStyleParsesWrappedStyle(t *testing.T) {
	var req openAIChatRequest
	content := "```json\n{\"style\":{\"name\":\"Risograph\",\"colorPalette\":[\"#ff0066\",\"#00aaff\"]},\"concept\":\"A fox in a forest\"}\n```"
	a := newTestAssistant(t, chatReply(t, content, &req), nil)

	res, err := a.ExtractStyle(context.Background(), ExtractStyleRequest{ImageURL: "data:image/png;base64,AAAA", ExtractionPrompt: "Describe the style"})
	if err != nil {
		t.Fatalf("ExtractStyle: %v", err)
	}
	if name, _ := res.StyleData.Get("name"); name.Text() != "Risograph" {
		t.Fatalf("style = %s", mustJSON(t, res.StyleData))
	}
	if res.Concept != "A fox in a forest" || res.FallbackReason != "" {
		t.Fatalf("result = %+v", res)
	}
	if req.Model != defaultOpenAIVisionModel {
		t.Fatalf("model = %q", req.Model)
	}
	parts, ok := req.Messages[1].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("user content = %#v", req.Messages[1].Content)
	}
}

func TestExtractStyleFallsBackToPlaceholder(t *testing.T) {
	var reasons []string
	a := newTestAssistant(t, chatReply(t, "I cannot describe this image.", nil), &reasons)

	res, err := a.ExtractStyle(context.Background(), ExtractStyleRequest{ImageURL: "https://example.com/a.png"})
	if err != nil {
		t.Fatalf("ExtractStyle: %v", err)
	}
	if mustJSON(t, res.StyleData) != mustJSON(t, PlaceholderStyle()) || res.Concept != PlaceholderConcept {
		t.Fatalf("expected placeholder, got %+v", res)
	}
	if res.FallbackReason != "parse_payload" || len(reasons) != 1 {
		t.Fatalf("reason = %q, hooks = %v", res.FallbackReason, reasons)
	}
}

func TestGenerateConceptsNormalizesShapes(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "wrapped strings", content: `{"concepts":["Sunrise run","Team lunch"]}`},
		{name: "bare array", content: `["Sunrise run","Team lunch"]`},
		{name: "objects", content: `{"concepts":[{"concept":"Sunrise run"},{"concept":"Team lunch"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req openAIChatRequest
			a := newTestAssistant(t, chatReply(t, tc.content, &req), nil)
			res, err := a.GenerateConcepts(context.Background(), ConceptRequest{
				CompanyName: "Acme",
				Parameters:  domain.ConceptParameters{Count: 2, Temperature: 0.5, Locale: "id-ID"},
			})
			if err != nil {
				t.Fatalf("GenerateConcepts: %v", err)
			}
			got := jsoncfg.ConceptStrings(res.Concepts)
			if strings.Join(got, "|") != "Sunrise run|Team lunch" {
				t.Fatalf("concepts = %v", got)
			}
			if req.Temperature != 0.5 || req.Model != defaultOpenAIModel {
				t.Fatalf("request = %+v", req)
			}
			if user, _ := req.Messages[1].Content.(string); !strings.Contains(user, "Indonesian") {
				t.Fatalf("locale not applied: %q", user)
			}
		})
	}
}

func TestGenerateConceptsFallsBackOnTransportError(t *testing.T) {
	var reasons []string
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("boom")
	})}
	a := newTestAssistant(t, client, &reasons)

	res, err := a.GenerateConcepts(context.Background(), ConceptRequest{CompanyName: "acme bakery", Parameters: domain.ConceptParameters{Count: 3}})
	if err != nil {
		t.Fatalf("GenerateConcepts: %v", err)
	}
	if res.Provider != staticProviderName || res.FallbackReason != "http_request" || len(res.Concepts) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if len(reasons) != 1 || reasons[0] != "http_request" {
		t.Fatalf("hooks = %v", reasons)
	}
}

func TestReviseConceptsReportsUnparseable(t *testing.T) {
	a := newTestAssistant(t, chatReply(t, "Sure! Here are some ideas.", nil), nil)
	_, err := a.ReviseConcepts(context.Background(), ReviseRequest{
		Concepts: []jsoncfg.Record{jsoncfg.NewRecord(jsoncfg.Field{Key: "concept", Value: jsoncfg.String("a")})},
		Feedback: "more playful",
	})
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("err = %v, want ErrUnparseable", err)
	}
}

func TestRefineStyleKeepsOriginalOnBadOutput(t *testing.T) {
	original := jsoncfg.NewRecord(jsoncfg.Field{Key: "name", Value: jsoncfg.String("Noir")})
	a := newTestAssistant(t, chatReply(t, `["not","an","object"]`, nil), nil)

	res, err := a.RefineStyle(context.Background(), RefineStyleRequest{StyleData: original, Feedback: "warmer"})
	if err != nil {
		t.Fatalf("RefineStyle: %v", err)
	}
	if res.Changed || mustJSON(t, res.StyleData) != mustJSON(t, original) {
		t.Fatalf("result = %+v", res)
	}

	a = newTestAssistant(t, chatReply(t, `{"name":"Warm Noir","lighting":"amber"}`, nil), nil)
	res, err = a.RefineStyle(context.Background(), RefineStyleRequest{StyleData: original, Feedback: "warmer"})
	if err != nil || !res.Changed {
		t.Fatalf("RefineStyle = %+v, %v", res, err)
	}
	if got := mustJSON(t, res.StyleData); got != `{"name":"Warm Noir","lighting":"amber"}` {
		t.Fatalf("refined = %s", got)
	}
}

func TestGenerateNewConcept(t *testing.T) {
	a := newTestAssistant(t, chatReply(t, `{"concept":"A kite over dunes"}`, nil), nil)
	res, err := a.GenerateNewConcept(context.Background(), NewConceptRequest{Existing: []string{"a cup"}})
	if err != nil || res.Concept != "A kite over dunes" {
		t.Fatalf("GenerateNewConcept = %+v, %v", res, err)
	}

	a = newTestAssistant(t, chatReply(t, `{}`, nil), nil)
	res, err = a.GenerateNewConcept(context.Background(), NewConceptRequest{Existing: []string{staticSubjects[0]}})
	if err != nil || res.Concept != staticSubjects[1] || res.FallbackReason != "parse_payload" {
		t.Fatalf("fallback = %+v, %v", res, err)
	}
}

func TestGenerateTestConceptsCapsCount(t *testing.T) {
	a := newTestAssistant(t, chatReply(t, `{"concepts":["a","b","B","c","d"]}`, nil), nil)
	res, err := a.GenerateTestConcepts(context.Background(), TestConceptsRequest{Count: 3})
	if err != nil {
		t.Fatalf("GenerateTestConcepts: %v", err)
	}
	if strings.Join(res.Concepts, ",") != "a,b,c" {
		t.Fatalf("concepts = %v", res.Concepts)
	}
}

func TestNormalizeOpenAIModel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		input  string
		model  string
		reason string
	}{
		{name: "exact_default", input: "gpt-4o-mini", model: "gpt-4o-mini", reason: ""},
		{name: "exact_vision", input: "gpt-4o", model: "gpt-4o", reason: ""},
		{name: "alias_short", input: "gpt4o", model: "gpt-4o", reason: "alias"},
		{name: "alias_spaces", input: "GPT4o Mini", model: "gpt-4o-mini", reason: "alias"},
		{name: "unsupported", input: "gpt-3.5-turbo", model: "gpt-4o-mini", reason: "defaulted"},
		{name: "empty", input: "", model: "gpt-4o-mini", reason: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotModel, gotReason := normalizeOpenAIModel(tc.input, defaultOpenAIModel)
			if gotModel != tc.model {
				t.Fatalf("model = %q, want %q", gotModel, tc.model)
			}
			if gotReason != tc.reason {
				t.Fatalf("reason = %q, want %q", gotReason, tc.reason)
			}
		})
	}
}

func TestNewOpenAIAssistantWarnsOnUnsupportedModel(t *testing.T) {
	t.Parallel()
	var capturedReason, capturedDetail string
	_, err := NewOpenAIAssistant(OpenAIOptions{
		APIKey:    "dummy",
		ChatModel: "davinci",
		OnWarning: func(reason, detail string) {
			capturedReason = reason
			capturedDetail = detail
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capturedReason != "model_defaulted" || capturedDetail == "" {
		t.Fatalf("warning = %q %q", capturedReason, capturedDetail)
	}
}

func TestLanguageName(t *testing.T) {
	cases := map[string]string{"": "", "en-US": "", "id": "Indonesian", "fr-FR": "French", "???": ""}
	for in, want := range cases {
		if got := languageName(in); got != want {
			t.Errorf("languageName(%q) = %q, want %q", in, got, want)
		}
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
