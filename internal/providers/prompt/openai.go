package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

type OpenAIOptions struct {
	APIKey       string
	ChatModel    string
	VisionModel  string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Assistant
	OnFallback   func(reason string, err error)
	OnWarning    func(reason, detail string)
}

// OpenAIAssistant implements Assistant on the chat completions API. Transport
// and decode failures fall back to the configured fallback assistant.
type OpenAIAssistant struct {
	apiKey       string
	chatModel    string
	visionModel  string
	baseURL      string
	organization string
	client       *http.Client
	fallback     Assistant
	onFallback   func(reason string, err error)
}

const openAIDefaultTimeout = 90 * time.Second

const (
	defaultOpenAIModel       = "gpt-4o-mini"
	defaultOpenAIVisionModel = "gpt-4o"
)

var openAIModelCanonical = map[string]string{
	"gpt-4o":       "gpt-4o",
	"gpt-4o-mini":  "gpt-4o-mini",
	"gpt-4.1":      "gpt-4.1",
	"gpt-4.1-mini": "gpt-4.1-mini",
}

var openAIModelAliases = map[string]string{
	"gpt4o":                  "gpt-4o",
	"gpt-4-omni":             "gpt-4o",
	"gpt-4o-2024-08-06":      "gpt-4o",
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt4.1":                 "gpt-4.1",
	"gpt-41":                 "gpt-4.1",
	"gpt4.1-mini":            "gpt-4.1-mini",
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

// openAIMessage content is a string, or a list of parts for vision input.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatError carries the fallback reason of a failed call.
type chatError struct {
	reason string
	err    error
}

func (e *chatError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *chatError) Unwrap() error { return e.err }

func NewOpenAIAssistant(opts OpenAIOptions) (*OpenAIAssistant, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	chatModel := resolveModel(opts.ChatModel, defaultOpenAIModel, opts.OnWarning)
	visionModel := resolveModel(opts.VisionModel, defaultOpenAIVisionModel, opts.OnWarning)
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewStaticAssistant()
	}
	return &OpenAIAssistant{
		apiKey:       strings.TrimSpace(opts.APIKey),
		chatModel:    chatModel,
		visionModel:  visionModel,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		fallback:     fallback,
		onFallback:   opts.OnFallback,
	}, nil
}

func resolveModel(requested, def string, onWarning func(reason, detail string)) string {
	requested = strings.TrimSpace(requested)
	normalized, reason := normalizeOpenAIModel(requested, def)
	if reason != "" && onWarning != nil {
		onWarning("model_"+reason, fmt.Sprintf("requested=%s resolved=%s", coalesce(requested, def), normalized))
	}
	return normalized
}

func (o *OpenAIAssistant) ExtractStyle(ctx context.Context, req ExtractStyleRequest) (*StyleExtraction, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, fmt.Errorf("%w: image url is required", domain.ErrValidation)
	}
	text, err := o.chat(ctx, o.visionModel, 0.2, styleShapeInstruction, []openAIContentPart{
		{Type: "text", Text: buildExtractionMessage(req)},
		{Type: "image_url", ImageURL: &openAIImageURL{URL: req.ImageURL}},
	})
	if err != nil {
		return o.fallbackExtract(ctx, req, err)
	}
	style, concept, err := parseStyleExtraction(text)
	if err != nil {
		o.emitFallback("parse_payload", err)
		return &StyleExtraction{
			StyleData: PlaceholderStyle(),
			Concept:   PlaceholderConcept,
			Meta:      Meta{Provider: openAIProviderName, FallbackReason: "parse_payload"},
		}, nil
	}
	return &StyleExtraction{
		StyleData: style,
		Concept:   coalesce(concept, PlaceholderConcept),
		Meta:      Meta{Provider: openAIProviderName},
	}, nil
}

func (o *OpenAIAssistant) GenerateConcepts(ctx context.Context, req ConceptRequest) (*ConceptSet, error) {
	req.Parameters = conceptParameters(req.Parameters)
	system := coalesce(req.SystemPrompt, DefaultConceptPrompt) + "\n\n" + conceptShapeInstruction
	model := o.chatModel
	var content any = buildConceptMessage(req)
	if ref := strings.TrimSpace(req.Parameters.ReferenceImageURL); ref != "" {
		model = o.visionModel
		content = []openAIContentPart{
			{Type: "text", Text: buildConceptMessage(req)},
			{Type: "image_url", ImageURL: &openAIImageURL{URL: ref}},
		}
	}
	text, err := o.chat(ctx, model, req.Parameters.Temperature, system, content)
	if err != nil {
		return o.fallbackConcepts(ctx, req, err)
	}
	concepts, err := jsoncfg.NormalizeConcepts(text)
	if err != nil {
		return o.fallbackConcepts(ctx, req, &chatError{reason: "parse_payload", err: err})
	}
	if len(concepts) > req.Parameters.Count {
		concepts = concepts[:req.Parameters.Count]
	}
	return &ConceptSet{Concepts: concepts, Meta: Meta{Provider: openAIProviderName}}, nil
}

// ReviseConcepts never substitutes fallback content: an unusable answer is
// reported as ErrUnparseable so the stored list stays as it was.
func (o *OpenAIAssistant) ReviseConcepts(ctx context.Context, req ReviseRequest) (*ConceptSet, error) {
	msg, err := buildReviseMessage(req)
	if err != nil {
		return nil, fmt.Errorf("prompt: encode concepts: %w", err)
	}
	params := conceptParameters(req.Parameters)
	text, err := o.chat(ctx, o.chatModel, params.Temperature, DefaultConceptPrompt+"\n\n"+conceptShapeInstruction, msg)
	if err != nil {
		o.emitFallback(reasonOf(err), err)
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	concepts, err := jsoncfg.NormalizeConcepts(text)
	if err != nil {
		o.emitFallback("parse_payload", err)
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return &ConceptSet{Concepts: concepts, Meta: Meta{Provider: openAIProviderName}}, nil
}

func (o *OpenAIAssistant) RefineStyle(ctx context.Context, req RefineStyleRequest) (*StyleRefinement, error) {
	if strings.TrimSpace(req.Feedback) == "" {
		return nil, fmt.Errorf("%w: feedback is required", domain.ErrValidation)
	}
	msg, err := buildRefineMessage(req)
	if err != nil {
		return nil, fmt.Errorf("prompt: encode style: %w", err)
	}
	keep := func(reason string, cause error) *StyleRefinement {
		o.emitFallback(reason, cause)
		return &StyleRefinement{
			StyleData: req.StyleData.Clone(),
			Meta:      Meta{Provider: openAIProviderName, FallbackReason: reason},
		}
	}
	text, err := o.chat(ctx, o.chatModel, 0.4, "You refine visual style descriptions. Respond only with a JSON object.", msg)
	if err != nil {
		return keep(reasonOf(err), err), nil
	}
	refined, err := jsoncfg.ParseObject(text)
	if err != nil || refined.Len() == 0 {
		if err == nil {
			err = jsoncfg.ErrNotObject
		}
		return keep("parse_payload", err), nil
	}
	return &StyleRefinement{StyleData: refined, Changed: true, Meta: Meta{Provider: openAIProviderName}}, nil
}

func (o *OpenAIAssistant) GenerateTestConcepts(ctx context.Context, req TestConceptsRequest) (*TestConcepts, error) {
	count := ClampCount(req.Count, DefaultTestConceptCount)
	msg, err := buildTestConceptsMessage(req, count)
	if err != nil {
		return nil, fmt.Errorf("prompt: encode style: %w", err)
	}
	text, err := o.chat(ctx, o.chatModel, 0.9, "You suggest subjects for sample images. Respond only with JSON.", msg)
	if err == nil {
		var concepts []jsoncfg.Record
		concepts, err = jsoncfg.NormalizeConcepts(text)
		if err == nil {
			out := dedupe(jsoncfg.ConceptStrings(concepts))
			if len(out) > count {
				out = out[:count]
			}
			return &TestConcepts{Concepts: out, Meta: Meta{Provider: openAIProviderName}}, nil
		}
		err = &chatError{reason: "parse_payload", err: err}
	}
	o.emitFallback(reasonOf(err), err)
	res, ferr := o.fallback.GenerateTestConcepts(ctx, req)
	if res != nil {
		res.FallbackReason = reasonOf(err)
	}
	return res, ferr
}

func (o *OpenAIAssistant) GenerateNewConcept(ctx context.Context, req NewConceptRequest) (*NewConcept, error) {
	msg, err := buildNewConceptMessage(req)
	if err != nil {
		return nil, fmt.Errorf("prompt: encode style: %w", err)
	}
	text, err := o.chat(ctx, o.chatModel, 1.0, "You suggest subjects for sample images. Respond only with JSON.", msg)
	if err == nil {
		if parsed, perr := parseModelPayload[struct {
			Concept string `json:"concept"`
		}](text); perr == nil && strings.TrimSpace(parsed.Concept) != "" {
			return &NewConcept{Concept: strings.TrimSpace(parsed.Concept), Meta: Meta{Provider: openAIProviderName}}, nil
		}
		// A bare sentence is still a usable concept.
		if plain := strings.Trim(strings.TrimSpace(text), "\"'`"); plain != "" && !strings.ContainsAny(plain, "{}[]") {
			return &NewConcept{Concept: plain, Meta: Meta{Provider: openAIProviderName}}, nil
		}
		err = &chatError{reason: "parse_payload", err: errors.New("no concept in response")}
	}
	o.emitFallback(reasonOf(err), err)
	res, ferr := o.fallback.GenerateNewConcept(ctx, req)
	if res != nil {
		res.FallbackReason = reasonOf(err)
	}
	return res, ferr
}

func (o *OpenAIAssistant) fallbackExtract(ctx context.Context, req ExtractStyleRequest, cause error) (*StyleExtraction, error) {
	o.emitFallback(reasonOf(cause), cause)
	res, err := o.fallback.ExtractStyle(ctx, req)
	if res != nil {
		res.FallbackReason = reasonOf(cause)
	}
	return res, err
}

func (o *OpenAIAssistant) fallbackConcepts(ctx context.Context, req ConceptRequest, cause error) (*ConceptSet, error) {
	o.emitFallback(reasonOf(cause), cause)
	res, err := o.fallback.GenerateConcepts(ctx, req)
	if res != nil {
		res.FallbackReason = reasonOf(cause)
	}
	return res, err
}

func (o *OpenAIAssistant) emitFallback(reason string, err error) {
	if o.onFallback != nil {
		o.onFallback(reason, err)
	}
}

func reasonOf(err error) string {
	var ce *chatError
	if errors.As(err, &ce) {
		return ce.reason
	}
	return "unknown"
}

// chat sends one system + user exchange and returns the assistant text.
func (o *OpenAIAssistant) chat(ctx context.Context, model string, temperature float64, system string, user any) (string, error) {
	payload := openAIChatRequest{
		Model:          model,
		Temperature:    temperature,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", &chatError{reason: "encode_request", err: err}
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", &chatError{reason: "build_request", err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", &chatError{reason: "http_request", err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return "", &chatError{reason: fmt.Sprintf("http_%d", resp.StatusCode), err: fmt.Errorf("openai status %d", resp.StatusCode)}
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &chatError{reason: "decode_response", err: err}
	}
	if len(out.Choices) == 0 {
		return "", &chatError{reason: "empty_choices", err: errors.New("no choices")}
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", &chatError{reason: "empty_response", err: errors.New("empty response")}
	}
	return text, nil
}

var _ Assistant = (*OpenAIAssistant)(nil)

func normalizeOpenAIModel(name, def string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return def, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if canonical, ok := openAIModelCanonical[normalized]; ok {
		return canonical, ""
	}
	if alias, ok := openAIModelAliases[normalized]; ok {
		return alias, "alias"
	}
	return def, "defaulted"
}
