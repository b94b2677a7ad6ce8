package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stylegen/internal/domain"
)

// OpenAIOptions configures the OpenAI Images client.
type OpenAIOptions struct {
	APIKey       string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

// OpenAIGenerator calls the OpenAI Images API.
type OpenAIGenerator struct {
	apiKey       string
	baseURL      string
	organization string
	client       *http.Client
}

const openAIImageTimeout = 3 * time.Minute

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Background     string `json:"background,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openAIImageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIImageTimeout}
	}
	return &OpenAIGenerator{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
	}, nil
}

// Generate calls /images/generations.
func (g *OpenAIGenerator) Generate(ctx context.Context, req ProviderRequest) (Result, error) {
	payload := openAIImageRequest{
		Model:      req.Model,
		Prompt:     req.Prompt,
		N:          1,
		Size:       req.Size,
		Quality:    req.Quality,
		Background: req.Background,
	}
	// gpt-image-1 always answers with base64 and rejects response_format.
	if req.Model != ModelGPTImage1 {
		payload.ResponseFormat = "b64_json"
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return Result{}, fmt.Errorf("openai images: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("openai images: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return g.do(httpReq)
}

// Edit uploads the PNG at req.ImagePath to /images/edits.
func (g *OpenAIGenerator) Edit(ctx context.Context, req ProviderRequest) (Result, error) {
	if req.ImagePath == "" {
		return Result{}, errors.New("openai images: edit requires an image")
	}
	f, err := os.Open(req.ImagePath)
	if err != nil {
		return Result{}, fmt.Errorf("openai images: open source: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"model", req.Model},
		{"prompt", req.Prompt},
		{"n", "1"},
		{"size", req.Size},
		{"quality", req.Quality},
		{"background", req.Background},
	}
	if req.Model != ModelGPTImage1 {
		fields = append(fields, [2]string{"response_format", "b64_json"})
	}
	for _, kv := range fields {
		if kv[1] == "" {
			continue
		}
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return Result{}, fmt.Errorf("openai images: write field: %w", err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(req.ImagePath)))
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	if err != nil {
		return Result{}, fmt.Errorf("openai images: create part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("openai images: copy source: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("openai images: close multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/edits", &body)
	if err != nil {
		return Result{}, fmt.Errorf("openai images: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	return g.do(httpReq)
}

func (g *OpenAIGenerator) do(httpReq *http.Request) (Result, error) {
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	if g.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", g.organization)
	}
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: openai images: %v", domain.ErrProviderFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return Result{}, fmt.Errorf("%w: openai images: read body: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode >= 300 {
		var apiErr openAIErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return Result{}, fmt.Errorf("%w: openai images status %d: %s", domain.ErrProviderFailure, resp.StatusCode, msg)
	}
	var out openAIImageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("%w: openai images: decode response: %v", domain.ErrProviderFailure, err)
	}
	if len(out.Data) == 0 {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrProviderFailure, ErrEmptyResult)
	}
	d := out.Data[0]
	return Result{URL: d.URL, B64: d.B64JSON, RevisedPrompt: d.RevisedPrompt}, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
