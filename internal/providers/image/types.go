package image

import (
	"context"
	"errors"
	"strings"
)

// OperationKind distinguishes fresh generations from edits of an existing image.
type OperationKind string

const (
	OperationGenerate OperationKind = "generate"
	OperationEdit     OperationKind = "edit"
)

// ProviderRequest is a validated, provider-ready request. Only BuildRequest
// produces one; callers fill in Prompt (and ImagePath for edits).
type ProviderRequest struct {
	Kind       OperationKind
	Model      string
	Size       string
	Quality    string
	Background string
	Prompt     string
	ImagePath  string
	// ModelSwitched records that the model was replaced to honour a
	// transparency request.
	ModelSwitched  bool
	RequestedModel string
}

// Result is one generated image. Providers return either a remote URL or
// inline base64 bytes.
type Result struct {
	URL           string
	B64           string
	RevisedPrompt string
}

// ErrEmptyResult is returned when a provider response carries no image.
var ErrEmptyResult = errors.New("image: provider returned no image")

// ImageURL normalizes the result into a URL. Base64 payloads become a
// data:image/png;base64 URI so storage and display never care which shape
// the provider returned.
func (r Result) ImageURL() (string, error) {
	if b64 := strings.TrimSpace(r.B64); b64 != "" {
		if strings.HasPrefix(b64, "data:") {
			return b64, nil
		}
		return "data:image/png;base64," + b64, nil
	}
	if u := strings.TrimSpace(r.URL); u != "" {
		return u, nil
	}
	return "", ErrEmptyResult
}

// Generator is the contract implemented by every image provider.
type Generator interface {
	Generate(ctx context.Context, req ProviderRequest) (Result, error)
	Edit(ctx context.Context, req ProviderRequest) (Result, error)
}
