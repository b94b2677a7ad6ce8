// Package styles manages image styles and the language-model workflows that
// create and adjust them.
package styles

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"stylegen/internal/access"
	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/imageconv"
	"stylegen/internal/infra"
	"stylegen/internal/providers/image"
	"stylegen/internal/providers/prompt"
)

// Storage persists uploaded reference images.
type Storage interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// PromptResolver picks the system prompt for an extraction.
type PromptResolver interface {
	Resolve(ctx context.Context, p access.Principal, category domain.PromptCategory, id string) (string, error)
}

// ImageInliner turns stored image references into provider-reachable data URIs.
type ImageInliner interface {
	DataURI(ctx context.Context, ref, contentType string) (string, error)
}

type Deps struct {
	Repo      domain.StyleRepository
	Assistant prompt.Assistant
	Generator image.Generator
	Prompts   PromptResolver
	Images    ImageInliner
	Storage   Storage
	Logger    infra.Logger
}

type Service struct {
	repo      domain.StyleRepository
	assistant prompt.Assistant
	generator image.Generator
	prompts   PromptResolver
	images    ImageInliner
	storage   Storage
	logger    infra.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Repo,
		assistant: d.Assistant,
		generator: d.Generator,
		prompts:   d.Prompts,
		images:    d.Images,
		storage:   d.Storage,
		logger:    infra.Component(d.Logger, "styles"),
	}
}

// Input is the writable part of a style.
type Input struct {
	Name              string
	Description       string
	StylePrompt       string
	StyleData         jsoncfg.Record
	ReferenceImageURL string
	PreviewImageURL   string
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.StylePrompt) == "" && strings.TrimSpace(in.Description) == "" && in.StyleData.Len() == 0 {
		return fmt.Errorf("%w: style prompt, description, or style data is required", domain.ErrValidation)
	}
	return nil
}

func (s *Service) List(ctx context.Context, p access.Principal) ([]domain.ImageStyle, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.List(ctx, access.OwnerScope(p))
}

func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*domain.ImageStyle, error) {
	return access.Load(ctx, p, func(ctx context.Context) (*domain.ImageStyle, error) {
		return s.repo.Get(ctx, id)
	})
}

func (s *Service) Create(ctx context.Context, p access.Principal, in Input) (*domain.ImageStyle, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	style := &domain.ImageStyle{ID: uuid.NewString(), CreatedBy: p.UserID}
	apply(style, in)
	if err := s.repo.Create(ctx, style); err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	return style, nil
}

func (s *Service) Update(ctx context.Context, p access.Principal, id string, in Input) (*domain.ImageStyle, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	style, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	apply(style, in)
	if err := s.repo.Update(ctx, style); err != nil {
		return nil, fmt.Errorf("update style: %w", err)
	}
	return style, nil
}

func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func apply(style *domain.ImageStyle, in Input) {
	style.Name = strings.TrimSpace(in.Name)
	style.Description = strings.TrimSpace(in.Description)
	style.StylePrompt = strings.TrimSpace(in.StylePrompt)
	style.StyleData = in.StyleData.Clone()
	style.ReferenceImageURL = strings.TrimSpace(in.ReferenceImageURL)
	style.PreviewImageURL = strings.TrimSpace(in.PreviewImageURL)
	if style.StylePrompt == "" && style.HasStructuredData() {
		style.StylePrompt = image.BuildStyleDescription(style.StyleData)
	}
}

// UploadReference stores a reference image and returns its public URL.
// Formats other than PNG and JPEG are converted to PNG first.
func (s *Service) UploadReference(ctx context.Context, p access.Principal, data []byte) (string, error) {
	if p.Anonymous() {
		return "", domain.ErrUnauthorized
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image is empty", domain.ErrValidation)
	}
	normalized, format, err := imageconv.NormalizeUpload(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	key := path.Join("references", p.UserID, uuid.NewString()+format.Extension())
	stored, err := s.storage.Write(ctx, key, normalized)
	if err != nil {
		return "", fmt.Errorf("store reference image: %w", err)
	}
	s.logger.Debug().Str("key", stored).Str("format", string(format)).Msg("styles: reference stored")
	return s.storage.URL(stored), nil
}

// ExtractInput carries the three extraction prompts. An empty extraction
// prompt resolves to the caller's default system prompt.
type ExtractInput struct {
	ImageURL          string
	ExtractionPrompt  string
	CompositionPrompt string
	ConceptPrompt     string
	SystemPromptID    string
}

func (s *Service) Extract(ctx context.Context, p access.Principal, in ExtractInput) (*prompt.StyleExtraction, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	ref := strings.TrimSpace(in.ImageURL)
	if ref == "" {
		return nil, fmt.Errorf("%w: image url is required", domain.ErrValidation)
	}
	extraction := strings.TrimSpace(in.ExtractionPrompt)
	if extraction == "" {
		resolved, err := s.prompts.Resolve(ctx, p, domain.PromptCategoryStyleExtraction, in.SystemPromptID)
		if err != nil {
			return nil, err
		}
		extraction = resolved
	}
	inlined, err := s.images.DataURI(ctx, ref, "")
	if err != nil {
		return nil, fmt.Errorf("%w: reference image: %v", domain.ErrValidation, err)
	}
	res, err := s.assistant.ExtractStyle(ctx, prompt.ExtractStyleRequest{
		ImageURL:          inlined,
		ExtractionPrompt:  extraction,
		CompositionPrompt: in.CompositionPrompt,
		ConceptPrompt:     in.ConceptPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: extract style: %v", domain.ErrProviderFailure, err)
	}
	return res, nil
}

// PreviewInput describes a single synchronous preview render. When StyleID is
// set the rendered URL is saved as that style's preview.
type PreviewInput struct {
	StyleID     string
	StyleData   jsoncfg.Record
	StylePrompt string
	Concept     string
	Settings    jsoncfg.GenerationSettings
}

func (s *Service) Preview(ctx context.Context, p access.Principal, in PreviewInput) (string, error) {
	if p.Anonymous() {
		return "", domain.ErrUnauthorized
	}
	var target *domain.ImageStyle
	if in.StyleID != "" {
		style, err := s.Get(ctx, p, in.StyleID)
		if err != nil {
			return "", err
		}
		target = style
	}

	styleText := strings.TrimSpace(in.StylePrompt)
	switch {
	case in.StyleData.Len() > 0:
		styleText = image.BuildStyleDescription(in.StyleData)
	case styleText == "" && target != nil:
		styleText = image.StyleText(*target)
	}
	concept := strings.TrimSpace(in.Concept)
	if concept == "" {
		concept = prompt.PlaceholderConcept
	}

	settings := in.Settings
	settings.Variations = 1
	req, err := image.BuildRequest(image.OperationGenerate, settings)
	if err != nil {
		return "", err
	}
	req.Prompt = image.ComposePrompt(image.PromptInput{
		StyleDescription: styleText,
		Concept:          concept,
		Transparency:     settings.Transparency,
		RenderText:       settings.RenderText,
		Model:            req.Model,
	})
	res, err := s.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: preview: %v", domain.ErrProviderFailure, err)
	}
	url, err := res.ImageURL()
	if err != nil {
		return "", fmt.Errorf("%w: preview: %v", domain.ErrProviderFailure, err)
	}
	if target != nil {
		target.PreviewImageURL = url
		if err := s.repo.Update(ctx, target); err != nil {
			return "", fmt.Errorf("save preview: %w", err)
		}
	}
	return url, nil
}

// RefineInput adjusts a style by feedback. A stored style is updated only when
// the model produced a usable record.
type RefineInput struct {
	StyleID   string
	StyleData jsoncfg.Record
	Feedback  string
}

func (s *Service) Refine(ctx context.Context, p access.Principal, in RefineInput) (*prompt.StyleRefinement, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(in.Feedback) == "" {
		return nil, fmt.Errorf("%w: feedback is required", domain.ErrValidation)
	}
	var target *domain.ImageStyle
	data := in.StyleData
	if in.StyleID != "" {
		style, err := s.Get(ctx, p, in.StyleID)
		if err != nil {
			return nil, err
		}
		target = style
		if data.Len() == 0 {
			data = style.StyleData
		}
	}
	if data.Len() == 0 {
		return nil, fmt.Errorf("%w: style data is required", domain.ErrValidation)
	}
	res, err := s.assistant.RefineStyle(ctx, prompt.RefineStyleRequest{StyleData: data, Feedback: in.Feedback})
	if err != nil {
		return nil, fmt.Errorf("%w: refine style: %v", domain.ErrProviderFailure, err)
	}
	if target != nil && res.Changed {
		target.StyleData = res.StyleData.Clone()
		target.StylePrompt = image.BuildStyleDescription(target.StyleData)
		if err := s.repo.Update(ctx, target); err != nil {
			return nil, fmt.Errorf("update style: %w", err)
		}
	}
	return res, nil
}

func (s *Service) TestConcepts(ctx context.Context, p access.Principal, data jsoncfg.Record, count int, locale string) (*prompt.TestConcepts, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	res, err := s.assistant.GenerateTestConcepts(ctx, prompt.TestConceptsRequest{
		StyleData: data,
		Count:     prompt.ClampCount(count, prompt.DefaultTestConceptCount),
		Locale:    locale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: test concepts: %v", domain.ErrProviderFailure, err)
	}
	return res, nil
}

func (s *Service) NewConcept(ctx context.Context, p access.Principal, data jsoncfg.Record, existing []string, hint, locale string) (*prompt.NewConcept, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	res, err := s.assistant.GenerateNewConcept(ctx, prompt.NewConceptRequest{
		StyleData: data,
		Existing:  existing,
		Hint:      hint,
		Locale:    locale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: new concept: %v", domain.ErrProviderFailure, err)
	}
	return res, nil
}
