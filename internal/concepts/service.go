// Package concepts generates, revises, and stores marketing concept lists.
package concepts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"stylegen/internal/access"
	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/infra"
	"stylegen/internal/providers/prompt"
)

// PromptResolver picks the system prompt for a generation.
type PromptResolver interface {
	Resolve(ctx context.Context, p access.Principal, category domain.PromptCategory, id string) (string, error)
}

// ImageInliner turns stored image references into provider-reachable data URIs.
type ImageInliner interface {
	DataURI(ctx context.Context, ref, contentType string) (string, error)
}

type Service struct {
	repo      domain.ConceptListRepository
	assistant prompt.Assistant
	prompts   PromptResolver
	images    ImageInliner
	logger    infra.Logger
}

func NewService(repo domain.ConceptListRepository, assistant prompt.Assistant, prompts PromptResolver, images ImageInliner, logger infra.Logger) *Service {
	return &Service{
		repo:      repo,
		assistant: assistant,
		prompts:   prompts,
		images:    images,
		logger:    infra.Component(logger, "concepts"),
	}
}

// GenerateInput describes a one-shot concept generation.
type GenerateInput struct {
	CompanyName      string
	MarketingContent string
	Parameters       domain.ConceptParameters
	SystemPromptID   string
}

// Generate asks the assistant for a concept list and stores it.
func (s *Service) Generate(ctx context.Context, p access.Principal, in GenerateInput) (*domain.ConceptList, prompt.Meta, error) {
	if p.Anonymous() {
		return nil, prompt.Meta{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(in.CompanyName) == "" && strings.TrimSpace(in.MarketingContent) == "" {
		return nil, prompt.Meta{}, fmt.Errorf("%w: company name or marketing content is required", domain.ErrValidation)
	}
	system, err := s.prompts.Resolve(ctx, p, domain.PromptCategoryConceptGeneration, in.SystemPromptID)
	if err != nil {
		return nil, prompt.Meta{}, err
	}
	params := in.Parameters
	params.Count = prompt.ClampCount(params.Count, prompt.DefaultConceptCount)
	req := prompt.ConceptRequest{
		CompanyName:      in.CompanyName,
		MarketingContent: in.MarketingContent,
		SystemPrompt:     system,
		Parameters:       params,
	}
	if ref := strings.TrimSpace(params.ReferenceImageURL); ref != "" && s.images != nil {
		inlined, err := s.images.DataURI(ctx, ref, "")
		if err != nil {
			return nil, prompt.Meta{}, fmt.Errorf("%w: reference image: %v", domain.ErrValidation, err)
		}
		req.Parameters.ReferenceImageURL = inlined
	}

	set, err := s.assistant.GenerateConcepts(ctx, req)
	if err != nil {
		return nil, prompt.Meta{}, fmt.Errorf("%w: generate concepts: %v", domain.ErrProviderFailure, err)
	}
	list := &domain.ConceptList{
		ID:               uuid.NewString(),
		CompanyName:      strings.TrimSpace(in.CompanyName),
		MarketingContent: strings.TrimSpace(in.MarketingContent),
		Concepts:         set.Concepts,
		Parameters:       params,
		OwnerID:          p.UserID,
	}
	if err := s.repo.Create(ctx, list); err != nil {
		return nil, prompt.Meta{}, fmt.Errorf("create concept list: %w", err)
	}
	return list, set.Meta, nil
}

// Revise rewrites the whole list according to feedback. When the model output
// is unusable the stored list is left untouched and revised is false.
func (s *Service) Revise(ctx context.Context, p access.Principal, id, feedback string) (list *domain.ConceptList, revised bool, err error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, false, fmt.Errorf("%w: feedback is required", domain.ErrValidation)
	}
	list, err = s.Get(ctx, p, id)
	if err != nil {
		return nil, false, err
	}
	set, err := s.assistant.ReviseConcepts(ctx, prompt.ReviseRequest{
		CompanyName:      list.CompanyName,
		MarketingContent: list.MarketingContent,
		Concepts:         list.Concepts,
		Feedback:         feedback,
		Parameters:       list.Parameters,
	})
	if err != nil {
		if errors.Is(err, prompt.ErrUnparseable) {
			s.logger.Warn().Err(err).Str("concept_list_id", id).Msg("concepts: revision discarded")
			return list, false, nil
		}
		return nil, false, fmt.Errorf("%w: revise concepts: %v", domain.ErrProviderFailure, err)
	}
	if len(set.Concepts) == 0 {
		return list, false, nil
	}
	list.Concepts = set.Concepts
	if err := s.repo.Update(ctx, list); err != nil {
		return nil, false, fmt.Errorf("update concept list: %w", err)
	}
	return list, true, nil
}

// Input is the writable part of a concept list.
type Input struct {
	CompanyName      string
	MarketingContent string
	Concepts         []jsoncfg.Record
	Parameters       domain.ConceptParameters
}

func (s *Service) Create(ctx context.Context, p access.Principal, in Input) (*domain.ConceptList, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	list := &domain.ConceptList{
		ID:               uuid.NewString(),
		CompanyName:      strings.TrimSpace(in.CompanyName),
		MarketingContent: strings.TrimSpace(in.MarketingContent),
		Concepts:         nonEmpty(in.Concepts),
		Parameters:       in.Parameters,
		OwnerID:          p.UserID,
	}
	if err := s.repo.Create(ctx, list); err != nil {
		return nil, fmt.Errorf("create concept list: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*domain.ConceptList, error) {
	return access.Load(ctx, p, func(ctx context.Context) (*domain.ConceptList, error) {
		return s.repo.Get(ctx, id)
	})
}

func (s *Service) List(ctx context.Context, p access.Principal) ([]domain.ConceptList, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.List(ctx, access.OwnerScope(p))
}

func (s *Service) Update(ctx context.Context, p access.Principal, id string, in Input) (*domain.ConceptList, error) {
	list, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	list.CompanyName = strings.TrimSpace(in.CompanyName)
	list.MarketingContent = strings.TrimSpace(in.MarketingContent)
	list.Concepts = nonEmpty(in.Concepts)
	list.Parameters = in.Parameters
	if err := s.repo.Update(ctx, list); err != nil {
		return nil, fmt.Errorf("update concept list: %w", err)
	}
	return list, nil
}

func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// UpdateItem replaces the concept at index.
func (s *Service) UpdateItem(ctx context.Context, p access.Principal, id string, index int, concept jsoncfg.Record) (*domain.ConceptList, error) {
	if concept.Len() == 0 || jsoncfg.Nested(concept).IsZero() {
		return nil, fmt.Errorf("%w: concept is empty", domain.ErrValidation)
	}
	return s.editItem(ctx, p, id, index, func(list []jsoncfg.Record) []jsoncfg.Record {
		list[index] = concept
		return list
	})
}

// DeleteItem removes the concept at index.
func (s *Service) DeleteItem(ctx context.Context, p access.Principal, id string, index int) (*domain.ConceptList, error) {
	return s.editItem(ctx, p, id, index, func(list []jsoncfg.Record) []jsoncfg.Record {
		return append(list[:index], list[index+1:]...)
	})
}

func (s *Service) editItem(ctx context.Context, p access.Principal, id string, index int, edit func([]jsoncfg.Record) []jsoncfg.Record) (*domain.ConceptList, error) {
	list, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list.Concepts) {
		return nil, fmt.Errorf("%w: concept index %d out of range", domain.ErrNotFound, index)
	}
	list.Concepts = edit(jsoncfg.CloneRecords(list.Concepts))
	if err := s.repo.Update(ctx, list); err != nil {
		return nil, fmt.Errorf("update concept list: %w", err)
	}
	return list, nil
}

func nonEmpty(in []jsoncfg.Record) []jsoncfg.Record {
	out := make([]jsoncfg.Record, 0, len(in))
	for _, c := range in {
		if c.Len() > 0 && !jsoncfg.Nested(c).IsZero() {
			out = append(out, c)
		}
	}
	return out
}
