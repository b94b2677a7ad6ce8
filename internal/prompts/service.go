// Package prompts manages the reusable system prompts that steer style
// extraction and concept generation.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"stylegen/internal/access"
	"stylegen/internal/domain"
	providerprompt "stylegen/internal/providers/prompt"
)

const defaultCacheTTL = 5 * time.Minute

// Service wraps the prompt repository with the access policy and a cache of
// resolved defaults.
type Service struct {
	repo     domain.SystemPromptRepository
	defaults *cache.Cache
}

func NewService(repo domain.SystemPromptRepository) *Service {
	return &Service{repo: repo, defaults: cache.New(defaultCacheTTL, 10*time.Minute)}
}

// Input is the writable part of a system prompt.
type Input struct {
	Name      string
	Category  domain.PromptCategory
	Content   string
	IsDefault bool
	// Global prompts are visible to every user; only admins create them.
	Global bool
}

func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	case strings.TrimSpace(in.Content) == "":
		return fmt.Errorf("%w: content is required", domain.ErrValidation)
	case !in.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", domain.ErrValidation, in.Category)
	}
	return nil
}

// List returns the prompts the principal can see: global ones plus their own.
func (s *Service) List(ctx context.Context, p access.Principal, category domain.PromptCategory) ([]domain.SystemPrompt, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, category)
	}
	return s.repo.List(ctx, access.OwnerScope(p), category)
}

func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*domain.SystemPrompt, error) {
	return access.LoadReadable(ctx, p, func(ctx context.Context) (*domain.SystemPrompt, error) {
		return s.repo.Get(ctx, id)
	})
}

func (s *Service) Create(ctx context.Context, p access.Principal, in Input) (*domain.SystemPrompt, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	prompt := &domain.SystemPrompt{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Category:  in.Category,
		Content:   strings.TrimSpace(in.Content),
		IsDefault: in.IsDefault,
	}
	if in.Global {
		if err := access.RequireAdmin(p); err != nil {
			return nil, err
		}
	} else {
		owner := p.UserID
		prompt.OwnerID = &owner
	}
	if err := s.repo.Create(ctx, prompt); err != nil {
		return nil, fmt.Errorf("create system prompt: %w", err)
	}
	s.defaults.Flush()
	return prompt, nil
}

func (s *Service) Update(ctx context.Context, p access.Principal, id string, in Input) (*domain.SystemPrompt, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	prompt, err := access.Load(ctx, p, func(ctx context.Context) (*domain.SystemPrompt, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	prompt.Name = strings.TrimSpace(in.Name)
	prompt.Category = in.Category
	prompt.Content = strings.TrimSpace(in.Content)
	prompt.IsDefault = in.IsDefault
	if err := s.repo.Update(ctx, prompt); err != nil {
		return nil, fmt.Errorf("update system prompt: %w", err)
	}
	s.defaults.Flush()
	return prompt, nil
}

func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if _, err := access.Load(ctx, p, func(ctx context.Context) (*domain.SystemPrompt, error) {
		return s.repo.Get(ctx, id)
	}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.defaults.Flush()
	return nil
}

// Resolve returns the prompt text to use for a category. An explicit id wins;
// otherwise the principal's default, the global default, and finally the
// built-in text apply in that order.
func (s *Service) Resolve(ctx context.Context, p access.Principal, category domain.PromptCategory, id string) (string, error) {
	if id = strings.TrimSpace(id); id != "" {
		prompt, err := s.Get(ctx, p, id)
		if err != nil {
			return "", err
		}
		if prompt.Category != category {
			return "", fmt.Errorf("%w: prompt %s is not a %s prompt", domain.ErrValidation, id, category)
		}
		return prompt.Content, nil
	}

	key := p.UserID + "|" + string(category)
	if v, ok := s.defaults.Get(key); ok {
		return v.(string), nil
	}
	content := builtin(category)
	prompt, err := s.repo.Default(ctx, p.UserID, category)
	switch {
	case err == nil:
		content = prompt.Content
	case !errors.Is(err, domain.ErrNotFound):
		return "", fmt.Errorf("load default prompt: %w", err)
	}
	s.defaults.SetDefault(key, content)
	return content, nil
}

func builtin(category domain.PromptCategory) string {
	if category == domain.PromptCategoryConceptGeneration {
		return providerprompt.DefaultConceptPrompt
	}
	return providerprompt.DefaultExtractionPrompt
}
