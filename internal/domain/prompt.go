package domain

import "time"

// PromptCategory enumerates the reusable system prompt kinds.
type PromptCategory string

const (
	PromptCategoryStyleExtraction   PromptCategory = "style_extraction"
	PromptCategoryConceptGeneration PromptCategory = "concept_generation"
)

// Valid reports whether c is a known category.
func (c PromptCategory) Valid() bool {
	return c == PromptCategoryStyleExtraction || c == PromptCategoryConceptGeneration
}

// SystemPrompt is a named prompt template. A nil OwnerID marks a global
// prompt visible to every user.
type SystemPrompt struct {
	ID        string
	Name      string
	Category  PromptCategory
	Content   string
	IsDefault bool
	OwnerID   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Owner returns the owning user id, or "" for global prompts.
func (p SystemPrompt) Owner() string {
	if p.OwnerID == nil {
		return ""
	}
	return *p.OwnerID
}
