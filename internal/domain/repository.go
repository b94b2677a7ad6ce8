package domain

import (
	"context"
	"time"
)

// Repository methods that take an ownerID treat "" as "every owner". Callers
// pass "" only after the access policy has established an admin principal.

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	SetActive(ctx context.Context, id string, active bool) (*User, error)
	SetRole(ctx context.Context, id string, role UserRole) (*User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PreferencesRepository stores per-user UI preferences. Get returns an empty
// document for users that never saved one.
type PreferencesRepository interface {
	Get(ctx context.Context, userID string) (*UserPreferences, error)
	Put(ctx context.Context, prefs *UserPreferences) error
}

// StyleRepository persists image styles.
type StyleRepository interface {
	Create(ctx context.Context, style *ImageStyle) error
	Get(ctx context.Context, id string) (*ImageStyle, error)
	Update(ctx context.Context, style *ImageStyle) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string) ([]ImageStyle, error)
}

// SessionRepository persists project sessions. Deleting a session removes its
// jobs and images.
type SessionRepository interface {
	Create(ctx context.Context, session *ProjectSession) error
	Get(ctx context.Context, id string) (*ProjectSession, error)
	Update(ctx context.Context, session *ProjectSession) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string) ([]ProjectSession, error)
	// DeleteTemporary removes temporary sessions created before the cutoff.
	// A zero cutoff removes all of them.
	DeleteTemporary(ctx context.Context, ownerID string, before time.Time) (int, error)
}

// JobRepository persists generation jobs. Update enforces the job state
// machine: updates against terminal jobs fail with ErrJobTerminal and progress
// never decreases.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	Get(ctx context.Context, id string) (*GenerationJob, error)
	List(ctx context.Context, filter JobFilter) ([]GenerationJob, error)
	Update(ctx context.Context, id string, update JobUpdate) (*GenerationJob, error)
	// FailStale marks pending or running jobs untouched since the cutoff as failed.
	FailStale(ctx context.Context, before time.Time, message string) (int, error)
}

// ImageUpdate patches a generated image after the provider call resolves.
type ImageUpdate struct {
	Status       ImageStatus
	ImageURL     string
	ErrorMessage string
}

// ImageRepository persists generated images.
type ImageRepository interface {
	Create(ctx context.Context, img *GeneratedImage) error
	Get(ctx context.Context, id string) (*GeneratedImage, error)
	Update(ctx context.Context, id string, update ImageUpdate) (*GeneratedImage, error)
	Delete(ctx context.Context, id string) error
	ListByJob(ctx context.Context, jobID string) ([]GeneratedImage, error)
	List(ctx context.Context, filter ImageFilter) ([]GeneratedImage, error)
}

// SystemPromptRepository persists reusable prompts. Saving a default prompt
// clears the default flag on the other prompts of the same owner and category.
type SystemPromptRepository interface {
	Create(ctx context.Context, prompt *SystemPrompt) error
	Get(ctx context.Context, id string) (*SystemPrompt, error)
	Update(ctx context.Context, prompt *SystemPrompt) error
	Delete(ctx context.Context, id string) error
	// List returns global prompts plus those owned by ownerID. An empty
	// category matches every category.
	List(ctx context.Context, ownerID string, category PromptCategory) ([]SystemPrompt, error)
	// Default returns the owner's default for the category, falling back to
	// the global default.
	Default(ctx context.Context, ownerID string, category PromptCategory) (*SystemPrompt, error)
}

// ConceptListRepository persists concept lists.
type ConceptListRepository interface {
	Create(ctx context.Context, list *ConceptList) error
	Get(ctx context.Context, id string) (*ConceptList, error)
	Update(ctx context.Context, list *ConceptList) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string) ([]ConceptList, error)
}

// Repositories bundles every store the services depend on.
type Repositories struct {
	Users        UserRepository
	Preferences  PreferencesRepository
	Styles       StyleRepository
	Sessions     SessionRepository
	Jobs         JobRepository
	Images       ImageRepository
	Prompts      SystemPromptRepository
	ConceptLists ConceptListRepository
}
