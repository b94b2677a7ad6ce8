package handlers

import (
	"time"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

type userDTO struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toUser(u *domain.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

type styleDTO struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	StylePrompt       string         `json:"stylePrompt"`
	StyleData         jsoncfg.Record `json:"styleData"`
	ReferenceImageURL string         `json:"referenceImageUrl,omitempty"`
	PreviewImageURL   string         `json:"previewImageUrl,omitempty"`
	CreatedBy         string         `json:"createdBy"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func toStyle(s *domain.ImageStyle) styleDTO {
	return styleDTO{
		ID:                s.ID,
		Name:              s.Name,
		Description:       s.Description,
		StylePrompt:       s.StylePrompt,
		StyleData:         s.StyleData,
		ReferenceImageURL: s.ReferenceImageURL,
		PreviewImageURL:   s.PreviewImageURL,
		CreatedBy:         s.CreatedBy,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

type jobDTO struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	Kind           string                     `json:"kind"`
	SessionID      *string                    `json:"sessionId,omitempty"`
	StyleID        *string                    `json:"styleId,omitempty"`
	Concepts       []string                   `json:"concepts"`
	Settings       jsoncfg.GenerationSettings `json:"settings"`
	Status         string                     `json:"status"`
	Progress       int                        `json:"progress"`
	Total          int                        `json:"total"`
	CompletedCount int                        `json:"completedCount"`
	FailedCount    int                        `json:"failedCount"`
	ErrorMessage   string                     `json:"errorMessage,omitempty"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
}

func toJob(j *domain.GenerationJob) jobDTO {
	return jobDTO{
		ID:             j.ID,
		Name:           j.Name,
		Kind:           string(j.Kind),
		SessionID:      j.SessionID,
		StyleID:        j.StyleID,
		Concepts:       j.Concepts,
		Settings:       j.Settings,
		Status:         string(j.Status),
		Progress:       j.Progress,
		Total:          j.Total(),
		CompletedCount: j.CompletedCount,
		FailedCount:    j.FailedCount,
		ErrorMessage:   j.ErrorMessage,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

type imageDTO struct {
	ID                      string    `json:"id"`
	JobID                   *string   `json:"jobId,omitempty"`
	SessionID               *string   `json:"sessionId,omitempty"`
	VisualConcept           string    `json:"visualConcept"`
	ImageURL                string    `json:"imageUrl,omitempty"`
	Prompt                  string    `json:"prompt"`
	Status                  string    `json:"status"`
	ErrorMessage            string    `json:"errorMessage,omitempty"`
	SourceImageID           *string   `json:"sourceImageId,omitempty"`
	RegenerationInstruction string    `json:"regenerationInstruction,omitempty"`
	Model                   string    `json:"model"`
	Size                    string    `json:"size"`
	Quality                 string    `json:"quality,omitempty"`
	CreatedAt               time.Time `json:"createdAt"`
}

func toImage(i *domain.GeneratedImage) imageDTO {
	return imageDTO{
		ID:                      i.ID,
		JobID:                   i.JobID,
		SessionID:               i.SessionID,
		VisualConcept:           i.VisualConcept,
		ImageURL:                i.ImageURL,
		Prompt:                  i.Prompt,
		Status:                  string(i.Status),
		ErrorMessage:            i.ErrorMessage,
		SourceImageID:           i.SourceImageID,
		RegenerationInstruction: i.RegenerationInstruction,
		Model:                   i.Model,
		Size:                    i.Size,
		Quality:                 i.Quality,
		CreatedAt:               i.CreatedAt,
	}
}

func toImages(in []domain.GeneratedImage) []imageDTO {
	out := make([]imageDTO, 0, len(in))
	for i := range in {
		out = append(out, toImage(&in[i]))
	}
	return out
}

type sessionDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsTemporary bool      `json:"isTemporary"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toSession(s *domain.ProjectSession) sessionDTO {
	return sessionDTO{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		IsTemporary: s.IsTemporary,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type systemPromptDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	IsDefault bool      `json:"isDefault"`
	Global    bool      `json:"global"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toSystemPrompt(p *domain.SystemPrompt) systemPromptDTO {
	return systemPromptDTO{
		ID:        p.ID,
		Name:      p.Name,
		Category:  string(p.Category),
		Content:   p.Content,
		IsDefault: p.IsDefault,
		Global:    p.OwnerID == nil,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type conceptListDTO struct {
	ID               string                   `json:"id"`
	CompanyName      string                   `json:"companyName"`
	MarketingContent string                   `json:"marketingContent"`
	Concepts         []jsoncfg.Record         `json:"concepts"`
	Parameters       domain.ConceptParameters `json:"parameters"`
	CreatedAt        time.Time                `json:"createdAt"`
	UpdatedAt        time.Time                `json:"updatedAt"`
}

func toConceptList(c *domain.ConceptList) conceptListDTO {
	list := c.Concepts
	if list == nil {
		list = []jsoncfg.Record{}
	}
	return conceptListDTO{
		ID:               c.ID,
		CompanyName:      c.CompanyName,
		MarketingContent: c.MarketingContent,
		Concepts:         list,
		Parameters:       c.Parameters,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
