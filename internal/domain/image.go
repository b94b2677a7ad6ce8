package domain

import "time"

// ImageStatus enumerates the lifecycle of one generated image.
type ImageStatus string

const (
	ImageStatusGenerating ImageStatus = "generating"
	ImageStatusCompleted  ImageStatus = "completed"
	ImageStatusFailed     ImageStatus = "failed"
)

// GeneratedImage is a single provider result. JobID is nil for orphaned images.
type GeneratedImage struct {
	ID                      string
	JobID                   *string
	OwnerID                 string
	SessionID               *string
	VisualConcept           string
	ImageURL                string
	Prompt                  string
	Status                  ImageStatus
	ErrorMessage            string
	SourceImageID           *string
	RegenerationInstruction string
	Model                   string
	Size                    string
	Quality                 string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (i GeneratedImage) Owner() string { return i.OwnerID }

// ImageFilter narrows image listings. An empty OwnerID lists every owner.
type ImageFilter struct {
	OwnerID   string
	SessionID string
	Limit     int
}
