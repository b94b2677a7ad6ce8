package domain

import (
	"strings"
	"time"

	"stylegen/internal/domain/jsoncfg"
)

// ImageStyle is a reusable description of a visual treatment.
type ImageStyle struct {
	ID                string
	Name              string
	Description       string
	StylePrompt       string
	StyleData         jsoncfg.Record
	ReferenceImageURL string
	PreviewImageURL   string
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s ImageStyle) Owner() string { return s.CreatedBy }

// HasStructuredData reports whether the style carries extracted attributes.
func (s ImageStyle) HasStructuredData() bool {
	return s.StyleData.Len() > 0 && !jsoncfg.Nested(s.StyleData).IsZero()
}

// FreeText returns the best free-text rendering of the style when no
// structured data is available.
func (s ImageStyle) FreeText() string {
	if v := strings.TrimSpace(s.StylePrompt); v != "" {
		return v
	}
	return strings.TrimSpace(s.Description)
}
