package domain

import (
	"time"

	"stylegen/internal/domain/jsoncfg"
)

// ConceptParameters records how a concept list was generated.
type ConceptParameters struct {
	Count             int     `json:"count"`
	Temperature       float64 `json:"temperature"`
	Metaphor          int     `json:"metaphor"`
	Complexity        int     `json:"complexity"`
	Locale            string  `json:"locale,omitempty"`
	ReferenceImageURL string  `json:"referenceImageUrl,omitempty"`
}

// ConceptList is an ordered list of marketing concepts for one company.
type ConceptList struct {
	ID               string
	CompanyName      string
	MarketingContent string
	Concepts         []jsoncfg.Record
	Parameters       ConceptParameters
	OwnerID          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c ConceptList) Owner() string { return c.OwnerID }
