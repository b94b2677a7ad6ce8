package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GenerationSettings is the settings payload stored on every generation job.
type GenerationSettings struct {
	Model        string `json:"model"`
	Quality      string `json:"quality,omitempty"`
	Size         string `json:"size,omitempty"`
	Variations   int    `json:"variations"`
	Transparency bool   `json:"transparency"`
	RenderText   bool   `json:"renderText"`
}

const (
	// DefaultVariations is applied when a request omits the variation count.
	DefaultVariations = 1
	// MaxVariations caps the number of images produced per concept.
	MaxVariations = 10
	// MaxConceptsPerJob caps the number of concepts accepted by a single batch.
	MaxConceptsPerJob = 50
)

// Normalize trims free-form values and fills server defaults.
func (s *GenerationSettings) Normalize() {
	if s == nil {
		return
	}
	s.Model = strings.ToLower(strings.TrimSpace(s.Model))
	s.Quality = strings.ToLower(strings.TrimSpace(s.Quality))
	s.Size = strings.ToLower(strings.TrimSpace(s.Size))
	if s.Variations <= 0 {
		s.Variations = DefaultVariations
	}
}

// Validate checks the limits that do not depend on the selected model.
// Model-specific legality is decided by the capability table.
func (s GenerationSettings) Validate() error {
	if s.Variations < 1 || s.Variations > MaxVariations {
		return fmt.Errorf("variations must be between 1 and %d", MaxVariations)
	}
	return nil
}

// Merge returns a copy of s with every non-zero field of override applied.
func (s GenerationSettings) Merge(override GenerationSettings) GenerationSettings {
	out := s
	if v := strings.TrimSpace(override.Model); v != "" {
		out.Model = v
	}
	if v := strings.TrimSpace(override.Quality); v != "" {
		out.Quality = v
	}
	if v := strings.TrimSpace(override.Size); v != "" {
		out.Size = v
	}
	if override.Variations > 0 {
		out.Variations = override.Variations
	}
	if override.Transparency {
		out.Transparency = true
	}
	if override.RenderText {
		out.RenderText = true
	}
	return out
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
