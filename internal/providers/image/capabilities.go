package image

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

const (
	ModelGPTImage1 = "gpt-image-1"
	ModelDallE3    = "dall-e-3"
	ModelDallE2    = "dall-e-2"

	DefaultModel = ModelGPTImage1
)

// Capabilities describes what a model accepts.
type Capabilities struct {
	Model                string
	Qualities            []string
	DefaultQuality       string
	QualityAliases       map[string]string
	Sizes                []string
	DefaultSize          string
	SupportsEditing      bool
	SupportsTransparency bool
}

// SupportsQuality reports whether the model takes a quality parameter at all.
func (c Capabilities) SupportsQuality() bool {
	return len(c.Qualities) > 0
}

var capabilityTable = map[string]Capabilities{
	ModelGPTImage1: {
		Model:                ModelGPTImage1,
		Qualities:            []string{"low", "medium", "high", "auto"},
		DefaultQuality:       "auto",
		QualityAliases:       map[string]string{"hd": "high", "standard": "medium"},
		Sizes:                []string{"1024x1024", "1024x1536", "1536x1024", "auto"},
		DefaultSize:          "1024x1024",
		SupportsEditing:      true,
		SupportsTransparency: true,
	},
	ModelDallE3: {
		Model:          ModelDallE3,
		Qualities:      []string{"standard", "hd"},
		DefaultQuality: "standard",
		Sizes:          []string{"1024x1024", "1792x1024", "1024x1792"},
		DefaultSize:    "1024x1024",
	},
	ModelDallE2: {
		Model:           ModelDallE2,
		Sizes:           []string{"256x256", "512x512", "1024x1024"},
		DefaultSize:     "1024x1024",
		SupportsEditing: true,
	},
}

// Lookup returns the capabilities of a model.
func Lookup(model string) (Capabilities, bool) {
	c, ok := capabilityTable[strings.ToLower(strings.TrimSpace(model))]
	return c, ok
}

// Models lists the known model ids in a stable order.
func Models() []string {
	out := make([]string, 0, len(capabilityTable))
	for m := range capabilityTable {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// BuildRequest validates settings against the capability table and returns
// the provider request for the given operation. It is the only place request
// parameters are derived, for fresh generations and edits alike.
//
// The one silent correction: a transparent fresh generation on a model
// without transparency support is moved to gpt-image-1.
func BuildRequest(kind OperationKind, settings jsoncfg.GenerationSettings) (ProviderRequest, error) {
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return ProviderRequest{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	model := settings.Model
	if model == "" {
		model = DefaultModel
	}
	caps, ok := Lookup(model)
	if !ok {
		return ProviderRequest{}, invalid("unsupported model %q (supported: %s)", model, strings.Join(Models(), ", "))
	}

	req := ProviderRequest{Kind: kind, RequestedModel: caps.Model}
	if settings.Transparency && !caps.SupportsTransparency {
		if kind != OperationGenerate {
			return ProviderRequest{}, invalid("%s does not support transparent backgrounds", caps.Model)
		}
		caps = capabilityTable[ModelGPTImage1]
		req.ModelSwitched = true
	}
	req.Model = caps.Model

	if kind == OperationEdit && !caps.SupportsEditing {
		return ProviderRequest{}, invalid("%s does not support image editing", caps.Model)
	}

	size := settings.Size
	if size == "" {
		size = caps.DefaultSize
	}
	if !slices.Contains(caps.Sizes, size) {
		return ProviderRequest{}, invalid("size %q is not supported by %s (supported: %s)", size, caps.Model, strings.Join(caps.Sizes, ", "))
	}
	req.Size = size

	quality, err := resolveQuality(caps, settings.Quality)
	if err != nil {
		return ProviderRequest{}, err
	}
	req.Quality = quality

	if settings.Transparency {
		req.Background = "transparent"
	}
	return req, nil
}

func resolveQuality(caps Capabilities, quality string) (string, error) {
	if !caps.SupportsQuality() {
		// "standard" is what every client sends by default; treat it as unset.
		if quality == "" || quality == "standard" {
			return "", nil
		}
		return "", invalid("%s does not support quality settings (got %q)", caps.Model, quality)
	}
	if quality == "" {
		return caps.DefaultQuality, nil
	}
	if alias, ok := caps.QualityAliases[quality]; ok {
		quality = alias
	}
	if !slices.Contains(caps.Qualities, quality) {
		return "", invalid("quality %q is not supported by %s (supported: %s)", quality, caps.Model, strings.Join(caps.Qualities, ", "))
	}
	return quality, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}
