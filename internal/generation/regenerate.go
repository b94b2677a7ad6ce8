package generation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/imageconv"
	"stylegen/internal/providers/image"
)

// RegenerateRequest derives new images from an existing one. Source must
// already be authorized for OwnerID. At least one of Instruction or Settings
// is required.
type RegenerateRequest struct {
	Name                   string
	OwnerID                string
	Source                 *domain.GeneratedImage
	Instruction            string
	Settings               *jsoncfg.GenerationSettings
	UseOriginalAsReference bool
}

// StartRegeneration validates the request, records a pending job, and runs it
// in the background. Reference regenerations edit the source image; otherwise
// a fresh image is generated from the source prompt plus the instruction.
func (r *Runner) StartRegeneration(ctx context.Context, req RegenerateRequest) (*domain.GenerationJob, error) {
	if r.isStopping() {
		return nil, ErrShuttingDown
	}
	if req.Source == nil {
		return nil, fmt.Errorf("%w: source image is required", domain.ErrValidation)
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" && req.Settings == nil {
		return nil, fmt.Errorf("%w: an instruction or settings are required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(instruction) > image.MaxPromptLength {
		return nil, fmt.Errorf("%w: instruction exceeds %d characters", domain.ErrValidation, image.MaxPromptLength)
	}
	src := req.Source
	if src.Status != domain.ImageStatusCompleted || strings.TrimSpace(src.ImageURL) == "" {
		return nil, fmt.Errorf("%w: source image has no completed result", domain.ErrValidation)
	}

	settings := jsoncfg.GenerationSettings{Model: src.Model, Size: src.Size, Quality: src.Quality}
	if req.Settings != nil {
		settings = settings.Merge(*req.Settings)
	}
	settings.Normalize()

	kind := image.OperationGenerate
	prompt := image.RegenerationPrompt(src.Prompt, instruction)
	if req.UseOriginalAsReference {
		kind = image.OperationEdit
		prompt = image.EditPrompt(instruction)
		if r.fetcher == nil {
			return nil, errors.New("generation: no image fetcher configured for edits")
		}
	}
	preq, err := image.BuildRequest(kind, settings)
	if err != nil {
		return nil, err
	}
	settings.Model = preq.Model

	concept := strings.TrimSpace(src.VisualConcept)
	if concept == "" {
		concept = "regeneration"
	}
	job := &domain.GenerationJob{
		ID:        uuid.NewString(),
		Name:      regenerationName(req.Name, concept),
		Kind:      domain.JobKindRegeneration,
		OwnerID:   req.OwnerID,
		SessionID: src.SessionID,
		Concepts:  []string{concept},
		Settings:  settings,
		Status:    domain.JobStatusPending,
	}
	if err := r.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	sourceID := src.ID
	units := make([]unit, 0, settings.Variations)
	for v := 1; v <= settings.Variations; v++ {
		units = append(units, unit{
			concept:   concept,
			variation: v,
			prompt:    prompt,
			request:   preq,
			sourceID:  &sourceID,
			edit:      instruction,
		})
	}

	r.logger.Info().
		Str("job_id", job.ID).
		Str("source_image_id", src.ID).
		Str("operation", string(kind)).
		Str("model", preq.Model).
		Msg("generation: regeneration started")
	sourceURL := src.ImageURL
	r.launch(ctx, job, func(ctx context.Context, job *domain.GenerationJob) error {
		if kind != image.OperationEdit {
			return r.runUnits(ctx, job, units)
		}
		path, cleanup, err := r.prepareSource(ctx, sourceURL)
		defer cleanup()
		if err != nil {
			return fmt.Errorf("prepare source image: %w", err)
		}
		for i := range units {
			units[i].request.ImagePath = path
		}
		return r.runUnits(ctx, job, units)
	})
	return job, nil
}

// prepareSource downloads the source image into a scratch file and writes an
// RGBA PNG copy next to it. cleanup removes both files and is always non-nil.
func (r *Runner) prepareSource(ctx context.Context, ref string) (string, func(), error) {
	var paths []string
	cleanup := func() {
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				r.logger.Warn().Err(err).Str("path", p).Msg("generation: remove scratch file")
			}
		}
	}

	data, err := r.fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", cleanup, fmt.Errorf("fetch: %w", err)
	}

	raw, err := os.CreateTemp(r.scratchDir, "regen-src-*")
	if err != nil {
		return "", cleanup, fmt.Errorf("create scratch file: %w", err)
	}
	paths = append(paths, raw.Name())
	if _, err := raw.Write(data); err != nil {
		_ = raw.Close()
		return "", cleanup, fmt.Errorf("write scratch file: %w", err)
	}
	if err := raw.Close(); err != nil {
		return "", cleanup, fmt.Errorf("close scratch file: %w", err)
	}

	normalized, err := os.CreateTemp(r.scratchDir, "regen-png-*.png")
	if err != nil {
		return "", cleanup, fmt.Errorf("create scratch file: %w", err)
	}
	paths = append(paths, normalized.Name())
	if err := normalized.Close(); err != nil {
		return "", cleanup, fmt.Errorf("close scratch file: %w", err)
	}
	if err := imageconv.NormalizeFile(raw.Name(), normalized.Name()); err != nil {
		return "", cleanup, fmt.Errorf("normalize: %w", err)
	}
	return normalized.Name(), cleanup, nil
}

func regenerationName(name, concept string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "Regeneration: " + concept
}
