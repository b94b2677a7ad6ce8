package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/providers/image"
)

// ErrShuttingDown is returned when a job is submitted during shutdown.
var ErrShuttingDown = errors.New("generation: runner is shutting down")

// BatchRequest starts a fresh batch. Style is optional and must already be
// authorized for OwnerID; a style without an ID is used inline and not linked.
type BatchRequest struct {
	Name      string
	OwnerID   string
	SessionID *string
	Style     *domain.ImageStyle
	Concepts  []string
	Settings  jsoncfg.GenerationSettings
}

// StartBatch validates the request, records a pending job, and runs it in the
// background. Capability errors are returned before any provider call.
func (r *Runner) StartBatch(ctx context.Context, req BatchRequest) (*domain.GenerationJob, error) {
	if r.isStopping() {
		return nil, ErrShuttingDown
	}
	concepts := cleanConcepts(req.Concepts)
	switch {
	case len(concepts) == 0:
		return nil, fmt.Errorf("%w: at least one concept is required", domain.ErrValidation)
	case len(concepts) > jsoncfg.MaxConceptsPerJob:
		return nil, fmt.Errorf("%w: at most %d concepts per job", domain.ErrValidation, jsoncfg.MaxConceptsPerJob)
	}

	settings := req.Settings
	settings.Normalize()
	preq, err := image.BuildRequest(image.OperationGenerate, settings)
	if err != nil {
		return nil, err
	}
	if preq.ModelSwitched {
		r.logger.Info().
			Str("requested_model", preq.RequestedModel).
			Str("model", preq.Model).
			Msg("generation: switched model for transparency")
		settings.Model = preq.Model
	}

	job := &domain.GenerationJob{
		ID:        uuid.NewString(),
		Name:      jobName(req.Name, concepts),
		Kind:      domain.JobKindBatch,
		OwnerID:   req.OwnerID,
		SessionID: req.SessionID,
		Concepts:  concepts,
		Settings:  settings,
		Status:    domain.JobStatusPending,
	}
	styleText := ""
	if req.Style != nil {
		if req.Style.ID != "" {
			styleID := req.Style.ID
			job.StyleID = &styleID
		}
		styleText = image.StyleText(*req.Style)
	}
	if err := r.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	units := make([]unit, 0, job.Total())
	for _, concept := range concepts {
		prompt := image.ComposePrompt(image.PromptInput{
			StyleDescription: styleText,
			Concept:          concept,
			Transparency:     settings.Transparency,
			RenderText:       settings.RenderText,
			Model:            preq.Model,
		})
		for v := 1; v <= settings.Variations; v++ {
			units = append(units, unit{concept: concept, variation: v, prompt: prompt, request: preq})
		}
	}

	r.logger.Info().
		Str("job_id", job.ID).
		Int("concepts", len(concepts)).
		Int("variations", settings.Variations).
		Str("model", preq.Model).
		Msg("generation: batch started")
	r.launch(ctx, job, func(ctx context.Context, job *domain.GenerationJob) error {
		return r.runUnits(ctx, job, units)
	})
	return job, nil
}

func cleanConcepts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func jobName(name string, concepts []string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if len(concepts) == 1 {
		return concepts[0]
	}
	return fmt.Sprintf("%s (+%d more)", concepts[0], len(concepts)-1)
}
