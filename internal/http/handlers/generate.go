package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"stylegen/internal/access"
	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/generation"
	"stylegen/internal/imageconv"
	"stylegen/pkg/zip"
)

const defaultListLimit = 100

// generateRequest names the job with jobName; name is accepted as an alias.
type generateRequest struct {
	JobName     string                     `json:"jobName"`
	Name        string                     `json:"name"`
	SessionID   string                     `json:"sessionId"`
	StyleID     string                     `json:"styleId"`
	StyleData   jsoncfg.Record             `json:"styleData"`
	StylePrompt string                     `json:"stylePrompt"`
	Concepts    []string                   `json:"concepts"`
	Settings    jsoncfg.GenerationSettings `json:"settings"`
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	p := principal(r)
	sessionID, err := a.authorizeSession(r.Context(), p, req.SessionID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var style *domain.ImageStyle
	switch {
	case req.StyleID != "":
		style, err = a.Styles.Get(r.Context(), p, req.StyleID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
	case req.StyleData.Len() > 0 || strings.TrimSpace(req.StylePrompt) != "":
		style = &domain.ImageStyle{StyleData: req.StyleData, StylePrompt: req.StylePrompt}
	}

	job, err := a.Runner.StartBatch(r.Context(), generation.BatchRequest{
		Name:      firstNonBlank(req.JobName, req.Name),
		OwnerID:   p.UserID,
		SessionID: sessionID,
		Style:     style,
		Concepts:  req.Concepts,
		Settings:  req.Settings,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, toAccepted(job))
}

// regenerateRequest identifies the source with sourceImageId; imageId is
// accepted as an alias, as are name and jobName.
type regenerateRequest struct {
	SourceImageID          string                      `json:"sourceImageId"`
	ImageID                string                      `json:"imageId"`
	JobName                string                      `json:"jobName"`
	Name                   string                      `json:"name"`
	Instruction            string                      `json:"instruction"`
	Settings               *jsoncfg.GenerationSettings `json:"settings"`
	UseOriginalAsReference *bool                       `json:"useOriginalAsReference"`
}

func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	sourceID := firstNonBlank(req.SourceImageID, req.ImageID)
	if sourceID == "" {
		a.fail(w, r, fmt.Errorf("%w: sourceImageId is required", domain.ErrValidation))
		return
	}
	if strings.TrimSpace(req.Instruction) == "" && req.Settings == nil {
		a.fail(w, r, fmt.Errorf("%w: instruction or settings are required", domain.ErrValidation))
		return
	}
	p := principal(r)
	source, err := access.Load(r.Context(), p, func(ctx context.Context) (*domain.GeneratedImage, error) {
		return a.Repos.Images.Get(ctx, sourceID)
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	useReference := true
	if req.UseOriginalAsReference != nil {
		useReference = *req.UseOriginalAsReference
	}
	job, err := a.Runner.StartRegeneration(r.Context(), generation.RegenerateRequest{
		Name:                   firstNonBlank(req.JobName, req.Name),
		OwnerID:                p.UserID,
		Source:                 source,
		Instruction:            req.Instruction,
		Settings:               req.Settings,
		UseOriginalAsReference: useReference,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, toAccepted(job))
}

// acceptedJob is the 202 body of /generate and /regenerate: the job id under
// jobId, alongside the full job so clients can render it without a refetch.
type acceptedJob struct {
	JobID string `json:"jobId"`
	jobDTO
}

func toAccepted(job *domain.GenerationJob) acceptedJob {
	return acceptedJob{JobID: job.ID, jobDTO: toJob(job)}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	jobs, err := a.Repos.Jobs.List(r.Context(), domain.JobFilter{
		OwnerID:   access.OwnerScope(p),
		SessionID: r.URL.Query().Get("sessionId"),
		Limit:     queryLimit(r),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJob(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": out})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.loadJob(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toJob(job))
}

func (a *App) JobImages(w http.ResponseWriter, r *http.Request) {
	job, err := a.loadJob(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	images, err := a.Repos.Images.ListByJob(r.Context(), job.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"images": toImages(images)})
}

// CancelJob stops a running job. Cancelling a finished job is a no-op that
// returns its current state.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.loadJob(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if job.Status.IsTerminal() {
		a.json(w, http.StatusOK, toJob(job))
		return
	}
	if !a.Runner.Cancel(job.ID) {
		// No live loop owns the job, so record the cancellation directly.
		if _, err := a.Repos.Jobs.Update(r.Context(), job.ID, domain.JobUpdate{
			Status:       domain.JobStatusCancelled,
			ErrorMessage: "cancelled",
		}); err != nil && !errors.Is(err, domain.ErrJobTerminal) {
			a.fail(w, r, err)
			return
		}
	}
	a.json(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": "cancelling"})
}

// JobImagesZip streams every completed image of the job as one archive.
func (a *App) JobImagesZip(w http.ResponseWriter, r *http.Request) {
	job, err := a.loadJob(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	images, err := a.Repos.Images.ListByJob(r.Context(), job.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets := make([]zip.Asset, 0, len(images))
	for i, img := range images {
		if img.Status != domain.ImageStatusCompleted || img.ImageURL == "" {
			continue
		}
		data, err := a.Fetcher.Fetch(r.Context(), img.ImageURL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("job_id", job.ID).Str("image_id", img.ID).Msg("zip: skip unreadable image")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%02d-%s%s", i+1, slug(img.VisualConcept), imageconv.Detect(data).Extension()),
			Data:     data,
			Modified: img.UpdatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", job.ID))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, assets); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("zip: write archive")
	}
}

func (a *App) loadJob(r *http.Request) (*domain.GenerationJob, error) {
	id := chi.URLParam(r, "id")
	return access.Load(r.Context(), principal(r), func(ctx context.Context) (*domain.GenerationJob, error) {
		return a.Repos.Jobs.Get(ctx, id)
	})
}

// authorizeSession checks that the caller may attach work to the session.
func (a *App) authorizeSession(ctx context.Context, p access.Principal, id string) (*string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	if _, err := access.Load(ctx, p, func(ctx context.Context) (*domain.ProjectSession, error) {
		return a.Repos.Sessions.Get(ctx, id)
	}); err != nil {
		return nil, err
	}
	return &id, nil
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return defaultListLimit
	}
	return n
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	if s == "" {
		return "image"
	}
	return s
}
