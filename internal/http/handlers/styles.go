package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/imagesrc"
	"stylegen/internal/middleware"
	"stylegen/internal/styles"
)

type styleRequest struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	StylePrompt       string         `json:"stylePrompt"`
	StyleData         jsoncfg.Record `json:"styleData"`
	ReferenceImageURL string         `json:"referenceImageUrl"`
	PreviewImageURL   string         `json:"previewImageUrl"`
}

func (req styleRequest) input() styles.Input {
	return styles.Input{
		Name:              req.Name,
		Description:       req.Description,
		StylePrompt:       req.StylePrompt,
		StyleData:         req.StyleData,
		ReferenceImageURL: req.ReferenceImageURL,
		PreviewImageURL:   req.PreviewImageURL,
	}
}

func (a *App) ListStyles(w http.ResponseWriter, r *http.Request) {
	list, err := a.Styles.List(r.Context(), principal(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]styleDTO, 0, len(list))
	for i := range list {
		out = append(out, toStyle(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"styles": out})
}

func (a *App) GetStyle(w http.ResponseWriter, r *http.Request) {
	style, err := a.Styles.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toStyle(style))
}

func (a *App) CreateStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if !a.decode(w, r, &req) {
		return
	}
	style, err := a.Styles.Create(r.Context(), principal(r), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toStyle(style))
}

func (a *App) UpdateStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if !a.decode(w, r, &req) {
		return
	}
	style, err := a.Styles.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toStyle(style))
}

func (a *App) DeleteStyle(w http.ResponseWriter, r *http.Request) {
	if err := a.Styles.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadReferenceImage accepts a multipart "image" (or "file") field.
func (a *App) UploadReferenceImage(w http.ResponseWriter, r *http.Request) {
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = imagesrc.MaxImageBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "image exceeds upload limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart form required")
		return
	}
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		file, _, err = r.FormFile("file")
	}
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image file required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if int64(len(data)) > limit {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "image exceeds upload limit")
		return
	}
	url, err := a.Styles.UploadReference(r.Context(), principal(r), data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"url": url})
}

type extractStyleRequest struct {
	ImageURL          string `json:"imageUrl"`
	ExtractionPrompt  string `json:"extractionPrompt"`
	CompositionPrompt string `json:"compositionPrompt"`
	ConceptPrompt     string `json:"conceptPrompt"`
	SystemPromptID    string `json:"systemPromptId"`
}

func (a *App) ExtractStyle(w http.ResponseWriter, r *http.Request) {
	var req extractStyleRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Styles.Extract(r.Context(), principal(r), styles.ExtractInput{
		ImageURL:          req.ImageURL,
		ExtractionPrompt:  req.ExtractionPrompt,
		CompositionPrompt: req.CompositionPrompt,
		ConceptPrompt:     req.ConceptPrompt,
		SystemPromptID:    req.SystemPromptID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"styleData": res.StyleData,
		"concept":   res.Concept,
		"meta":      res.Meta,
	})
}

type previewRequest struct {
	StyleID      string         `json:"styleId"`
	StyleData    jsoncfg.Record `json:"styleData"`
	StylePrompt  string         `json:"stylePrompt"`
	Concept      string         `json:"concept"`
	Model        string         `json:"model"`
	Size         string         `json:"size"`
	Quality      string         `json:"quality"`
	Transparency bool           `json:"transparency"`
	RenderText   bool           `json:"renderText"`
}

func (a *App) GenerateStylePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !a.decode(w, r, &req) {
		return
	}
	url, err := a.Styles.Preview(r.Context(), principal(r), styles.PreviewInput{
		StyleID:     req.StyleID,
		StyleData:   req.StyleData,
		StylePrompt: req.StylePrompt,
		Concept:     req.Concept,
		Settings: jsoncfg.GenerationSettings{
			Model:        req.Model,
			Size:         req.Size,
			Quality:      req.Quality,
			Transparency: req.Transparency,
			RenderText:   req.RenderText,
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"imageUrl": url})
}

type refineStyleRequest struct {
	StyleID   string         `json:"styleId"`
	StyleData jsoncfg.Record `json:"styleData"`
	Feedback  string         `json:"feedback"`
}

func (a *App) RefineStyle(w http.ResponseWriter, r *http.Request) {
	var req refineStyleRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Styles.Refine(r.Context(), principal(r), styles.RefineInput{
		StyleID:   req.StyleID,
		StyleData: req.StyleData,
		Feedback:  req.Feedback,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"styleData": res.StyleData,
		"changed":   res.Changed,
		"meta":      res.Meta,
	})
}

type testConceptsRequest struct {
	StyleData jsoncfg.Record `json:"styleData"`
	Count     int            `json:"count"`
}

func (a *App) RegenerateTestConcepts(w http.ResponseWriter, r *http.Request) {
	var req testConceptsRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Styles.TestConcepts(r.Context(), principal(r), req.StyleData, req.Count, middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"concepts": res.Concepts, "meta": res.Meta})
}

type newConceptRequest struct {
	StyleData jsoncfg.Record `json:"styleData"`
	Existing  []string       `json:"existingConcepts"`
	Hint      string         `json:"hint"`
}

func (a *App) GenerateNewConcept(w http.ResponseWriter, r *http.Request) {
	var req newConceptRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Existing) > jsoncfg.MaxConceptsPerJob {
		a.fail(w, r, fmt.Errorf("%w: too many existing concepts", domain.ErrValidation))
		return
	}
	res, err := a.Styles.NewConcept(r.Context(), principal(r), req.StyleData, req.Existing, req.Hint, middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"concept": res.Concept, "meta": res.Meta})
}
