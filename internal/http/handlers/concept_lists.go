package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stylegen/internal/concepts"
	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/middleware"
)

type conceptListRequest struct {
	CompanyName      string                   `json:"companyName"`
	MarketingContent string                   `json:"marketingContent"`
	Concepts         []jsoncfg.Record         `json:"concepts"`
	Parameters       domain.ConceptParameters `json:"parameters"`
}

func (req conceptListRequest) input() concepts.Input {
	return concepts.Input{
		CompanyName:      req.CompanyName,
		MarketingContent: req.MarketingContent,
		Concepts:         req.Concepts,
		Parameters:       req.Parameters,
	}
}

func (a *App) ListConceptLists(w http.ResponseWriter, r *http.Request) {
	list, err := a.Concepts.List(r.Context(), principal(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]conceptListDTO, 0, len(list))
	for i := range list {
		out = append(out, toConceptList(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"conceptLists": out})
}

func (a *App) GetConceptList(w http.ResponseWriter, r *http.Request) {
	list, err := a.Concepts.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toConceptList(list))
}

func (a *App) CreateConceptList(w http.ResponseWriter, r *http.Request) {
	var req conceptListRequest
	if !a.decode(w, r, &req) {
		return
	}
	list, err := a.Concepts.Create(r.Context(), principal(r), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toConceptList(list))
}

func (a *App) UpdateConceptList(w http.ResponseWriter, r *http.Request) {
	var req conceptListRequest
	if !a.decode(w, r, &req) {
		return
	}
	list, err := a.Concepts.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toConceptList(list))
}

func (a *App) DeleteConceptList(w http.ResponseWriter, r *http.Request) {
	if err := a.Concepts.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateConceptListRequest struct {
	CompanyName       string  `json:"companyName"`
	MarketingContent  string  `json:"marketingContent"`
	Count             int     `json:"count"`
	Temperature       float64 `json:"temperature"`
	Metaphor          int     `json:"metaphor"`
	Complexity        int     `json:"complexity"`
	ReferenceImageURL string  `json:"referenceImageUrl"`
	SystemPromptID    string  `json:"systemPromptId"`
}

func (a *App) GenerateConceptList(w http.ResponseWriter, r *http.Request) {
	var req generateConceptListRequest
	if !a.decode(w, r, &req) {
		return
	}
	list, meta, err := a.Concepts.Generate(r.Context(), principal(r), concepts.GenerateInput{
		CompanyName:      req.CompanyName,
		MarketingContent: req.MarketingContent,
		SystemPromptID:   req.SystemPromptID,
		Parameters: domain.ConceptParameters{
			Count:             req.Count,
			Temperature:       req.Temperature,
			Metaphor:          req.Metaphor,
			Complexity:        req.Complexity,
			Locale:            middleware.LocaleFromContext(r.Context()),
			ReferenceImageURL: req.ReferenceImageURL,
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"conceptList": toConceptList(list), "meta": meta})
}

func (a *App) ReviseConceptList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	list, revised, err := a.Concepts.Revise(r.Context(), principal(r), chi.URLParam(r, "id"), req.Feedback)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"conceptList": toConceptList(list), "revised": revised})
}

func (a *App) UpdateConceptItem(w http.ResponseWriter, r *http.Request) {
	index, ok := a.conceptIndex(w, r)
	if !ok {
		return
	}
	var req struct {
		Concept jsoncfg.Record `json:"concept"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	list, err := a.Concepts.UpdateItem(r.Context(), principal(r), chi.URLParam(r, "id"), index, req.Concept)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toConceptList(list))
}

func (a *App) DeleteConceptItem(w http.ResponseWriter, r *http.Request) {
	index, ok := a.conceptIndex(w, r)
	if !ok {
		return
	}
	list, err := a.Concepts.DeleteItem(r.Context(), principal(r), chi.URLParam(r, "id"), index)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toConceptList(list))
}

func (a *App) conceptIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: concept index must be a number", domain.ErrValidation))
		return 0, false
	}
	return index, true
}
