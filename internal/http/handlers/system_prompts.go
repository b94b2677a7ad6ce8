package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"stylegen/internal/domain"
	"stylegen/internal/prompts"
)

type systemPromptRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Content   string `json:"content"`
	IsDefault bool   `json:"isDefault"`
	Global    bool   `json:"global"`
}

func (req systemPromptRequest) input() prompts.Input {
	return prompts.Input{
		Name:      req.Name,
		Category:  domain.PromptCategory(req.Category),
		Content:   req.Content,
		IsDefault: req.IsDefault,
		Global:    req.Global,
	}
}

func (a *App) ListSystemPrompts(w http.ResponseWriter, r *http.Request) {
	list, err := a.Prompts.List(r.Context(), principal(r), domain.PromptCategory(r.URL.Query().Get("category")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]systemPromptDTO, 0, len(list))
	for i := range list {
		out = append(out, toSystemPrompt(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"prompts": out})
}

func (a *App) GetSystemPrompt(w http.ResponseWriter, r *http.Request) {
	sp, err := a.Prompts.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toSystemPrompt(sp))
}

func (a *App) CreateSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req systemPromptRequest
	if !a.decode(w, r, &req) {
		return
	}
	sp, err := a.Prompts.Create(r.Context(), principal(r), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toSystemPrompt(sp))
}

func (a *App) UpdateSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req systemPromptRequest
	if !a.decode(w, r, &req) {
		return
	}
	sp, err := a.Prompts.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toSystemPrompt(sp))
}

func (a *App) DeleteSystemPrompt(w http.ResponseWriter, r *http.Request) {
	if err := a.Prompts.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
