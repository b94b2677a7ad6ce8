package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stylegen/internal/access"
	"stylegen/internal/domain"
)

func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := a.Repos.Images.List(r.Context(), domain.ImageFilter{
		OwnerID:   access.OwnerScope(principal(r)),
		SessionID: r.URL.Query().Get("sessionId"),
		Limit:     queryLimit(r),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"images": toImages(images)})
}

func (a *App) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := access.Load(r.Context(), principal(r), func(ctx context.Context) (*domain.GeneratedImage, error) {
		return a.Repos.Images.Get(ctx, id)
	}); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Repos.Images.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
