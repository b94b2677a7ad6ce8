package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"stylegen/internal/access"
	"stylegen/internal/domain"
)

type sessionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsTemporary bool   `json:"isTemporary"`
}

func (req sessionRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	return nil
}

func (a *App) ListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := a.Repos.Sessions.List(r.Context(), access.OwnerScope(principal(r)))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]sessionDTO, 0, len(list))
	for i := range list {
		out = append(out, toSession(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"sessions": out})
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	session := &domain.ProjectSession{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		IsTemporary: req.IsTemporary,
		OwnerID:     principal(r).UserID,
	}
	if err := a.Repos.Sessions.Create(r.Context(), session); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toSession(session))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.loadSession(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toSession(session))
}

func (a *App) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.loadSession(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	session.Name = strings.TrimSpace(req.Name)
	session.Description = strings.TrimSpace(req.Description)
	session.IsTemporary = req.IsTemporary
	if err := a.Repos.Sessions.Update(r.Context(), session); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toSession(session))
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.loadSession(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.cancelSessionJobs(r.Context(), session.ID)
	if err := a.Repos.Sessions.Delete(r.Context(), session.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTemporarySessions removes every temporary session of the caller.
func (a *App) DeleteTemporarySessions(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	n, err := a.Repos.Sessions.DeleteTemporary(r.Context(), p.UserID, time.Time{})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"deleted": n})
}

// cancelSessionJobs stops live loops before their rows disappear.
func (a *App) cancelSessionJobs(ctx context.Context, sessionID string) {
	jobs, err := a.Repos.Jobs.List(ctx, domain.JobFilter{SessionID: sessionID})
	if err != nil {
		a.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("sessions: list jobs before delete")
		return
	}
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			a.Runner.Cancel(job.ID)
		}
	}
}

func (a *App) loadSession(r *http.Request) (*domain.ProjectSession, error) {
	id := chi.URLParam(r, "id")
	return access.Load(r.Context(), principal(r), func(ctx context.Context) (*domain.ProjectSession, error) {
		return a.Repos.Sessions.Get(ctx, id)
	})
}
