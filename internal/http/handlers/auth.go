package handlers

import (
	"net/http"
	"time"

	"stylegen/internal/domain"
	"stylegen/internal/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userDTO   `json:"user"`
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}
	session, err := a.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toUser(session.User),
	})
}

func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r)
	if err := a.Auth.Logout(token); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.Auth.Me(r.Context(), principal(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUser(user))
}

func (a *App) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := a.Repos.Preferences.Get(r.Context(), principal(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	doc := prefs.Preferences
	if doc == nil {
		doc = map[string]any{}
	}
	a.json(w, http.StatusOK, map[string]any{"preferences": doc})
}

func (a *App) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preferences map[string]any `json:"preferences"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Preferences == nil {
		req.Preferences = map[string]any{}
	}
	prefs := &domain.UserPreferences{UserID: principal(r).UserID, Preferences: req.Preferences}
	if err := a.Repos.Preferences.Put(r.Context(), prefs); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"preferences": prefs.Preferences})
}
