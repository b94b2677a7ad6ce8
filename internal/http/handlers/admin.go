package handlers

import (
	"fmt"
	"net/http"

	"stylegen/internal/domain"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (a *App) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !a.decode(w, r, &req) {
		return
	}
	role := domain.UserRoleUser
	if req.Role != "" {
		parsed, ok := domain.ParseRole(req.Role)
		if !ok {
			a.fail(w, r, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, req.Role))
			return
		}
		role = parsed
	}
	user, err := a.Auth.CreateUser(r.Context(), principal(r), req.Email, req.Password, role)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toUser(user))
}

func (a *App) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Auth.ListUsers(r.Context(), principal(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for i := range users {
		out = append(out, toUser(&users[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"users": out})
}

type userIDRequest struct {
	UserID string `json:"userId"`
}

func (a *App) AdminToggleUserStatus(w http.ResponseWriter, r *http.Request) {
	var req userIDRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.Auth.ToggleActive(r.Context(), principal(r), req.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUser(user))
}

func (a *App) AdminElevateUser(w http.ResponseWriter, r *http.Request) {
	var req userIDRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.Auth.Elevate(r.Context(), principal(r), req.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUser(user))
}
