package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"stylegen/internal/access"
	"stylegen/internal/auth"
	"stylegen/internal/concepts"
	"stylegen/internal/domain"
	"stylegen/internal/generation"
	"stylegen/internal/infra"
	"stylegen/internal/prompts"
	"stylegen/internal/styles"
)

const maxJSONBody = 8 << 20

// SourceFetcher loads image bytes for archives.
type SourceFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// App holds the services every handler reaches into.
type App struct {
	Auth     *auth.Service
	Styles   *styles.Service
	Concepts *concepts.Service
	Prompts  *prompts.Service
	Runner   *generation.Runner
	Repos    domain.Repositories
	Fetcher  SourceFetcher
	Logger   infra.Logger
	// Ping reports store health; nil means always healthy.
	Ping           func(ctx context.Context) error
	MaxUploadBytes int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps service errors onto HTTP statuses. Unknown errors are logged and
// reported as a generic 500.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", message(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", message(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", message(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", message(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", message(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrJobTerminal):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		a.Logger.Warn().Err(err).Str("path", r.URL.Path).Msg("provider failure")
		a.error(w, http.StatusBadGateway, "provider_failure", "upstream model provider failed")
	case errors.Is(err, generation.ErrShuttingDown):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "server is shutting down")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// message strips the sentinel prefix so clients see only the detail.
func message(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}

// decode reads a JSON body. An empty body leaves v untouched.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
	return false
}

func principal(r *http.Request) access.Principal {
	p, _ := access.FromContext(r.Context())
	return p
}
