package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"stylegen/internal/http/handlers"
	"stylegen/internal/infra"
	"stylegen/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Authenticator      middleware.Authenticator
	Logger             infra.Logger
	CORSOrigins        []string
	RateLimitPerMinute int
	DefaultLocale      string
	CountryLookup      middleware.CountryLookup
	// StaticDir is served under /static; empty disables it.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.With(middleware.RateLimit(opts.RateLimitPerMinute)).Post("/login", app.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.Authenticator), middleware.RateLimit(opts.RateLimitPerMinute))

			r.Post("/logout", app.Logout)
			r.Get("/user", app.Me)
			r.Get("/user/preferences", app.GetPreferences)
			r.Put("/user/preferences", app.PutPreferences)

			r.Route("/styles", func(r chi.Router) {
				r.Get("/", app.ListStyles)
				r.Post("/", app.CreateStyle)
				r.Get("/{id}", app.GetStyle)
				r.Put("/{id}", app.UpdateStyle)
				r.Delete("/{id}", app.DeleteStyle)
			})
			r.Post("/upload-reference-image", app.UploadReferenceImage)
			r.Post("/extract-style", app.ExtractStyle)
			r.Post("/generate-style-preview", app.GenerateStylePreview)
			r.Post("/refine-style", app.RefineStyle)
			r.Post("/regenerate-test-concepts", app.RegenerateTestConcepts)
			r.Post("/generate-new-concept", app.GenerateNewConcept)

			r.Post("/generate", app.Generate)
			r.Post("/regenerate", app.Regenerate)
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", app.ListJobs)
				r.Get("/{id}", app.GetJob)
				r.Get("/{id}/images", app.JobImages)
				r.Get("/{id}/images.zip", app.JobImagesZip)
				r.Post("/{id}/cancel", app.CancelJob)
			})
			r.Get("/images", app.ListImages)
			r.Delete("/images/{id}", app.DeleteImage)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", app.ListSessions)
				r.Post("/", app.CreateSession)
				r.Delete("/temporary", app.DeleteTemporarySessions)
				r.Get("/{id}", app.GetSession)
				r.Put("/{id}", app.UpdateSession)
				r.Delete("/{id}", app.DeleteSession)
			})

			r.Route("/system-prompts", func(r chi.Router) {
				r.Get("/", app.ListSystemPrompts)
				r.Post("/", app.CreateSystemPrompt)
				r.Get("/{id}", app.GetSystemPrompt)
				r.Put("/{id}", app.UpdateSystemPrompt)
				r.Delete("/{id}", app.DeleteSystemPrompt)
			})

			r.Post("/generate-concept-list", app.GenerateConceptList)
			r.Route("/concept-lists", func(r chi.Router) {
				r.Get("/", app.ListConceptLists)
				r.Post("/", app.CreateConceptList)
				r.Get("/{id}", app.GetConceptList)
				r.Put("/{id}", app.UpdateConceptList)
				r.Delete("/{id}", app.DeleteConceptList)
				r.Post("/{id}/revise", app.ReviseConceptList)
				r.Put("/{id}/concepts/{index}", app.UpdateConceptItem)
				r.Delete("/{id}/concepts/{index}", app.DeleteConceptItem)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/create-user", app.AdminCreateUser)
				r.Get("/users", app.AdminListUsers)
				r.Post("/toggle-user-status", app.AdminToggleUserStatus)
				r.Post("/elevate-user", app.AdminElevateUser)
			})
		})
	})
	return r
}
