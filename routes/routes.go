package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/survey-board/app"
	"github.com/mbolis/survey-board/log"
	"github.com/mbolis/survey-board/routes/middlewares"
)

func init() {
	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.Logger,
		NoColor: true,
	})
}

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app, middlewares.Authenticated(app.Config.TokenSecret)))
	root.Mount("/", servePublicFiles(app.Config.PublicDir))

	return root
}

// apiRouter takes the authentication middleware as a parameter so tests can
// supply the requester identity directly.
func apiRouter(app app.App, auth func(http.Handler) http.Handler) http.Handler {
	api := chi.NewRouter()

	api.Get(`/survey-by-slug/{slug}`, GetSurveyBySlug(app))
	api.Post(`/survey/{id}/answer`, SubmitAnswer(app))

	api.Group(func(r chi.Router) {
		r.Use(auth, middlewares.RequireOwner)

		// CRUD survey
		r.Get("/survey", ListSurveys(app))
		r.Post("/survey", CreateSurvey(app))
		r.Get(`/survey/{id}`, GetSurvey(app))
		r.Put(`/survey/{id}`, UpdateSurvey(app))
		r.Delete(`/survey/{id}`, DeleteSurvey(app))

		r.Get("/dashboard", Dashboard(app))

		r.Get("/user", CurrentUser(app))
		r.Post("/logout", Logout(app))
	})

	api.Post("/register", Register(app))
	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func servePublicFiles(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}
