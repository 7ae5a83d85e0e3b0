package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/kotoba-api/internal/api"
	apiMiddleware "github.com/phrazzld/kotoba-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	practiceHandler := api.NewPracticeHandler(
		app.manager,
		app.feed,
		app.logger,
		api.WithDefaultWordsPerSession(app.config.Practice.DefaultWordsPerSession),
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Authentication is optional; anonymous sessions stay local.
		r.Use(authMiddleware.Authenticate)
		practiceHandler.Routes(r, apiMiddleware.RequireUser)
	})

	r.Get("/health", app.healthHandler)

	return r
}
