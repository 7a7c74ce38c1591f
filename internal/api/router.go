package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Post("/", app.UploadHandler)
			r.Get("/", app.ListVideosHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetVideoHandler)
				r.Delete("/", app.DeleteVideoHandler)
				r.Get("/frames", app.ListFramesHandler)
				r.Get("/runs", app.ListRunsHandler)
				r.Post("/process", app.ProcessHandler)
				r.Get("/stream", app.StreamVideoHandler)
			})
		})
		r.Get("/search", app.SearchHandler)
	})

	return r
}
