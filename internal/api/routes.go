package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes wires the JSON API under /api/v1 plus the health probe. ui serves
// everything no API route claims, which is the embedded browser frontend.
func (h *Handlers) Routes(ui http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HandleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape", h.HandleScrape)
		r.Post("/upload", h.HandleUpload)

		r.Route("/credentials", func(r chi.Router) {
			r.Get("/", h.HandleGetCredentials)
			r.Put("/", h.HandleSaveCredentials)
			r.Delete("/", h.HandleDeleteCredentials)
			r.Post("/test", h.HandleTestCredentials)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.HandleListHistory)
			r.Delete("/", h.HandleClearHistory)
		})
	})

	if ui != nil {
		r.Handle("/*", ui)
	}

	return r
}
