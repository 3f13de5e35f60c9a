package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// after RequestID
	r.Use(RequestLogger(h.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		r.Use(Authenticate)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/", h.ListJobs)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetJob)
				r.Patch("/", h.UpdateJob)
				r.Delete("/", h.DeleteJob)
				r.Post("/transitions", h.Transition)

				r.Get("/items", h.ListItems)
				r.Put("/items", h.SaveItems)
				r.Post("/items/new", h.NewItem)
				r.Put("/items/draft", h.StageDraft)
				r.Delete("/items/draft", h.DiscardDraft)

				r.Get("/notes", h.ListNotes)
				r.Post("/notes", h.AddNote)

				r.Get("/compliance/weights", h.WeightRollup)
				r.Get("/compliance/erasure", h.ErasureRollup)
				r.Post("/documents", h.RequestDocument)
				r.Put("/signatures/{role}", h.PutSignature)
			})
		})

		r.Post("/items/{itemId}/expand", h.ExpandItem)
		r.Delete("/items/{itemId}", h.DeleteItem)

		r.Patch("/notes/{noteId}", h.EditNote)
		r.Delete("/notes/{noteId}", h.DeleteNote)
	})

	return r
}
