package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the handler into the API routes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/import/csv", h.ImportCSV)
		r.Post("/import/bucket", h.ImportBucket)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Get("/{run_id}", h.GetRun)
		})

		r.Route("/merchants", func(r chi.Router) {
			r.Post("/", h.CreateMerchant)
			r.Get("/", h.ListMerchants)
			r.Get("/{merchant_id}", h.GetMerchant)
			r.Get("/{merchant_id}/offers", h.ListMerchantOffers)
		})

		r.Route("/offers", func(r chi.Router) {
			r.Post("/", h.CreateOffer)
			r.Get("/", h.ListOffers)
			r.Get("/{offer_id}", h.GetOffer)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
