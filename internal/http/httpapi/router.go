package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"batchgen/internal/http/handlers"
	"batchgen/internal/infra"
	"batchgen/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/batches", func(r chi.Router) {
		r.With(middleware.RateLimit(cfg.BatchRateLimit, cfg.BatchRateWindow)).Post("/", app.CreateBatch)
		r.Get("/{id}", app.GetBatch)
		r.Delete("/{id}", app.CancelBatch)
		r.Get("/{id}/items", app.ListBatchItems)
		r.Get("/{id}/export", app.ExportBatch)
		r.Get("/{id}/events", app.Events)
		r.Get("/{id}/ws", app.Socket)
	})

	r.Get("/v1/items/{itemID}", app.GetItem)

	r.Method(http.MethodGet, "/metrics", handlers.Metrics())

	return r
}
