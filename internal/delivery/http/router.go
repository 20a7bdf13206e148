package http //nolint:revive // directory-based package name, imported with alias

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Xausdorf/clout-ledger/internal/infrastructure/metrics"
)

const requestTimeout = 45 * time.Second

type RouterOptions struct {
	AllowedOrigins []string
	Limiter        *RateLimiter
}

func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Idempotency-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Handler)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.RegisterAccount)
			r.Get("/{id}", h.GetAccount)
			r.Put("/{id}/payout-account", h.ConnectPayoutAccount)
			r.Put("/{id}/billing-profile", h.SetBillingProfile)
			r.Get("/{id}/entries", h.ListEntries)
			r.Post("/{id}/payouts", h.RequestPayout)
		})

		r.Route("/content", func(r chi.Router) {
			r.Get("/", h.ListContent)
			r.Post("/", h.PublishContent)
			r.Get("/{id}", h.GetContent)
			r.Get("/{id}/qr", h.ShareContent)
			r.Post("/{id}/purchase", h.PurchaseContent)
			r.Post("/{id}/download", h.DownloadContent)
		})
	})

	return r
}
