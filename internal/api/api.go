package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/config"
)

// Services groups what the router needs from the core packages.
type Services struct {
	Stock   StockService
	Orders  OrderService
	Gate    ScanGate
	Reports ReportService
	Users   UserAccess
}

func ConfigureRouter(cfg *config.Config, svc Services) chi.Router {
	exposeInternalErrors = !cfg.Production()

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Cors.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(Logging)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("UP"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/env", NewEnvApi(cfg).ConfigureRouter)

	limiter := NewIPRateLimiter(cfg.Scan.TriggerRate, cfg.Scan.TriggerBurst)
	admin := AdminRoutes(svc.Users)

	r.Route("/api", func(r chi.Router) {
		r.Route("/stock", NewStockApi(svc.Stock).ConfigureRouter(admin))
		NewScanApi(svc.Gate, cfg.Scan.PublicUrl, limiter).ConfigureRouter(r)
		NewOrderApi(svc.Orders).ConfigureRouter(r, admin)
		r.With(admin).Route("/reports", NewReportApi(svc.Reports).ConfigureRouter)
	})

	return r
}

func Render(w http.ResponseWriter, r *http.Request, rnd render.Renderer) {
	if err := render.Render(w, r, rnd); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}

func RenderList(w http.ResponseWriter, r *http.Request, l []render.Renderer) {
	if err := render.RenderList(w, r, l); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}
