package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tillpoint/tillsync/api/controllers"
	"github.com/tillpoint/tillsync/api/handlers"
	"github.com/tillpoint/tillsync/api/middleware"
	"github.com/tillpoint/tillsync/internal/devices"
	"github.com/tillpoint/tillsync/pkg/config"
	"github.com/tillpoint/tillsync/pkg/logger"
)

// NewRouter wires the session service's HTTP surface.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	deviceService *devices.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Get("/healthz", handlers.Healthz(cfg, logg))

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/device-sessions", func(r chi.Router) {
		r.Get("/", controllers.ListDeviceSessions(deviceService, logg))
		r.Post("/register", controllers.RegisterDeviceSession(deviceService, logg))
		r.Post("/heartbeat", controllers.HeartbeatDeviceSession(deviceService, logg))
		r.Post("/disconnect", controllers.DisconnectDeviceSession(deviceService, logg))
	})

	return r
}
