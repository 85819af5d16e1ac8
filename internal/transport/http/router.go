package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"electa/internal/platform/metrics"
	"electa/pkg/platform/httputil"
	"electa/pkg/platform/middleware/metadata"
	"electa/pkg/platform/middleware/request"
	"electa/pkg/platform/middleware/requesttime"
)

// APIPrefix is where every handler's routes are mounted.
const APIPrefix = "/api/election"

// Registrar is implemented by each domain handler.
type Registrar interface {
	Register(r chi.Router)
}

type RouterConfig struct {
	Logger *slog.Logger
	// Metrics records request latency when set.
	Metrics *metrics.Metrics
	// Health reports dependency health for GET /health. Nil always reports ok.
	Health func(ctx context.Context) error
	// MetricsHandler serves GET /metrics. Nil uses the default Prometheus registry.
	MetricsHandler http.Handler
}

// NewRouter applies the shared middleware chain and mounts the handlers under
// APIPrefix. Business logic stays in the handlers' services.
func NewRouter(cfg RouterConfig, handlers ...Registrar) chi.Router {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Latency)
	}

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/health", healthHandler(cfg))

	r.Route(APIPrefix, func(r chi.Router) {
		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				cfg.Logger.WarnContext(r.Context(), "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
