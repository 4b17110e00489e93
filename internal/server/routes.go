package server

import (
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures [NewRouter].
type Options struct {
	API      *API
	Assets   Handler              // Static asset handler, optional
	Registry *prometheus.Registry // Metrics registry; /metrics is only served when set
	Logger   *log.Logger
}

// NewRouter assembles the middleware stack and registers every route.
func NewRouter(opts Options) *BasicRouter {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	r := NewBasicRouter()
	r.Use(RecoverMiddleware(logger), LoggingMiddleware(logger))

	if opts.Registry != nil {
		r.Use(MetricsMiddleware(NewHTTPMetrics(opts.Registry)))
		r.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	r.HandleFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.API != nil {
		opts.API.Register(r)
	}
	if opts.Assets != nil {
		r.Handler(opts.Assets)
	}
	return r
}
