package httpserver

import (
	"net/http"

	"github.com/yndnr/rosiels-go/internal/infra/buildinfo"
	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
)

// HealthFunc reports whether the host is healthy. A non-nil error turns
// /healthz into a 503.
type HealthFunc func() error

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics serves /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	// Health is checked by /healthz. Nil always reports ok.
	Health HealthFunc

	Logger logger.Logger
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Version: buildinfo.Get().Version}
		status := http.StatusOK
		if cfg.Health != nil {
			if err := cfg.Health(); err != nil {
				resp.Status = "unavailable"
				resp.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return Chain(mux, Recover(l), RequestID(), AccessLog(l))
}
