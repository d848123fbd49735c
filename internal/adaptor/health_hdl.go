package adaptor

import (
	"context"
	"net/http"
	"time"

	"paygate/pkg/utils"

	"go.uber.org/zap"
)

// HealthCheck pings one backing service.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
	log    *zap.Logger
}

func NewHealthHandler(checks []HealthCheck, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		log:    log.With(zap.String("handler", "health")),
	}
}

// Live handles GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.log.Warn("Health check failed", zap.String("check", c.Name), zap.Error(err))
			status[c.Name] = err.Error()
			healthy = false
			continue
		}
		status[c.Name] = "ok"
	}

	if !healthy {
		utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "Not ready", status, nil)
		return
	}
	utils.ResponseSuccess(w, "Ready", status)
}
